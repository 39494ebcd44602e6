package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Place struct {
	ID          string   `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string   `gorm:"not null" json:"name"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Category    string   `gorm:"not null" json:"category"`
	MapURL      string   `gorm:"not null" json:"map_url"`
	Address     string   `json:"address,omitempty"`
	Image       string   `json:"image,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Order       int      `gorm:"not null" json:"order"` // 从 1 开始连续
	LoopID      string   `gorm:"type:uuid;not null;index" json:"loop_id"`
}

func (p *Place) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
