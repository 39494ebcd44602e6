package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Loop struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string         `gorm:"size:100;not null" json:"title"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Description string         `gorm:"type:text;not null" json:"description"`
	City        string         `gorm:"not null;index" json:"city"`
	CoverImage  string         `json:"cover_image"`
	Tags        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`
	Published   bool           `gorm:"default:false;index" json:"published"`
	Featured    bool           `gorm:"default:false" json:"featured"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	Places      []Place        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"places,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	// 只读统计字段，由查询时的子查询填充
	LikeCount    int64 `gorm:"->;-:migration" json:"like_count"`
	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
	PlaceCount   int64 `gorm:"->;-:migration" json:"place_count"`
}

func (l *Loop) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Tags == nil {
		l.Tags = pq.StringArray{}
	}
	return nil
}

// VisibleTo 草稿只对作者可见
func (l *Loop) VisibleTo(userID string) bool {
	return l.Published || (userID != "" && l.UserID == userID)
}
