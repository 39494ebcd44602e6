package services

import (
	"fmt"

	"localeloop/internal/models"
)

// 每个类别预计停留的分钟数
var categoryMinutes = map[string]int{
	"Museum":     90,
	"Restaurant": 60,
	"Cafe":       30,
	"Park":       45,
	"Shopping":   45,
	"Attraction": 60,
	"Landmark":   20,
	"Gallery":    45,
	"Market":     30,
	"Viewpoint":  15,
}

const (
	defaultCategoryMinutes = 30
	travelMinutes          = 10
)

type LoopMetrics struct {
	TotalMinutes         int    `json:"total_minutes"`
	EstimatedDuration    string `json:"estimated_duration"`
	RecommendedTransport string `json:"recommended_transport"`
	Difficulty           string `json:"difficulty"`
}

// CalculateLoopMetrics estimates time, transport and difficulty from the
// place categories plus ten minutes between consecutive stops.
func CalculateLoopMetrics(places []models.Place) LoopMetrics {
	if len(places) == 0 {
		return LoopMetrics{
			EstimatedDuration:    "0h",
			RecommendedTransport: "Walking",
			Difficulty:           "Easy",
		}
	}

	total := 0
	for _, p := range places {
		if m, ok := categoryMinutes[p.Category]; ok {
			total += m
		} else {
			total += defaultCategoryMinutes
		}
	}
	total += (len(places) - 1) * travelMinutes

	n := len(places)
	m := LoopMetrics{
		TotalMinutes:      total,
		EstimatedDuration: formatDuration(total),
	}

	switch {
	case n <= 3 && total <= 180:
		m.RecommendedTransport = "Walking"
	case n <= 6 && total <= 360:
		m.RecommendedTransport = "Walking / Public Transport"
	default:
		m.RecommendedTransport = "Public Transport / Car"
	}

	switch {
	case n <= 3 && total <= 120:
		m.Difficulty = "Easy"
	case n <= 6 && total <= 300:
		m.Difficulty = "Moderate"
	default:
		m.Difficulty = "Challenging"
	}
	return m
}

func formatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dmin", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dmin", h, m)
	}
}
