package queries

import (
	"errors"
	"time"
)

// GetPerformanceSummaryQuery requests a windowed performance snapshot
type GetPerformanceSummaryQuery struct {
	LearnerID  string    `json:"learner_id" validate:"required"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
}

// Validate validates the query
func (q GetPerformanceSummaryQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	return nil
}

// PerformanceSummaryResult is the snapshot response
type PerformanceSummaryResult struct {
	ReviewCount         int       `json:"review_count"`
	AverageScore        float64   `json:"average_score"`
	AverageStudyMinutes float64   `json:"average_study_minutes"`
	CompletionRate      float64   `json:"completion_rate"`
	Trend               string    `json:"trend"`
	TrendSlope          float64   `json:"trend_slope"`
	RetentionRate       float64   `json:"retention_rate"`
	CognitiveLoadLimit  float64   `json:"cognitive_load_limit"`
	ReadingSpeedWPM     float64   `json:"reading_speed_wpm"`
	ComputedAt          time.Time `json:"computed_at"`
}
