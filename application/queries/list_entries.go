package queries

import (
	"errors"
	"time"
)

// ListEntriesQuery requests a learner's schedule entries within a date range
type ListEntriesQuery struct {
	LearnerID string    `json:"learner_id" validate:"required"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Page      int       `json:"page" validate:"gte=0"`
	PageSize  int       `json:"page_size" validate:"gte=0,lte=200"`
}

// Validate validates the query
func (q ListEntriesQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if !q.To.IsZero() && !q.From.IsZero() && q.To.Before(q.From) {
		return errors.New("date range end must not precede its start")
	}
	return nil
}

// EntryView is the read model for one schedule entry
type EntryView struct {
	ID                 string     `json:"id"`
	UnitID             string     `json:"unit_id"`
	SessionType        string     `json:"session_type"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	DurationMinutes    int        `json:"duration_minutes"`
	PriorityScore      float64    `json:"priority_score"`
	CognitiveLoadScore float64    `json:"cognitive_load_score"`
	IntervalDays       int        `json:"repetition_interval_days"`
	Status             string     `json:"status"`
	StartOffset        int        `json:"start_offset"`
	EndOffset          int        `json:"end_offset"`
	ReplacedBy         string     `json:"replaced_by,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// ListEntriesResult is the paginated entry listing
type ListEntriesResult struct {
	Entries  []EntryView `json:"entries"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}
