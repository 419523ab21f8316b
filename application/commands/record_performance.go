package commands

import (
	"errors"
	"time"
)

// RecordPerformanceCommand carries one observed quiz or session outcome.
// EventID is the caller's dedupe key: replaying the same event is a no-op.
type RecordPerformanceCommand struct {
	LearnerID      string    `json:"learner_id" validate:"required"`
	UnitID         string    `json:"unit_id" validate:"required,uuid"`
	EventID        string    `json:"event_id" validate:"required"`
	ObservedScore  float64   `json:"observed_score" validate:"gte=0,lte=1"`
	ElapsedMinutes float64   `json:"elapsed_minutes" validate:"gte=0"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
}

// Validate validates the command
func (cmd RecordPerformanceCommand) Validate() error {
	if cmd.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if cmd.UnitID == "" {
		return errors.New("unit ID is required")
	}
	if cmd.EventID == "" {
		return errors.New("event ID is required")
	}
	if cmd.ObservedScore < 0 || cmd.ObservedScore > 1 {
		return errors.New("observed score must be in [0, 1]")
	}
	if cmd.ElapsedMinutes < 0 {
		return errors.New("elapsed time cannot be negative")
	}
	if cmd.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}
