package commands

import (
	"errors"
	"time"
)

// GenerateScheduleCommand requests a new schedule for one learner and material
type GenerateScheduleCommand struct {
	LearnerID         string    `json:"learner_id" validate:"required"`
	MaterialID        string    `json:"material_id" validate:"required"`
	TargetDate        time.Time `json:"target_date" validate:"required"`
	DailyStudyMinutes int       `json:"daily_study_minutes" validate:"required,gt=0"`
}

// Validate validates the command
func (cmd GenerateScheduleCommand) Validate() error {
	if cmd.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if cmd.MaterialID == "" {
		return errors.New("material ID is required")
	}
	if cmd.TargetDate.IsZero() {
		return errors.New("target date is required")
	}
	if cmd.DailyStudyMinutes <= 0 {
		return errors.New("daily study time must be positive")
	}
	return nil
}
