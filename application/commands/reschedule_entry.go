package commands

import (
	"errors"
	"time"
)

// RescheduleEntryCommand moves an open entry to a new time. The entry is
// closed and replaced; closed entries are never edited in place.
type RescheduleEntryCommand struct {
	LearnerID string    `json:"learner_id" validate:"required"`
	EntryID   string    `json:"entry_id" validate:"required,uuid"`
	NewTime   time.Time `json:"new_time" validate:"required"`
}

// Validate validates the command
func (cmd RescheduleEntryCommand) Validate() error {
	if cmd.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if cmd.EntryID == "" {
		return errors.New("entry ID is required")
	}
	if cmd.NewTime.IsZero() {
		return errors.New("new time is required")
	}
	return nil
}

// CompleteEntryCommand marks an open entry completed without a scored
// performance event (manual completion from the UI)
type CompleteEntryCommand struct {
	LearnerID   string    `json:"learner_id" validate:"required"`
	EntryID     string    `json:"entry_id" validate:"required,uuid"`
	CompletedAt time.Time `json:"completed_at"`
}

// Validate validates the command
func (cmd CompleteEntryCommand) Validate() error {
	if cmd.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if cmd.EntryID == "" {
		return errors.New("entry ID is required")
	}
	return nil
}
