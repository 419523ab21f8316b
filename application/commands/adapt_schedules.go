package commands

import "errors"

// AdaptSchedulesCommand re-evaluates a learner's open entries against the
// current memory state, without a new performance event. MaterialID is an
// optional filter.
type AdaptSchedulesCommand struct {
	LearnerID  string `json:"learner_id" validate:"required"`
	MaterialID string `json:"material_id"`
}

// Validate validates the command
func (cmd AdaptSchedulesCommand) Validate() error {
	if cmd.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	return nil
}
