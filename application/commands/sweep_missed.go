package commands

// SweepMissedCommand closes entries whose scheduled time passed the grace
// period without any completion or abandon signal. Dispatched periodically
// by the sweeper process.
type SweepMissedCommand struct{}

// Validate validates the command
func (cmd SweepMissedCommand) Validate() error {
	return nil
}
