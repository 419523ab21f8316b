package handlers

import (
	"time"

	"studypace/domain/core/entities"
	"studypace/domain/memory"
)

// deriveMemoryState rebuilds the per-unit memory state from the review
// history. Records must be ordered oldest first. With no history, the state
// seeds from the learner's retention rate and the unit's difficulty, dated
// one day before the review so the first fold sees a positive elapsed time.
func deriveMemoryState(
	model *memory.Model,
	records []*entities.ReviewRecord,
	retentionRate, difficulty float64,
	seedAt time.Time,
) memory.State {
	if len(records) == 0 {
		return model.Seed(retentionRate, difficulty, seedAt.AddDate(0, 0, -1))
	}

	var successes, failures int
	for _, r := range records {
		if r.Score().Value() >= memory.PassThreshold {
			successes++
		} else {
			failures++
		}
	}

	last := records[len(records)-1]
	return memory.State{
		HalfLifeDays:   last.HalfLifeDays(),
		Successes:      successes,
		Failures:       failures,
		LastReviewedAt: last.RecordedAt(),
	}
}
