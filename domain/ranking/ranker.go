// Package ranking orders review candidates into a deterministic study queue.
package ranking

import (
	"sort"
	"time"

	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
)

// Candidate pairs a unit with its current memory state and expected review
// date, everything the ranker needs to place it in the queue.
type Candidate struct {
	UnitID          valueobjects.UnitID
	Difficulty      float64
	DueAt           time.Time
	MemoryState     memory.State
	PredictedRecall float64
	Overdue         bool
}

// Ranker produces a total order over review candidates.
// It is stateless and safe for concurrent use.
type Ranker struct {
	model *memory.Model
}

// NewRanker creates a ranker backed by the given memory model
func NewRanker(model *memory.Model) *Ranker {
	return &Ranker{model: model}
}

// Rank sorts candidates into study order. The order is deterministic:
//
//  1. overdue candidates before not-yet-due ones
//  2. lower predicted recall first
//  3. higher difficulty first
//  4. unit ID ascending
//
// Predicted recall is computed at the given time and written back onto each
// candidate so callers can reuse it for interval decisions.
func (r *Ranker) Rank(candidates []Candidate, now time.Time) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		ranked[i].PredictedRecall = r.model.PredictRecall(ranked[i].MemoryState, now)
		ranked[i].Overdue = ranked[i].DueAt.Before(now)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Overdue != b.Overdue {
			return a.Overdue
		}
		if a.PredictedRecall != b.PredictedRecall {
			return a.PredictedRecall < b.PredictedRecall
		}
		if a.Difficulty != b.Difficulty {
			return a.Difficulty > b.Difficulty
		}
		return a.UnitID.String() < b.UnitID.String()
	})

	return ranked
}

// PriorityScore maps a candidate's rank position to a normalized score in
// [0, 1], highest priority first. Used to stamp entries at placement time.
func PriorityScore(position, total int) float64 {
	if total <= 1 {
		return 1
	}
	return 1 - float64(position)/float64(total-1)*0.999
}
