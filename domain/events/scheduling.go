package events

import (
	"time"

	"studypace/domain/core/valueobjects"
)

// Schedule Entry Events

// EntryScheduled is raised when a new schedule entry is created
type EntryScheduled struct {
	BaseEvent
	EntryID     valueobjects.EntryID   `json:"entry_id"`
	LearnerID   valueobjects.LearnerID `json:"learner_id"`
	UnitID      valueobjects.UnitID    `json:"unit_id"`
	SessionType string                 `json:"session_type"`
	ScheduledAt time.Time              `json:"scheduled_at"`
}

// NewEntryScheduled creates an EntryScheduled event
func NewEntryScheduled(entryID valueobjects.EntryID, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID, sessionType string, scheduledAt, timestamp time.Time) EntryScheduled {
	return EntryScheduled{
		BaseEvent: BaseEvent{
			AggregateID: entryID.String(),
			EventType:   "entry.scheduled",
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:     entryID,
		LearnerID:   learnerID,
		UnitID:      unitID,
		SessionType: sessionType,
		ScheduledAt: scheduledAt,
	}
}

// EntryCompleted is raised when an entry is marked completed
type EntryCompleted struct {
	BaseEvent
	EntryID     valueobjects.EntryID   `json:"entry_id"`
	LearnerID   valueobjects.LearnerID `json:"learner_id"`
	UnitID      valueobjects.UnitID    `json:"unit_id"`
	CompletedAt time.Time              `json:"completed_at"`
}

// NewEntryCompleted creates an EntryCompleted event
func NewEntryCompleted(entryID valueobjects.EntryID, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID, completedAt time.Time) EntryCompleted {
	return EntryCompleted{
		BaseEvent: BaseEvent{
			AggregateID: entryID.String(),
			EventType:   "entry.completed",
			Timestamp:   completedAt,
			Version:     1,
		},
		EntryID:     entryID,
		LearnerID:   learnerID,
		UnitID:      unitID,
		CompletedAt: completedAt,
	}
}

// EntrySkipped is raised when an entry is closed without being studied
type EntrySkipped struct {
	BaseEvent
	EntryID   valueobjects.EntryID   `json:"entry_id"`
	LearnerID valueobjects.LearnerID `json:"learner_id"`
	UnitID    valueobjects.UnitID    `json:"unit_id"`
	Reason    string                 `json:"reason"`
}

// NewEntrySkipped creates an EntrySkipped event
func NewEntrySkipped(entryID valueobjects.EntryID, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID, reason string, timestamp time.Time) EntrySkipped {
	return EntrySkipped{
		BaseEvent: BaseEvent{
			AggregateID: entryID.String(),
			EventType:   "entry.skipped",
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:   entryID,
		LearnerID: learnerID,
		UnitID:    unitID,
		Reason:    reason,
	}
}

// EntryRescheduled is raised when an entry is closed and replaced by a new one
type EntryRescheduled struct {
	BaseEvent
	EntryID      valueobjects.EntryID   `json:"entry_id"`
	ReplacedByID valueobjects.EntryID   `json:"replaced_by_id"`
	LearnerID    valueobjects.LearnerID `json:"learner_id"`
	UnitID       valueobjects.UnitID    `json:"unit_id"`
	NewDate      time.Time              `json:"new_date"`
}

// NewEntryRescheduled creates an EntryRescheduled event
func NewEntryRescheduled(entryID, replacedByID valueobjects.EntryID, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID, newDate, timestamp time.Time) EntryRescheduled {
	return EntryRescheduled{
		BaseEvent: BaseEvent{
			AggregateID: entryID.String(),
			EventType:   "entry.rescheduled",
			Timestamp:   timestamp,
			Version:     1,
		},
		EntryID:      entryID,
		ReplacedByID: replacedByID,
		LearnerID:    learnerID,
		UnitID:       unitID,
		NewDate:      newDate,
	}
}

// Performance Events

// ReviewRecorded is raised when a performance observation is recorded
type ReviewRecorded struct {
	BaseEvent
	LearnerID       valueobjects.LearnerID `json:"learner_id"`
	UnitID          valueobjects.UnitID    `json:"unit_id"`
	Score           float64                `json:"score"`
	PredictedRecall float64                `json:"predicted_recall"`
	NewHalfLife     float64                `json:"new_half_life"`
}

// NewReviewRecorded creates a ReviewRecorded event
func NewReviewRecorded(learnerID valueobjects.LearnerID, unitID valueobjects.UnitID, score, predictedRecall, newHalfLife float64, timestamp time.Time) ReviewRecorded {
	return ReviewRecorded{
		BaseEvent: BaseEvent{
			AggregateID: learnerID.String(),
			EventType:   "review.recorded",
			Timestamp:   timestamp,
			Version:     1,
		},
		LearnerID:       learnerID,
		UnitID:          unitID,
		Score:           score,
		PredictedRecall: predictedRecall,
		NewHalfLife:     newHalfLife,
	}
}

// ScheduleAdapted is raised when the adaptation engine changes a learner's plan
type ScheduleAdapted struct {
	BaseEvent
	LearnerID valueobjects.LearnerID `json:"learner_id"`
	UnitID    valueobjects.UnitID    `json:"unit_id"`
	Actions   []string               `json:"actions"`
}

// NewScheduleAdapted creates a ScheduleAdapted event
func NewScheduleAdapted(learnerID valueobjects.LearnerID, unitID valueobjects.UnitID, actions []string, timestamp time.Time) ScheduleAdapted {
	return ScheduleAdapted{
		BaseEvent: BaseEvent{
			AggregateID: learnerID.String(),
			EventType:   "schedule.adapted",
			Timestamp:   timestamp,
			Version:     1,
		},
		LearnerID: learnerID,
		UnitID:    unitID,
		Actions:   actions,
	}
}
