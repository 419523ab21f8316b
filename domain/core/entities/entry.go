package entities

import (
	"time"

	"studypace/domain/config"
	"studypace/domain/core/valueobjects"
	"studypace/domain/events"
	pkgerrors "studypace/pkg/errors"
)

// EntryStatus represents the state of a schedule entry
type EntryStatus string

const (
	StatusScheduled   EntryStatus = "scheduled"
	StatusCompleted   EntryStatus = "completed"
	StatusSkipped     EntryStatus = "skipped"
	StatusRescheduled EntryStatus = "rescheduled"
)

// SessionType classifies what kind of study session an entry represents
type SessionType string

const (
	SessionStudy      SessionType = "study"
	SessionReview     SessionType = "review"
	SessionAssessment SessionType = "assessment"
)

// ValidSessionType reports whether the given session type is known
func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionStudy, SessionReview, SessionAssessment:
		return true
	default:
		return false
	}
}

// ScheduleEntry is one planned or executed study slot.
// This is a rich domain model with encapsulated business logic.
// Closed entries are immutable: rescheduling closes the entry and creates a
// replacement, preserving the audit trail.
type ScheduleEntry struct {
	// Private fields ensure encapsulation
	id                 valueobjects.EntryID
	learnerID          valueobjects.LearnerID
	unitID             valueobjects.UnitID
	sessionType        SessionType
	scheduledAt        time.Time
	durationMinutes    int
	priorityScore      float64
	cognitiveLoadScore float64
	intervalDays       int
	status             EntryStatus
	startOffset        int
	endOffset          int
	replacedBy         valueobjects.EntryID
	completedAt        *time.Time
	createdAt          time.Time
	updatedAt          time.Time
	version            int

	// Domain events that occurred during this aggregate's lifetime
	events []events.DomainEvent
}

// NewScheduleEntry creates a new entry with full business rule validation
func NewScheduleEntry(
	learnerID valueobjects.LearnerID,
	unitID valueobjects.UnitID,
	sessionType SessionType,
	scheduledAt time.Time,
	durationMinutes int,
	priorityScore, cognitiveLoadScore float64,
	intervalDays int,
	startOffset, endOffset int,
) (*ScheduleEntry, error) {
	if learnerID.IsZero() {
		return nil, pkgerrors.NewValidationError("learnerID cannot be empty")
	}
	if unitID.IsZero() {
		return nil, pkgerrors.NewValidationError("unitID cannot be empty")
	}
	if !ValidSessionType(sessionType) {
		return nil, pkgerrors.NewValidationError("invalid session type")
	}
	if durationMinutes <= 0 {
		return nil, pkgerrors.NewValidationError("duration must be positive")
	}
	if intervalDays < 0 {
		return nil, pkgerrors.NewValidationError("repetition interval cannot be negative")
	}
	if startOffset < 0 || endOffset <= startOffset {
		return nil, pkgerrors.NewValidationError("content offsets must satisfy 0 <= start < end")
	}

	now := time.Now()
	entry := &ScheduleEntry{
		id:                 valueobjects.NewEntryID(),
		learnerID:          learnerID,
		unitID:             unitID,
		sessionType:        sessionType,
		scheduledAt:        scheduledAt,
		durationMinutes:    durationMinutes,
		priorityScore:      priorityScore,
		cognitiveLoadScore: cognitiveLoadScore,
		intervalDays:       intervalDays,
		status:             StatusScheduled,
		startOffset:        startOffset,
		endOffset:          endOffset,
		createdAt:          now,
		updatedAt:          now,
		version:            1,
		events:             []events.DomainEvent{},
	}

	entry.addEvent(events.NewEntryScheduled(entry.id, learnerID, unitID, string(sessionType), scheduledAt, now))

	return entry, nil
}

// ReconstructScheduleEntry reconstructs an entry from repository data with preserved timestamps
func ReconstructScheduleEntry(
	id valueobjects.EntryID,
	learnerID valueobjects.LearnerID,
	unitID valueobjects.UnitID,
	sessionType SessionType,
	scheduledAt time.Time,
	durationMinutes int,
	priorityScore, cognitiveLoadScore float64,
	intervalDays int,
	status EntryStatus,
	startOffset, endOffset int,
	replacedBy valueobjects.EntryID,
	completedAt *time.Time,
	createdAt, updatedAt time.Time,
	version int,
) *ScheduleEntry {
	return &ScheduleEntry{
		id:                 id,
		learnerID:          learnerID,
		unitID:             unitID,
		sessionType:        sessionType,
		scheduledAt:        scheduledAt,
		durationMinutes:    durationMinutes,
		priorityScore:      priorityScore,
		cognitiveLoadScore: cognitiveLoadScore,
		intervalDays:       intervalDays,
		status:             status,
		startOffset:        startOffset,
		endOffset:          endOffset,
		replacedBy:         replacedBy,
		completedAt:        completedAt,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
		version:            version,
		events:             []events.DomainEvent{},
	}
}

// ID returns the entry's unique identifier
func (e *ScheduleEntry) ID() valueobjects.EntryID {
	return e.id
}

// LearnerID returns the owning learner's ID
func (e *ScheduleEntry) LearnerID() valueobjects.LearnerID {
	return e.learnerID
}

// UnitID returns the unit this entry covers
func (e *ScheduleEntry) UnitID() valueobjects.UnitID {
	return e.unitID
}

// SessionType returns the entry's session type
func (e *ScheduleEntry) SessionType() SessionType {
	return e.sessionType
}

// ScheduledAt returns when the session is planned
func (e *ScheduleEntry) ScheduledAt() time.Time {
	return e.scheduledAt
}

// DurationMinutes returns the planned session length
func (e *ScheduleEntry) DurationMinutes() int {
	return e.durationMinutes
}

// PriorityScore returns the ranking score the entry was placed with
func (e *ScheduleEntry) PriorityScore() float64 {
	return e.priorityScore
}

// CognitiveLoadScore returns the estimated load of the session
func (e *ScheduleEntry) CognitiveLoadScore() float64 {
	return e.cognitiveLoadScore
}

// IntervalDays returns the repetition interval in days
func (e *ScheduleEntry) IntervalDays() int {
	return e.intervalDays
}

// Status returns the entry's current status
func (e *ScheduleEntry) Status() EntryStatus {
	return e.status
}

// StartOffset returns the starting content offset
func (e *ScheduleEntry) StartOffset() int {
	return e.startOffset
}

// EndOffset returns the ending content offset
func (e *ScheduleEntry) EndOffset() int {
	return e.endOffset
}

// ReplacedBy returns the ID of the replacement entry, if any
func (e *ScheduleEntry) ReplacedBy() valueobjects.EntryID {
	return e.replacedBy
}

// CompletedAt returns when the entry was completed, if it was
func (e *ScheduleEntry) CompletedAt() *time.Time {
	return e.completedAt
}

// CreatedAt returns when the entry was created
func (e *ScheduleEntry) CreatedAt() time.Time {
	return e.createdAt
}

// UpdatedAt returns when the entry was last updated
func (e *ScheduleEntry) UpdatedAt() time.Time {
	return e.updatedAt
}

// Version returns the entry's version for optimistic locking
func (e *ScheduleEntry) Version() int {
	return e.version
}

// IsOpen reports whether the entry is still awaiting study
func (e *ScheduleEntry) IsOpen() bool {
	return e.status == StatusScheduled
}

// IsOverdue reports whether the entry's slot has passed the grace period
func (e *ScheduleEntry) IsOverdue(now time.Time, grace time.Duration) bool {
	return e.status == StatusScheduled && now.After(e.scheduledAt.Add(grace))
}

// Complete marks the entry as completed
func (e *ScheduleEntry) Complete(at time.Time) error {
	if e.status != StatusScheduled {
		return pkgerrors.NewConflictError("entry is already closed")
	}

	e.status = StatusCompleted
	e.completedAt = &at
	e.updatedAt = at
	e.version++

	e.addEvent(events.NewEntryCompleted(e.id, e.learnerID, e.unitID, at))

	return nil
}

// Skip closes the entry without study, typically on a missed deadline
func (e *ScheduleEntry) Skip(reason string) error {
	if e.status != StatusScheduled {
		return pkgerrors.NewConflictError("entry is already closed")
	}

	now := time.Now()
	e.status = StatusSkipped
	e.updatedAt = now
	e.version++

	e.addEvent(events.NewEntrySkipped(e.id, e.learnerID, e.unitID, reason, now))

	return nil
}

// Reschedule closes the entry and creates a replacement at the new time,
// carrying over the unit and content offsets
func (e *ScheduleEntry) Reschedule(newTime time.Time) (*ScheduleEntry, error) {
	if e.status != StatusScheduled {
		return nil, pkgerrors.NewConflictError("entry is already closed")
	}

	replacement, err := NewScheduleEntry(
		e.learnerID,
		e.unitID,
		e.sessionType,
		newTime,
		e.durationMinutes,
		e.priorityScore,
		e.cognitiveLoadScore,
		e.intervalDays,
		e.startOffset,
		e.endOffset,
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	e.status = StatusRescheduled
	e.replacedBy = replacement.id
	e.updatedAt = now
	e.version++

	e.addEvent(events.NewEntryRescheduled(e.id, replacement.id, e.learnerID, e.unitID, newTime, now))

	return replacement, nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (e *ScheduleEntry) GetUncommittedEvents() []events.DomainEvent {
	return e.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (e *ScheduleEntry) MarkEventsAsCommitted() {
	e.events = []events.DomainEvent{}
}

// addEvent adds a domain event to the uncommitted list
func (e *ScheduleEntry) addEvent(event events.DomainEvent) {
	e.events = append(e.events, event)
}

// DefaultGracePeriod returns the configured sweep grace period
func DefaultGracePeriod() time.Duration {
	return config.DefaultDomainConfig().GracePeriod
}
