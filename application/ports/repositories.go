package ports

import (
	"context"
	"time"

	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/events"
)

// EntryRepository defines the interface for schedule entry persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type EntryRepository interface {
	// Save persists an entry (create or update)
	Save(ctx context.Context, entry *entities.ScheduleEntry) error

	// SaveBatch persists a generation batch atomically, all-or-nothing
	SaveBatch(ctx context.Context, entries []*entities.ScheduleEntry) error

	// GetByID retrieves an entry by its ID
	GetByID(ctx context.Context, learnerID valueobjects.LearnerID, id valueobjects.EntryID) (*entities.ScheduleEntry, error)

	// ListOpen retrieves all entries in status scheduled for a learner
	ListOpen(ctx context.Context, learnerID valueobjects.LearnerID) ([]*entities.ScheduleEntry, error)

	// ListByDateRange retrieves entries scheduled within [from, to)
	ListByDateRange(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ScheduleEntry, error)

	// ListByUnit retrieves all entries for a (learner, unit) pair
	ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ScheduleEntry, error)

	// ListLearnersWithOpen returns the learners that currently have open entries,
	// used by the missed-deadline sweep
	ListLearnersWithOpen(ctx context.Context) ([]valueobjects.LearnerID, error)
}

// ReviewRepository defines the interface for review record persistence.
// Records are append-only.
type ReviewRepository interface {
	// Append persists a new review record
	Append(ctx context.Context, record *entities.ReviewRecord) error

	// ListByUnit retrieves records for a (learner, unit) pair, oldest first
	ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ReviewRecord, error)

	// ListByLearner retrieves the learner's records in [from, to), oldest first
	ListByLearner(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ReviewRecord, error)
}

// ProfileRepository defines the interface for learner profile persistence
type ProfileRepository interface {
	// Save persists a profile (create or update)
	Save(ctx context.Context, profile *entities.LearnerProfile) error

	// GetByLearnerID retrieves a profile, or a NotFound error
	GetByLearnerID(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error)

	// GetOrCreate retrieves a profile, creating a default one if absent
	GetOrCreate(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error)
}

// UnitRepository defines the interface for material unit persistence
type UnitRepository interface {
	// Save persists a unit
	Save(ctx context.Context, unit *entities.MaterialUnit) error

	// GetByID retrieves a unit by its ID
	GetByID(ctx context.Context, id valueobjects.UnitID) (*entities.MaterialUnit, error)

	// ListByMaterial retrieves a material's units in order
	ListByMaterial(ctx context.Context, materialID string) ([]*entities.MaterialUnit, error)
}

// IdempotencyStore guards against replayed performance events.
// Reserve must be atomic: exactly one caller wins for a given event ID.
type IdempotencyStore interface {
	// Reserve claims an event ID. Returns false when the event was already
	// processed.
	Reserve(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) (bool, error)

	// Release frees a reservation after a failed processing attempt so the
	// event can be retried
	Release(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) error
}

// LearnerLocker provides per-learner mutual exclusion around
// read-modify-write cycles over the entry set
type LearnerLocker interface {
	// Acquire takes the learner's lock, returning a ConcurrencyConflict
	// error when it is held elsewhere
	Acquire(ctx context.Context, learnerID valueobjects.LearnerID) (Unlocker, error)
}

// Unlocker releases a held lock. Release must be safe to call on all exit
// paths, including after errors.
type Unlocker interface {
	Release(ctx context.Context) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
