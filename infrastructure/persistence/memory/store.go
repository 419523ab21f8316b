// Package memory provides in-memory implementations of the persistence
// ports. Used for tests and local runs without external storage.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// EntryRepository is an in-memory ports.EntryRepository
type EntryRepository struct {
	mu      sync.RWMutex
	entries map[string]map[string]*entities.ScheduleEntry // learnerID -> entryID
}

// NewEntryRepository creates an empty entry repository
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{entries: make(map[string]map[string]*entities.ScheduleEntry)}
}

// Save persists an entry
func (r *EntryRepository) Save(ctx context.Context, entry *entities.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(entry)
	return nil
}

// SaveBatch persists a batch; in memory the batch is trivially atomic under
// the repository lock
func (r *EntryRepository) SaveBatch(ctx context.Context, entries []*entities.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.put(e)
	}
	return nil
}

func (r *EntryRepository) put(entry *entities.ScheduleEntry) {
	learner := entry.LearnerID().String()
	if r.entries[learner] == nil {
		r.entries[learner] = make(map[string]*entities.ScheduleEntry)
	}
	r.entries[learner][entry.ID().String()] = entry
}

// GetByID retrieves an entry by its ID
func (r *EntryRepository) GetByID(ctx context.Context, learnerID valueobjects.LearnerID, id valueobjects.EntryID) (*entities.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.entries[learnerID.String()][id.String()]; ok {
		return entry, nil
	}
	return nil, pkgerrors.NewNotFoundError("schedule entry")
}

// ListOpen retrieves all open entries for a learner, ordered by scheduled time
func (r *EntryRepository) ListOpen(ctx context.Context, learnerID valueobjects.LearnerID) ([]*entities.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []*entities.ScheduleEntry
	for _, e := range r.entries[learnerID.String()] {
		if e.IsOpen() {
			open = append(open, e)
		}
	}
	sortByScheduledAt(open)
	return open, nil
}

// ListByDateRange retrieves entries scheduled within [from, to)
func (r *EntryRepository) ListByDateRange(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ScheduleEntry
	for _, e := range r.entries[learnerID.String()] {
		if !e.ScheduledAt().Before(from) && e.ScheduledAt().Before(to) {
			out = append(out, e)
		}
	}
	sortByScheduledAt(out)
	return out, nil
}

// ListByUnit retrieves all entries for a (learner, unit) pair
func (r *EntryRepository) ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ScheduleEntry
	for _, e := range r.entries[learnerID.String()] {
		if e.UnitID().Equals(unitID) {
			out = append(out, e)
		}
	}
	sortByScheduledAt(out)
	return out, nil
}

// ListLearnersWithOpen returns learners holding open entries
func (r *EntryRepository) ListLearnersWithOpen(ctx context.Context) ([]valueobjects.LearnerID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var learners []valueobjects.LearnerID
	for learner, byID := range r.entries {
		for _, e := range byID {
			if e.IsOpen() {
				id, err := valueobjects.NewLearnerID(learner)
				if err != nil {
					return nil, err
				}
				learners = append(learners, id)
				break
			}
		}
	}
	sort.Slice(learners, func(i, j int) bool { return learners[i].String() < learners[j].String() })
	return learners, nil
}

func sortByScheduledAt(entries []*entities.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ScheduledAt().Before(entries[j].ScheduledAt())
	})
}

// ReviewRepository is an in-memory ports.ReviewRepository
type ReviewRepository struct {
	mu      sync.RWMutex
	records map[string][]*entities.ReviewRecord // learnerID
}

// NewReviewRepository creates an empty review repository
func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{records: make(map[string][]*entities.ReviewRecord)}
}

// Append persists a record
func (r *ReviewRepository) Append(ctx context.Context, record *entities.ReviewRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	learner := record.LearnerID().String()
	r.records[learner] = append(r.records[learner], record)
	sort.SliceStable(r.records[learner], func(i, j int) bool {
		return r.records[learner][i].RecordedAt().Before(r.records[learner][j].RecordedAt())
	})
	return nil
}

// ListByUnit retrieves records for a (learner, unit) pair, oldest first
func (r *ReviewRepository) ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ReviewRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ReviewRecord
	for _, rec := range r.records[learnerID.String()] {
		if rec.UnitID().Equals(unitID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListByLearner retrieves records in [from, to), oldest first
func (r *ReviewRepository) ListByLearner(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ReviewRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.ReviewRecord
	for _, rec := range r.records[learnerID.String()] {
		if !rec.RecordedAt().Before(from) && rec.RecordedAt().Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ProfileRepository is an in-memory ports.ProfileRepository
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*entities.LearnerProfile
}

// NewProfileRepository creates an empty profile repository
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]*entities.LearnerProfile)}
}

// Save persists a profile
func (r *ProfileRepository) Save(ctx context.Context, profile *entities.LearnerProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.LearnerID().String()] = profile
	return nil
}

// GetByLearnerID retrieves a profile
func (r *ProfileRepository) GetByLearnerID(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.profiles[learnerID.String()]; ok {
		return p, nil
	}
	return nil, pkgerrors.NewNotFoundError("learner profile")
}

// GetOrCreate retrieves a profile, creating a default one if absent
func (r *ProfileRepository) GetOrCreate(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[learnerID.String()]; ok {
		return p, nil
	}
	p, err := entities.NewLearnerProfile(learnerID)
	if err != nil {
		return nil, err
	}
	r.profiles[learnerID.String()] = p
	return p, nil
}

// UnitRepository is an in-memory ports.UnitRepository
type UnitRepository struct {
	mu    sync.RWMutex
	units map[string]*entities.MaterialUnit
}

// NewUnitRepository creates an empty unit repository
func NewUnitRepository() *UnitRepository {
	return &UnitRepository{units: make(map[string]*entities.MaterialUnit)}
}

// Save persists a unit
func (r *UnitRepository) Save(ctx context.Context, unit *entities.MaterialUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[unit.ID().String()] = unit
	return nil
}

// GetByID retrieves a unit
func (r *UnitRepository) GetByID(ctx context.Context, id valueobjects.UnitID) (*entities.MaterialUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.units[id.String()]; ok {
		return u, nil
	}
	return nil, pkgerrors.NewNotFoundError("material unit")
}

// ListByMaterial retrieves a material's units in order
func (r *UnitRepository) ListByMaterial(ctx context.Context, materialID string) ([]*entities.MaterialUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.MaterialUnit
	for _, u := range r.units {
		if u.MaterialID() == materialID {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex() < out[j].OrderIndex() })
	return out, nil
}

// IdempotencyStore is an in-memory ports.IdempotencyStore
type IdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewIdempotencyStore creates an empty idempotency store
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{seen: make(map[string]bool)}
}

// Reserve claims an event ID
func (s *IdempotencyStore) Reserve(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := learnerID.String() + "#" + eventID
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

// Release frees a reservation
func (s *IdempotencyStore) Release(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, learnerID.String()+"#"+eventID)
	return nil
}
