package memory

import (
	"context"
	"sync"

	"studypace/application/ports"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// Locker is a per-learner mutex arena implementing ports.LearnerLocker.
// Acquire fails fast with a ConcurrencyConflict when the lock is held,
// matching the distributed lock's contract so callers behave identically
// against either implementation.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocker creates an empty lock arena
func NewLocker() *Locker {
	return &Locker{held: make(map[string]bool)}
}

// Acquire takes the learner's lock
func (l *Locker) Acquire(ctx context.Context, learnerID valueobjects.LearnerID) (ports.Unlocker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := learnerID.String()
	if l.held[key] {
		return nil, pkgerrors.NewConcurrencyError("learner " + key)
	}
	l.held[key] = true
	return &unlocker{locker: l, key: key}, nil
}

type unlocker struct {
	locker *Locker
	key    string
	once   sync.Once
}

// Release frees the lock; safe to call more than once
func (u *unlocker) Release(ctx context.Context) error {
	u.once.Do(func() {
		u.locker.mu.Lock()
		delete(u.locker.held, u.key)
		u.locker.mu.Unlock()
	})
	return nil
}
