package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// IdempotencyStore implements ports.IdempotencyStore on the processed_events
// table. The composite primary key makes Reserve atomic: the second insert
// for the same event fails the unique constraint.
type IdempotencyStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new SQLite-backed idempotency store
func NewIdempotencyStore(db *sqlx.DB, logger *zap.Logger) *IdempotencyStore {
	return &IdempotencyStore{db: db, logger: logger}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_events (learner_id, event_id, created_at) VALUES (?, ?, ?)`,
		learnerID.String(), eventID, time.Now().UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return false, nil
		}
		return false, pkgerrors.NewDatabaseError("reserve event", err)
	}

	s.logger.Debug("Event reserved",
		zap.String("learnerID", learnerID.String()),
		zap.String("eventID", eventID),
	)
	return true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, learnerID valueobjects.LearnerID, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE learner_id = ? AND event_id = ?`,
		learnerID.String(), eventID)
	if err != nil {
		return pkgerrors.NewDatabaseError("release event", err)
	}
	return nil
}
