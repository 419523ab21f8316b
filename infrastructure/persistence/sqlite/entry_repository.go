package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

type entryRow struct {
	ID                 string         `db:"id"`
	LearnerID          string         `db:"learner_id"`
	UnitID             string         `db:"unit_id"`
	SessionType        string         `db:"session_type"`
	ScheduledAt        time.Time      `db:"scheduled_at"`
	DurationMinutes    int            `db:"duration_minutes"`
	PriorityScore      float64        `db:"priority_score"`
	CognitiveLoadScore float64        `db:"cognitive_load_score"`
	IntervalDays       int            `db:"interval_days"`
	Status             string         `db:"status"`
	StartOffset        int            `db:"start_offset"`
	EndOffset          int            `db:"end_offset"`
	ReplacedBy         sql.NullString `db:"replaced_by"`
	CompletedAt        sql.NullTime   `db:"completed_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	Version            int            `db:"version"`
}

const entryUpsert = `
INSERT INTO schedule_entries (
	id, learner_id, unit_id, session_type, scheduled_at, duration_minutes,
	priority_score, cognitive_load_score, interval_days, status,
	start_offset, end_offset, replaced_by, completed_at, created_at, updated_at, version
) VALUES (
	:id, :learner_id, :unit_id, :session_type, :scheduled_at, :duration_minutes,
	:priority_score, :cognitive_load_score, :interval_days, :status,
	:start_offset, :end_offset, :replaced_by, :completed_at, :created_at, :updated_at, :version
)
ON CONFLICT(id) DO UPDATE SET
	scheduled_at = excluded.scheduled_at,
	status = excluded.status,
	replaced_by = excluded.replaced_by,
	completed_at = excluded.completed_at,
	updated_at = excluded.updated_at,
	version = excluded.version`

// EntryRepository implements ports.EntryRepository using SQLite
type EntryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.EntryRepository = (*EntryRepository)(nil)

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *sqlx.DB, logger *zap.Logger) *EntryRepository {
	return &EntryRepository{db: db, logger: logger}
}

func entryToRow(entry *entities.ScheduleEntry) entryRow {
	row := entryRow{
		ID:                 entry.ID().String(),
		LearnerID:          entry.LearnerID().String(),
		UnitID:             entry.UnitID().String(),
		SessionType:        string(entry.SessionType()),
		ScheduledAt:        entry.ScheduledAt().UTC(),
		DurationMinutes:    entry.DurationMinutes(),
		PriorityScore:      entry.PriorityScore(),
		CognitiveLoadScore: entry.CognitiveLoadScore(),
		IntervalDays:       entry.IntervalDays(),
		Status:             string(entry.Status()),
		StartOffset:        entry.StartOffset(),
		EndOffset:          entry.EndOffset(),
		CreatedAt:          entry.CreatedAt().UTC(),
		UpdatedAt:          entry.UpdatedAt().UTC(),
		Version:            entry.Version(),
	}
	if !entry.ReplacedBy().IsZero() {
		row.ReplacedBy = sql.NullString{String: entry.ReplacedBy().String(), Valid: true}
	}
	if entry.CompletedAt() != nil {
		row.CompletedAt = sql.NullTime{Time: entry.CompletedAt().UTC(), Valid: true}
	}
	return row
}

func entryFromRow(row entryRow) (*entities.ScheduleEntry, error) {
	entryID, err := valueobjects.NewEntryIDFromString(row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid entry ID")
	}
	learnerID, err := valueobjects.NewLearnerID(row.LearnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid learner ID")
	}
	unitID, err := valueobjects.NewUnitIDFromString(row.UnitID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid unit ID")
	}

	var replacedBy valueobjects.EntryID
	if row.ReplacedBy.Valid {
		replacedBy, err = valueobjects.NewEntryIDFromString(row.ReplacedBy.String)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invalid replacement ID")
		}
	}

	var completedAt *time.Time
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time
		completedAt = &t
	}

	return entities.ReconstructScheduleEntry(
		entryID,
		learnerID,
		unitID,
		entities.SessionType(row.SessionType),
		row.ScheduledAt,
		row.DurationMinutes,
		row.PriorityScore,
		row.CognitiveLoadScore,
		row.IntervalDays,
		entities.EntryStatus(row.Status),
		row.StartOffset,
		row.EndOffset,
		replacedBy,
		completedAt,
		row.CreatedAt,
		row.UpdatedAt,
		row.Version,
	), nil
}

func (r *EntryRepository) Save(ctx context.Context, entry *entities.ScheduleEntry) error {
	if _, err := r.db.NamedExecContext(ctx, entryUpsert, entryToRow(entry)); err != nil {
		return pkgerrors.NewDatabaseError("save entry", err)
	}
	return nil
}

// SaveBatch writes all entries in one transaction, all-or-nothing
func (r *EntryRepository) SaveBatch(ctx context.Context, entries []*entities.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.NewDatabaseError("begin entry batch", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if _, err := tx.NamedExecContext(ctx, entryUpsert, entryToRow(entry)); err != nil {
			return pkgerrors.NewDatabaseError("save entry batch", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.NewDatabaseError("commit entry batch", err)
	}

	r.logger.Debug("Entry batch saved", zap.Int("count", len(entries)))
	return nil
}

func (r *EntryRepository) GetByID(ctx context.Context, learnerID valueobjects.LearnerID, id valueobjects.EntryID) (*entities.ScheduleEntry, error) {
	var row entryRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM schedule_entries WHERE id = ? AND learner_id = ?`,
		id.String(), learnerID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError("entry")
		}
		return nil, pkgerrors.NewDatabaseError("get entry", err)
	}
	return entryFromRow(row)
}

func (r *EntryRepository) ListOpen(ctx context.Context, learnerID valueobjects.LearnerID) ([]*entities.ScheduleEntry, error) {
	return r.listEntries(ctx,
		`SELECT * FROM schedule_entries WHERE learner_id = ? AND status = ? ORDER BY scheduled_at`,
		learnerID.String(), string(entities.StatusScheduled))
}

func (r *EntryRepository) ListByDateRange(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ScheduleEntry, error) {
	return r.listEntries(ctx,
		`SELECT * FROM schedule_entries WHERE learner_id = ? AND scheduled_at >= ? AND scheduled_at < ? ORDER BY scheduled_at`,
		learnerID.String(), from.UTC(), to.UTC())
}

func (r *EntryRepository) ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ScheduleEntry, error) {
	return r.listEntries(ctx,
		`SELECT * FROM schedule_entries WHERE learner_id = ? AND unit_id = ? ORDER BY scheduled_at`,
		learnerID.String(), unitID.String())
}

func (r *EntryRepository) ListLearnersWithOpen(ctx context.Context) ([]valueobjects.LearnerID, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT learner_id FROM schedule_entries WHERE status = ? ORDER BY learner_id`,
		string(entities.StatusScheduled))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list open learners", err)
	}

	learners := make([]valueobjects.LearnerID, 0, len(ids))
	for _, id := range ids {
		learnerID, err := valueobjects.NewLearnerID(id)
		if err != nil {
			continue
		}
		learners = append(learners, learnerID)
	}
	return learners, nil
}

func (r *EntryRepository) listEntries(ctx context.Context, query string, args ...interface{}) ([]*entities.ScheduleEntry, error) {
	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, pkgerrors.NewDatabaseError("query entries", err)
	}

	entries := make([]*entities.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := entryFromRow(row)
		if err != nil {
			r.logger.Warn("Failed to reconstruct entry", zap.String("entryID", row.ID), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
