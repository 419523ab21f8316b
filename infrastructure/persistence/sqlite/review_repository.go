package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

type reviewRow struct {
	ID              string    `db:"id"`
	LearnerID       string    `db:"learner_id"`
	UnitID          string    `db:"unit_id"`
	EventID         string    `db:"event_id"`
	Score           float64   `db:"score"`
	ElapsedMinutes  float64   `db:"elapsed_minutes"`
	PredictedRecall float64   `db:"predicted_recall"`
	HalfLifeDays    float64   `db:"half_life_days"`
	RecordedAt      time.Time `db:"recorded_at"`
}

// ReviewRepository implements ports.ReviewRepository using SQLite
type ReviewRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sqlx.DB, logger *zap.Logger) *ReviewRepository {
	return &ReviewRepository{db: db, logger: logger}
}

func (r *ReviewRepository) Append(ctx context.Context, record *entities.ReviewRecord) error {
	row := reviewRow{
		ID:              record.ID(),
		LearnerID:       record.LearnerID().String(),
		UnitID:          record.UnitID().String(),
		EventID:         record.EventID(),
		Score:           record.Score().Value(),
		ElapsedMinutes:  record.ElapsedMinutes(),
		PredictedRecall: record.PredictedRecall(),
		HalfLifeDays:    record.HalfLifeDays(),
		RecordedAt:      record.RecordedAt().UTC(),
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO review_records (
			id, learner_id, unit_id, event_id, score, elapsed_minutes,
			predicted_recall, half_life_days, recorded_at
		) VALUES (
			:id, :learner_id, :unit_id, :event_id, :score, :elapsed_minutes,
			:predicted_recall, :half_life_days, :recorded_at
		)`, row)
	if err != nil {
		return pkgerrors.NewDatabaseError("append review record", err)
	}
	return nil
}

func (r *ReviewRepository) ListByUnit(ctx context.Context, learnerID valueobjects.LearnerID, unitID valueobjects.UnitID) ([]*entities.ReviewRecord, error) {
	return r.listRecords(ctx,
		`SELECT * FROM review_records WHERE learner_id = ? AND unit_id = ? ORDER BY recorded_at`,
		learnerID.String(), unitID.String())
}

func (r *ReviewRepository) ListByLearner(ctx context.Context, learnerID valueobjects.LearnerID, from, to time.Time) ([]*entities.ReviewRecord, error) {
	return r.listRecords(ctx,
		`SELECT * FROM review_records WHERE learner_id = ? AND recorded_at >= ? AND recorded_at < ? ORDER BY recorded_at`,
		learnerID.String(), from.UTC(), to.UTC())
}

func (r *ReviewRepository) listRecords(ctx context.Context, query string, args ...interface{}) ([]*entities.ReviewRecord, error) {
	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, pkgerrors.NewDatabaseError("query review records", err)
	}

	records := make([]*entities.ReviewRecord, 0, len(rows))
	for _, row := range rows {
		record, err := reviewFromRow(row)
		if err != nil {
			r.logger.Warn("Failed to reconstruct review record", zap.String("recordID", row.ID), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func reviewFromRow(row reviewRow) (*entities.ReviewRecord, error) {
	learnerID, err := valueobjects.NewLearnerID(row.LearnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid learner ID")
	}
	unitID, err := valueobjects.NewUnitIDFromString(row.UnitID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid unit ID")
	}
	score, err := valueobjects.NewScore(row.Score)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid score")
	}

	return entities.ReconstructReviewRecord(
		row.ID,
		learnerID,
		unitID,
		row.EventID,
		score,
		row.ElapsedMinutes,
		row.PredictedRecall,
		row.HalfLifeDays,
		row.RecordedAt,
	), nil
}
