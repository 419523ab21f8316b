package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

type profileRow struct {
	LearnerID            string    `db:"learner_id"`
	RetentionRate        float64   `db:"retention_rate"`
	CognitiveLoadLimit   float64   `db:"cognitive_load_limit"`
	DifficultyPreference float64   `db:"difficulty_preference"`
	ReadingSpeed         float64   `db:"reading_speed"`
	UpdatedAt            time.Time `db:"updated_at"`
	Version              int       `db:"version"`
}

// ProfileRepository implements ports.ProfileRepository using SQLite
type ProfileRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlx.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{db: db, logger: logger}
}

func (r *ProfileRepository) Save(ctx context.Context, profile *entities.LearnerProfile) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO learner_profiles (
			learner_id, retention_rate, cognitive_load_limit,
			difficulty_preference, reading_speed, updated_at, version
		) VALUES (
			:learner_id, :retention_rate, :cognitive_load_limit,
			:difficulty_preference, :reading_speed, :updated_at, :version
		)
		ON CONFLICT(learner_id) DO UPDATE SET
			retention_rate = excluded.retention_rate,
			cognitive_load_limit = excluded.cognitive_load_limit,
			difficulty_preference = excluded.difficulty_preference,
			reading_speed = excluded.reading_speed,
			updated_at = excluded.updated_at,
			version = excluded.version`,
		profileToRow(profile))
	if err != nil {
		return pkgerrors.NewDatabaseError("save profile", err)
	}
	return nil
}

func (r *ProfileRepository) GetByLearnerID(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error) {
	var row profileRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM learner_profiles WHERE learner_id = ?`, learnerID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError("profile")
		}
		return nil, pkgerrors.NewDatabaseError("get profile", err)
	}
	return profileFromRow(row)
}

// GetOrCreate returns the stored profile, inserting a defaulted one for new
// learners. A unique-constraint race with a concurrent insert resolves to the
// row that won.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, learnerID valueobjects.LearnerID) (*entities.LearnerProfile, error) {
	profile, err := r.GetByLearnerID(ctx, learnerID)
	if err == nil {
		return profile, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	fresh, err := entities.NewLearnerProfile(learnerID)
	if err != nil {
		return nil, err
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO learner_profiles (
			learner_id, retention_rate, cognitive_load_limit,
			difficulty_preference, reading_speed, updated_at, version
		) VALUES (
			:learner_id, :retention_rate, :cognitive_load_limit,
			:difficulty_preference, :reading_speed, :updated_at, :version
		)`,
		profileToRow(fresh))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return r.GetByLearnerID(ctx, learnerID)
		}
		return nil, pkgerrors.NewDatabaseError("create profile", err)
	}

	r.logger.Debug("Profile created", zap.String("learnerID", learnerID.String()))
	return fresh, nil
}

func profileToRow(profile *entities.LearnerProfile) profileRow {
	return profileRow{
		LearnerID:            profile.LearnerID().String(),
		RetentionRate:        profile.RetentionRate(),
		CognitiveLoadLimit:   profile.CognitiveLoadLimit(),
		DifficultyPreference: profile.DifficultyPreference(),
		ReadingSpeed:         profile.ReadingSpeed(),
		UpdatedAt:            profile.UpdatedAt().UTC(),
		Version:              profile.Version(),
	}
}

func profileFromRow(row profileRow) (*entities.LearnerProfile, error) {
	learnerID, err := valueobjects.NewLearnerID(row.LearnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid learner ID")
	}
	return entities.ReconstructLearnerProfile(
		learnerID,
		row.RetentionRate,
		row.CognitiveLoadLimit,
		row.DifficultyPreference,
		row.ReadingSpeed,
		row.UpdatedAt,
		row.Version,
	), nil
}
