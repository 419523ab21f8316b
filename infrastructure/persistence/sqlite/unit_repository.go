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

type unitRow struct {
	ID               string    `db:"id"`
	MaterialID       string    `db:"material_id"`
	Title            string    `db:"title"`
	OrderIndex       int       `db:"order_index"`
	StartOffset      int       `db:"start_offset"`
	EndOffset        int       `db:"end_offset"`
	WordCount        int       `db:"word_count"`
	Difficulty       float64   `db:"difficulty"`
	EstimatedMinutes int       `db:"estimated_minutes"`
	CreatedAt        time.Time `db:"created_at"`
}

// UnitRepository implements ports.UnitRepository using SQLite
type UnitRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ ports.UnitRepository = (*UnitRepository)(nil)

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *sqlx.DB, logger *zap.Logger) *UnitRepository {
	return &UnitRepository{db: db, logger: logger}
}

func (r *UnitRepository) Save(ctx context.Context, unit *entities.MaterialUnit) error {
	row := unitRow{
		ID:               unit.ID().String(),
		MaterialID:       unit.MaterialID(),
		Title:            unit.Title(),
		OrderIndex:       unit.OrderIndex(),
		StartOffset:      unit.StartOffset(),
		EndOffset:        unit.EndOffset(),
		WordCount:        unit.WordCount(),
		Difficulty:       unit.Difficulty().Value(),
		EstimatedMinutes: unit.EstimatedMinutes(),
		CreatedAt:        unit.CreatedAt().UTC(),
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO material_units (
			id, material_id, title, order_index, start_offset, end_offset,
			word_count, difficulty, estimated_minutes, created_at
		) VALUES (
			:id, :material_id, :title, :order_index, :start_offset, :end_offset,
			:word_count, :difficulty, :estimated_minutes, :created_at
		)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			order_index = excluded.order_index,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			word_count = excluded.word_count,
			difficulty = excluded.difficulty,
			estimated_minutes = excluded.estimated_minutes`,
		row)
	if err != nil {
		return pkgerrors.NewDatabaseError("save unit", err)
	}
	return nil
}

func (r *UnitRepository) GetByID(ctx context.Context, id valueobjects.UnitID) (*entities.MaterialUnit, error) {
	var row unitRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM material_units WHERE id = ?`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pkgerrors.NewNotFoundError("unit")
		}
		return nil, pkgerrors.NewDatabaseError("get unit", err)
	}
	return unitFromRow(row)
}

func (r *UnitRepository) ListByMaterial(ctx context.Context, materialID string) ([]*entities.MaterialUnit, error) {
	var rows []unitRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM material_units WHERE material_id = ? ORDER BY order_index`, materialID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query units", err)
	}

	units := make([]*entities.MaterialUnit, 0, len(rows))
	for _, row := range rows {
		unit, err := unitFromRow(row)
		if err != nil {
			r.logger.Warn("Failed to reconstruct unit", zap.String("unitID", row.ID), zap.Error(err))
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

func unitFromRow(row unitRow) (*entities.MaterialUnit, error) {
	unitID, err := valueobjects.NewUnitIDFromString(row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid unit ID")
	}
	difficulty, err := valueobjects.NewDifficulty(row.Difficulty)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid difficulty")
	}
	return entities.ReconstructMaterialUnit(
		unitID,
		row.MaterialID,
		row.Title,
		row.OrderIndex,
		row.StartOffset,
		row.EndOffset,
		row.WordCount,
		difficulty,
		row.EstimatedMinutes,
		row.CreatedAt,
	), nil
}
