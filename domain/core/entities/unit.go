package entities

import (
	"time"

	"studypace/domain/config"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// MaterialUnit is a schedulable slice of study material
type MaterialUnit struct {
	id               valueobjects.UnitID
	materialID       string
	title            string
	orderIndex       int
	startOffset      int
	endOffset        int
	wordCount        int
	difficulty       valueobjects.Difficulty
	estimatedMinutes int
	createdAt        time.Time
}

// NewMaterialUnit creates a unit with full business rule validation
func NewMaterialUnit(materialID, title string, orderIndex, startOffset, endOffset, wordCount int, difficulty valueobjects.Difficulty, readingSpeed float64) (*MaterialUnit, error) {
	return NewMaterialUnitWithConfig(materialID, title, orderIndex, startOffset, endOffset, wordCount, difficulty, readingSpeed, config.DefaultDomainConfig())
}

// NewMaterialUnitWithConfig creates a unit with validation and configuration
func NewMaterialUnitWithConfig(materialID, title string, orderIndex, startOffset, endOffset, wordCount int, difficulty valueobjects.Difficulty, readingSpeed float64, cfg *config.DomainConfig) (*MaterialUnit, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if materialID == "" {
		return nil, pkgerrors.NewValidationError("materialID cannot be empty")
	}
	if title == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}
	if startOffset < 0 || endOffset <= startOffset {
		return nil, pkgerrors.NewValidationError("content offsets must satisfy 0 <= start < end")
	}
	if wordCount <= 0 {
		return nil, pkgerrors.NewValidationError("word count must be positive")
	}
	if readingSpeed <= 0 {
		return nil, pkgerrors.NewValidationError("reading speed must be positive")
	}

	return &MaterialUnit{
		id:               valueobjects.NewUnitID(),
		materialID:       materialID,
		title:            title,
		orderIndex:       orderIndex,
		startOffset:      startOffset,
		endOffset:        endOffset,
		wordCount:        wordCount,
		difficulty:       difficulty,
		estimatedMinutes: estimateMinutes(wordCount, difficulty.Value(), readingSpeed, cfg),
		createdAt:        time.Now(),
	}, nil
}

// ReconstructMaterialUnit reconstructs a unit from repository data
func ReconstructMaterialUnit(
	id valueobjects.UnitID,
	materialID, title string,
	orderIndex, startOffset, endOffset, wordCount int,
	difficulty valueobjects.Difficulty,
	estimatedMinutes int,
	createdAt time.Time,
) *MaterialUnit {
	return &MaterialUnit{
		id:               id,
		materialID:       materialID,
		title:            title,
		orderIndex:       orderIndex,
		startOffset:      startOffset,
		endOffset:        endOffset,
		wordCount:        wordCount,
		difficulty:       difficulty,
		estimatedMinutes: estimatedMinutes,
		createdAt:        createdAt,
	}
}

// ID returns the unit's unique identifier
func (u *MaterialUnit) ID() valueobjects.UnitID {
	return u.id
}

// MaterialID returns the owning material's ID
func (u *MaterialUnit) MaterialID() string {
	return u.materialID
}

// Title returns the unit title
func (u *MaterialUnit) Title() string {
	return u.title
}

// OrderIndex returns the unit's position within its material
func (u *MaterialUnit) OrderIndex() int {
	return u.orderIndex
}

// StartOffset returns the unit's starting content offset
func (u *MaterialUnit) StartOffset() int {
	return u.startOffset
}

// EndOffset returns the unit's ending content offset
func (u *MaterialUnit) EndOffset() int {
	return u.endOffset
}

// WordCount returns the unit's word count
func (u *MaterialUnit) WordCount() int {
	return u.wordCount
}

// Difficulty returns the unit's difficulty rating
func (u *MaterialUnit) Difficulty() valueobjects.Difficulty {
	return u.difficulty
}

// EstimatedMinutes returns the estimated study duration
func (u *MaterialUnit) EstimatedMinutes() int {
	return u.estimatedMinutes
}

// CreatedAt returns when the unit was created
func (u *MaterialUnit) CreatedAt() time.Time {
	return u.createdAt
}

// estimateMinutes derives a study duration from reading time plus a
// difficulty surcharge, bounded to keep sessions schedulable
func estimateMinutes(wordCount int, difficulty, readingSpeed float64, cfg *config.DomainConfig) int {
	readingMinutes := float64(wordCount) / readingSpeed
	total := int(readingMinutes * (1 + difficulty*0.5))

	if total < cfg.MinUnitMinutes {
		return cfg.MinUnitMinutes
	}
	if total > cfg.MaxUnitMinutes {
		return cfg.MaxUnitMinutes
	}
	return total
}
