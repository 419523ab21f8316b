// Package scheduling places ranked study units onto calendar days under
// time and cognitive-load budgets.
package scheduling

import (
	"fmt"
	"time"

	"studypace/domain/cogload"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
	"studypace/pkg/utils"
)

// Item is one ranked unit awaiting placement
type Item struct {
	UnitID          valueobjects.UnitID
	SessionType     entities.SessionType
	Difficulty      float64
	DurationMinutes int
	IntervalDays    int
	PriorityScore   float64
	StartOffset     int
	EndOffset       int
}

// Plan is the result of one build pass. Entries are ordered by placement;
// TargetMet is false when some entries had to overflow past the target date.
type Plan struct {
	Entries      []*entities.ScheduleEntry
	TargetMet    bool
	SkippedUnits []valueobjects.UnitID
}

// dayBin tracks one calendar day's consumed budget
type dayBin struct {
	start   time.Time
	minutes int
	load    float64
}

// Builder packs items into day bins, greedy first-fit.
// It is stateless and safe for concurrent use.
type Builder struct {
	cfg       *config.DomainConfig
	estimator *cogload.Estimator
}

// NewBuilder creates a schedule builder
func NewBuilder(cfg *config.DomainConfig, estimator *cogload.Estimator) *Builder {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Builder{cfg: cfg, estimator: estimator}
}

// Build places items onto days in [now, targetDate], first-fit in ranked
// order. No day exceeds dailyStudyMinutes of study time or the learner's
// cognitive load limit. Items whose unit is already carried by an open
// entry (openUnits, keyed by unit ID string) are skipped. Items that cannot
// fit before the target date overflow onto later days and the plan reports
// the target as not met. An item whose load alone exceeds the daily ceiling
// cannot be placed at all and fails the build with a conflict error.
//
// Build has no side effects; persisting the returned entries is the
// caller's responsibility.
func (b *Builder) Build(
	learnerID valueobjects.LearnerID,
	items []Item,
	now, targetDate time.Time,
	dailyStudyMinutes int,
	loadLimit float64,
	recentLoad float64,
	openUnits map[string]bool,
) (*Plan, error) {
	if learnerID.IsZero() {
		return nil, pkgerrors.NewValidationError("learnerID cannot be empty")
	}
	if !targetDate.After(now) {
		return nil, pkgerrors.NewValidationError("target date must be in the future")
	}
	if dailyStudyMinutes < b.cfg.MinDailyStudyMinutes || dailyStudyMinutes > b.cfg.MaxDailyStudyMinutes {
		return nil, pkgerrors.NewValidationErrorf("daily study time must be between %d and %d minutes",
			b.cfg.MinDailyStudyMinutes, b.cfg.MaxDailyStudyMinutes)
	}
	if loadLimit <= 0 {
		return nil, pkgerrors.NewValidationError("load limit must be positive")
	}

	dayStart := utils.StartOfDay(now)
	windowDays := utils.DaysBetween(dayStart, targetDate) + 1

	bins := make([]*dayBin, 0, windowDays)
	plan := &Plan{Entries: []*entities.ScheduleEntry{}, TargetMet: true}

	for _, item := range items {
		if openUnits[item.UnitID.String()] {
			plan.SkippedUnits = append(plan.SkippedUnits, item.UnitID)
			continue
		}
		if item.DurationMinutes <= 0 || item.DurationMinutes > dailyStudyMinutes {
			return nil, pkgerrors.NewValidationErrorf("unit %s duration %d does not fit the daily budget",
				item.UnitID.String(), item.DurationMinutes)
		}

		day := 0
		maxDay := windowDays + b.cfg.MaxIntervalDays
		for {
			if day > maxDay {
				return nil, pkgerrors.NewConflictError(fmt.Sprintf(
					"unit %s cannot be placed within %d days of the target date",
					item.UnitID.String(), b.cfg.MaxIntervalDays))
			}
			for day >= len(bins) {
				bins = append(bins, &dayBin{start: dayStart.AddDate(0, 0, len(bins))})
			}
			bin := bins[day]

			// Trailing load only presses on the first day of the window
			trailing := 0.0
			if day == 0 {
				trailing = recentLoad
			}
			load, err := b.estimator.Estimate(item.DurationMinutes, item.Difficulty, loadLimit, trailing)
			if err != nil {
				return nil, err
			}

			if bin.minutes+item.DurationMinutes <= dailyStudyMinutes &&
				b.estimator.Admissible(bin.load, load) {
				scheduledAt := bin.start.Add(time.Duration(bin.minutes) * time.Minute)

				entry, err := entities.NewScheduleEntry(
					learnerID,
					item.UnitID,
					item.SessionType,
					scheduledAt,
					item.DurationMinutes,
					item.PriorityScore,
					load,
					item.IntervalDays,
					item.StartOffset,
					item.EndOffset,
				)
				if err != nil {
					return nil, err
				}

				bin.minutes += item.DurationMinutes
				bin.load += load
				plan.Entries = append(plan.Entries, entry)

				if day >= windowDays {
					plan.TargetMet = false
				}
				break
			}

			// An item that does not fit an empty day alone can never be
			// placed; failing here keeps the loop bounded.
			if bin.minutes == 0 && bin.load == 0 && trailing == 0 {
				return nil, pkgerrors.NewConflictError(fmt.Sprintf(
					"unit %s exceeds the cognitive load limit for any single day",
					item.UnitID.String()))
			}

			day++
		}
	}

	return plan, nil
}
