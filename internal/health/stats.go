package health

import (
	"context"
	"fmt"
	"time"

	"example.com/healthsync/internal/domain"
)

// Aggregator derives rollups from the local store. Nothing is cached; every
// call reflects the store as it is.
type Aggregator struct {
	store    domain.AggregateReader
	location *time.Location
}

// NewAggregator constructs an Aggregator that buckets days in loc.
func NewAggregator(store domain.AggregateReader, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{store: store, location: loc}
}

// Rollup aggregates records whose start time falls inside window.
func (a *Aggregator) Rollup(ctx context.Context, window domain.TimeRange) (domain.StatsRollup, error) {
	if err := window.Validate(); err != nil {
		return domain.StatsRollup{}, err
	}
	steps, err := a.store.QueryAggregate(ctx, domain.RecordTypeSteps, domain.AggregateSum, window)
	if err != nil {
		return domain.StatsRollup{}, fmt.Errorf("sum steps: %w", err)
	}
	workouts, err := a.store.QueryAggregate(ctx, domain.RecordTypeExercise, domain.AggregateCount, window)
	if err != nil {
		return domain.StatsRollup{}, fmt.Errorf("count workouts: %w", err)
	}
	minutes, err := a.store.QueryAggregate(ctx, domain.RecordTypeExercise, domain.AggregateSum, window)
	if err != nil {
		return domain.StatsRollup{}, fmt.Errorf("sum workout minutes: %w", err)
	}
	return domain.StatsRollup{
		Steps:                  steps,
		WorkoutCount:           int(workouts),
		WorkoutDurationMinutes: minutes,
		WindowStart:            window.Start,
		WindowEnd:              window.End,
	}, nil
}

// HealthStats returns the local calendar day containing now and the seven
// local days ending with it.
func (a *Aggregator) HealthStats(ctx context.Context, now time.Time) (domain.HealthStats, error) {
	day := a.DayWindow(now)
	week := domain.TimeRange{Start: startOfDay(now.In(a.location).AddDate(0, 0, -6)), End: day.End}

	daily, err := a.Rollup(ctx, day)
	if err != nil {
		return domain.HealthStats{}, fmt.Errorf("daily rollup: %w", err)
	}
	weekly, err := a.Rollup(ctx, week)
	if err != nil {
		return domain.HealthStats{}, fmt.Errorf("weekly rollup: %w", err)
	}
	return domain.HealthStats{Daily: daily, Weekly: weekly}, nil
}

// DayWindow returns [local midnight, next local midnight) around now.
func (a *Aggregator) DayWindow(now time.Time) domain.TimeRange {
	local := now.In(a.location)
	start := startOfDay(local)
	return domain.TimeRange{Start: start, End: startOfDay(start.AddDate(0, 0, 1))}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
