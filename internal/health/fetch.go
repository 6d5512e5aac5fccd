package health

import (
	"context"
	"fmt"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/normalize"
	"example.com/healthsync/internal/platform"
)

// Batch is the normalized output of one record type's fetch.
type Batch struct {
	Type     domain.RecordType
	Records  []domain.HealthRecord
	Fetched  int
	Filtered int
}

type typeHandler interface {
	fetch(ctx context.Context, reader platform.RecordReader, window domain.TimeRange) (Batch, error)
}

// pipeline pairs a typed platform read with the normalizer for its raw shape.
// read takes the reader first so interface method expressions fit directly.
type pipeline[R any] struct {
	recordType domain.RecordType
	read       func(platform.RecordReader, context.Context, domain.TimeRange) ([]R, error)
	normalize  func(R) (domain.HealthRecord, bool)
}

func (p pipeline[R]) fetch(ctx context.Context, reader platform.RecordReader, window domain.TimeRange) (Batch, error) {
	raw, err := p.read(reader, ctx, window)
	if err != nil {
		return Batch{Type: p.recordType}, err
	}
	batch := Batch{Type: p.recordType, Fetched: len(raw), Records: make([]domain.HealthRecord, 0, len(raw))}
	for _, r := range raw {
		rec, ok := p.normalize(r)
		if !ok {
			batch.Filtered++
			continue
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

func readHeartRateSamples(reader platform.RecordReader, ctx context.Context, window domain.TimeRange) ([]platform.HeartRateReading, error) {
	records, err := reader.ReadHeartRate(ctx, window)
	if err != nil {
		return nil, err
	}
	var out []platform.HeartRateReading
	for _, r := range records {
		out = append(out, r.Readings()...)
	}
	return out, nil
}

var handlers = map[domain.RecordType]typeHandler{
	domain.RecordTypeSteps: pipeline[platform.StepsRecord]{
		recordType: domain.RecordTypeSteps,
		read:       platform.RecordReader.ReadSteps,
		normalize:  normalize.Steps,
	},
	domain.RecordTypeHeartRate: pipeline[platform.HeartRateReading]{
		recordType: domain.RecordTypeHeartRate,
		read:       readHeartRateSamples,
		normalize:  normalize.HeartRate,
	},
	domain.RecordTypeDistance: pipeline[platform.DistanceRecord]{
		recordType: domain.RecordTypeDistance,
		read:       platform.RecordReader.ReadDistance,
		normalize:  normalize.Distance,
	},
	domain.RecordTypeActiveCalories: pipeline[platform.CaloriesRecord]{
		recordType: domain.RecordTypeActiveCalories,
		read:       platform.RecordReader.ReadActiveCalories,
		normalize:  normalize.ActiveCalories,
	},
	domain.RecordTypeTotalCalories: pipeline[platform.CaloriesRecord]{
		recordType: domain.RecordTypeTotalCalories,
		read:       platform.RecordReader.ReadTotalCalories,
		normalize:  normalize.TotalCalories,
	},
	domain.RecordTypeExercise: pipeline[platform.ExerciseSessionRecord]{
		recordType: domain.RecordTypeExercise,
		read:       platform.RecordReader.ReadExerciseSessions,
		normalize:  normalize.Exercise,
	},
	domain.RecordTypeSleep: pipeline[platform.SleepSessionRecord]{
		recordType: domain.RecordTypeSleep,
		read:       platform.RecordReader.ReadSleepSessions,
		normalize:  normalize.Sleep,
	},
}

// Fetcher reads and normalizes records for one type at a time.
type Fetcher struct {
	reader platform.RecordReader
}

// NewFetcher constructs a Fetcher.
func NewFetcher(reader platform.RecordReader) *Fetcher {
	return &Fetcher{reader: reader}
}

// Fetch returns the normalized batch for t. A type without a grant in perms
// yields *domain.PermissionError without touching the platform; platform
// failures yield *domain.ProviderError, except authorization failures which
// are reported as *domain.PermissionError.
func (f *Fetcher) Fetch(ctx context.Context, t domain.RecordType, window domain.TimeRange, perms PermissionState) (Batch, error) {
	if !perms.HasPermission(t) {
		return Batch{Type: t}, &domain.PermissionError{Type: t}
	}
	h, ok := handlers[t]
	if !ok {
		return Batch{Type: t}, &domain.ProviderError{Type: t, Err: fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, t)}
	}
	batch, err := h.fetch(ctx, f.reader, window)
	if err != nil {
		if platform.IsAuthorization(err) {
			return batch, &domain.PermissionError{Type: t, Err: err}
		}
		return batch, &domain.ProviderError{Type: t, Err: err}
	}
	return batch, nil
}
