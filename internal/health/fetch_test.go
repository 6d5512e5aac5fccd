package health

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
	"example.com/healthsync/internal/platform/platformtest"
)

func grantAll() PermissionState {
	grants := make([]domain.PermissionGrant, 0)
	for _, t := range domain.AllRecordTypes() {
		grants = append(grants, domain.PermissionGrant{RecordType: t, Granted: true})
	}
	return NewPermissionState(grants...)
}

func TestEveryRecordTypeHasAHandler(t *testing.T) {
	for _, rt := range domain.AllRecordTypes() {
		_, ok := handlers[rt]
		require.True(t, ok, "missing handler for %s", rt)
	}
	require.Len(t, handlers, len(domain.AllRecordTypes()))
}

func TestFetchEachTypeFromScriptedPlatform(t *testing.T) {
	fake := platformtest.New()
	start := testDay.Add(8 * time.Hour)
	fake.Steps = platformtest.StepsSeries(start, 2, 400)
	fake.Distance = []platform.DistanceRecord{{ID: "d", StartTime: start, EndTime: start.Add(time.Minute), Meters: platformtest.Float(120)}}
	fake.ActiveCalories = []platform.CaloriesRecord{{ID: "a", StartTime: start, EndTime: start, Kilocalories: platformtest.Float(20)}}
	fake.TotalCalories = []platform.CaloriesRecord{{ID: "t", StartTime: start, EndTime: start, Kilocalories: platformtest.Float(0)}}
	fake.Exercise = []platform.ExerciseSessionRecord{{ID: "e", StartTime: start, EndTime: start.Add(30 * time.Minute), ExerciseType: "cycling"}}
	fake.Sleep = []platform.SleepSessionRecord{{ID: "z", StartTime: start, EndTime: start.Add(time.Hour)}}
	fake.HeartRate = []platform.HeartRateRecord{{
		ID: "hr", StartTime: start, EndTime: start,
		Samples: []platform.HeartRateSample{
			{Time: start, BeatsPerMinute: platformtest.Float(61)},
			{Time: start.Add(time.Minute), BeatsPerMinute: platformtest.Float(420)},
			{Time: start.Add(2 * time.Minute), BeatsPerMinute: nil},
			{Time: start.Add(3 * time.Minute), BeatsPerMinute: platformtest.Float(88)},
		},
	}}

	fetcher := NewFetcher(fake)
	want := map[domain.RecordType]struct{ kept, filtered int }{
		domain.RecordTypeSteps:          {2, 0},
		domain.RecordTypeHeartRate:      {2, 2},
		domain.RecordTypeDistance:       {1, 0},
		domain.RecordTypeActiveCalories: {1, 0},
		domain.RecordTypeTotalCalories:  {0, 1},
		domain.RecordTypeExercise:       {1, 0},
		domain.RecordTypeSleep:          {1, 0},
	}
	for rt, exp := range want {
		batch, err := fetcher.Fetch(context.Background(), rt, testWindow, grantAll())
		require.NoError(t, err, rt)
		require.Len(t, batch.Records, exp.kept, rt)
		require.Equal(t, exp.filtered, batch.Filtered, rt)
		for _, rec := range batch.Records {
			require.Equal(t, rt, rec.Type)
		}
	}

	hr, err := fetcher.Fetch(context.Background(), domain.RecordTypeHeartRate, testWindow, grantAll())
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("hr#%d", start.UnixNano()), hr.Records[0].ID)
	require.Equal(t, fmt.Sprintf("hr#%d", start.Add(3*time.Minute).UnixNano()), hr.Records[1].ID)
}

func TestFetchWithoutGrantSkipsPlatform(t *testing.T) {
	fake := platformtest.New()
	_, err := NewFetcher(fake).Fetch(context.Background(), domain.RecordTypeSleep, testWindow, NewPermissionState())

	var perr *domain.PermissionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, domain.RecordTypeSleep, perr.Type)
	require.Zero(t, fake.CallCount("read:"))
}

func TestFetchClassifiesPlatformErrors(t *testing.T) {
	fake := platformtest.New()
	fake.ReadErrs[domain.RecordTypeSteps] = errors.New("bridge exploded")
	fake.ReadErrs[domain.RecordTypeSleep] = fmt.Errorf("%w: status 403", platform.ErrNotAuthorized)
	fetcher := NewFetcher(fake)

	_, err := fetcher.Fetch(context.Background(), domain.RecordTypeSteps, testWindow, grantAll())
	require.True(t, domain.IsProvider(err))
	require.Contains(t, err.Error(), "bridge exploded")

	_, err = fetcher.Fetch(context.Background(), domain.RecordTypeSleep, testWindow, grantAll())
	require.True(t, domain.IsPermission(err))
	require.ErrorIs(t, err, platform.ErrNotAuthorized)
}
