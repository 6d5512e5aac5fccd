package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestStepsFiltering(t *testing.T) {
	tests := []struct {
		name  string
		count *int64
		start time.Time
		end   time.Time
		keep  bool
	}{
		{name: "valid", count: ptr[int64](1200), start: t0, end: t0.Add(time.Hour), keep: true},
		{name: "zero duration kept", count: ptr[int64](5), start: t0, end: t0, keep: true},
		{name: "missing count", count: nil, start: t0, end: t0.Add(time.Hour)},
		{name: "zero count", count: ptr[int64](0), start: t0, end: t0.Add(time.Hour)},
		{name: "negative count", count: ptr[int64](-4), start: t0, end: t0.Add(time.Hour)},
		{name: "start after end", count: ptr[int64](10), start: t0.Add(time.Hour), end: t0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := Steps(platform.StepsRecord{ID: "s1", StartTime: tc.start, EndTime: tc.end, Count: tc.count})
			require.Equal(t, tc.keep, ok)
			if tc.keep {
				require.Equal(t, domain.RecordTypeSteps, rec.Type)
				require.Equal(t, float64(*tc.count), rec.PrimaryValue)
				require.Equal(t, domain.SourcePlatformHealth, rec.Source)
				require.NoError(t, rec.Validate())
			}
		})
	}
}

func TestHeartRateBand(t *testing.T) {
	tests := []struct {
		bpm  *float64
		keep bool
	}{
		{bpm: ptr(72.0), keep: true},
		{bpm: ptr(299.9), keep: true},
		{bpm: ptr(300.0)},
		{bpm: ptr(350.0)},
		{bpm: ptr(0.0)},
		{bpm: ptr(-10.0)},
		{bpm: ptr(math.NaN())},
		{bpm: nil},
	}
	for _, tc := range tests {
		reading := platform.HeartRateReading{RecordID: "hr1", Time: t0, BeatsPerMinute: tc.bpm}
		rec, ok := HeartRate(reading)
		require.Equal(t, tc.keep, ok, "bpm=%v", tc.bpm)
		if ok {
			require.Equal(t, "hr1#1773129600000000000", rec.ID)
			require.True(t, rec.PrimaryValue > 0 && rec.PrimaryValue < MaxHeartRateBPM)
			require.Equal(t, t0, rec.StartTime)
			require.Equal(t, t0, rec.EndTime)
		}
	}
}

func TestDistanceAndCaloriesRejectNonFinite(t *testing.T) {
	_, ok := Distance(platform.DistanceRecord{ID: "d", StartTime: t0, EndTime: t0.Add(time.Minute), Meters: ptr(math.Inf(1))})
	require.False(t, ok)

	rec, ok := Distance(platform.DistanceRecord{ID: "d", StartTime: t0, EndTime: t0.Add(time.Minute), Meters: ptr(412.5)})
	require.True(t, ok)
	require.Equal(t, 412.5, rec.PrimaryValue)

	_, ok = ActiveCalories(platform.CaloriesRecord{ID: "c", StartTime: t0, EndTime: t0, Kilocalories: nil})
	require.False(t, ok)

	rec, ok = TotalCalories(platform.CaloriesRecord{ID: "c", StartTime: t0, EndTime: t0.Add(time.Hour), Kilocalories: ptr(88.0)})
	require.True(t, ok)
	require.Equal(t, domain.RecordTypeTotalCalories, rec.Type)
}

func TestExerciseDurationAndSecondaries(t *testing.T) {
	rec, ok := Exercise(platform.ExerciseSessionRecord{
		ID:           "ex1",
		StartTime:    t0,
		EndTime:      t0.Add(45 * time.Minute),
		ExerciseType: "running",
		Title:        ptr("Morning run"),
		Kilocalories: ptr(410.0),
		Meters:       ptr(0.0),
		Metadata:     platform.Metadata{DeviceID: ptr("watch-7")},
	})
	require.True(t, ok)
	require.Equal(t, 45.0, rec.PrimaryValue)

	kcal, ok := rec.Secondary(KeyCaloriesKcal)
	require.True(t, ok)
	require.Equal(t, 410.0, kcal)
	_, ok = rec.Secondary(KeyDistanceMeters)
	require.False(t, ok, "non-positive distance must be omitted")

	require.Equal(t, map[string]any{
		MetaDeviceID:     "watch-7",
		MetaExerciseType: "running",
		MetaTitle:        "Morning run",
	}, rec.Metadata)

	_, ok = Exercise(platform.ExerciseSessionRecord{ID: "ex2", StartTime: t0, EndTime: t0})
	require.False(t, ok, "zero-length workout is dropped")
}

func TestSleepStages(t *testing.T) {
	rec, ok := Sleep(platform.SleepSessionRecord{
		ID:        "sl1",
		StartTime: t0,
		EndTime:   t0.Add(8 * time.Hour),
		Stages: []platform.SleepStage{
			{Stage: platform.SleepStageLight, StartTime: t0, EndTime: t0.Add(2 * time.Hour)},
			{Stage: platform.SleepStageDeep, StartTime: t0.Add(2 * time.Hour), EndTime: t0.Add(3 * time.Hour)},
			{Stage: platform.SleepStageLight, StartTime: t0.Add(3 * time.Hour), EndTime: t0.Add(4 * time.Hour)},
			{Stage: "", StartTime: t0.Add(4 * time.Hour), EndTime: t0.Add(4*time.Hour + 30*time.Minute)},
		},
	})
	require.True(t, ok)
	require.Equal(t, 480.0, rec.PrimaryValue)
	require.Equal(t, map[string]float64{
		"light_minutes":   180,
		"deep_minutes":    60,
		"unknown_minutes": 30,
	}, rec.SecondaryValues)
}

func TestSynthesizedIDIsDeterministic(t *testing.T) {
	a, ok := Steps(platform.StepsRecord{StartTime: t0, EndTime: t0.Add(time.Hour), Count: ptr[int64](300)})
	require.True(t, ok)
	b, ok := Steps(platform.StepsRecord{StartTime: t0, EndTime: t0.Add(time.Hour), Count: ptr[int64](300)})
	require.True(t, ok)
	c, ok := Steps(platform.StepsRecord{StartTime: t0, EndTime: t0.Add(time.Hour), Count: ptr[int64](301)})
	require.True(t, ok)

	require.NotEmpty(t, a.ID)
	require.Equal(t, a.ID, b.ID)
	require.NotEqual(t, a.ID, c.ID)
}

func TestMetadataOnlyPresentKeys(t *testing.T) {
	modified := t0.Add(time.Minute)
	rec, ok := Steps(platform.StepsRecord{
		ID: "s", StartTime: t0, EndTime: t0.Add(time.Hour), Count: ptr[int64](1),
		Metadata: platform.Metadata{DataOrigin: ptr("com.example.fit"), Accuracy: ptr(0.9), LastModified: &modified},
	})
	require.True(t, ok)
	require.Len(t, rec.Metadata, 3)
	origin, ok := rec.Meta(MetaDataOrigin)
	require.True(t, ok)
	require.Equal(t, "com.example.fit", origin)
	_, ok = rec.Meta(MetaDeviceID)
	require.False(t, ok)
}
