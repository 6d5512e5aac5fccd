package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRecordType(t *testing.T) {
	got, err := ParseRecordType("  Heart_Rate ")
	require.NoError(t, err)
	require.Equal(t, RecordTypeHeartRate, got)

	_, err = ParseRecordType("weight")
	require.ErrorIs(t, err, ErrUnknownRecordType)
}

func TestAllRecordTypesReturnsCopy(t *testing.T) {
	types := AllRecordTypes()
	require.Len(t, types, 7)
	types[0] = "mutated"
	require.Equal(t, RecordTypeSteps, AllRecordTypes()[0])
}

func TestTimeRange(t *testing.T) {
	start := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	r, err := NewTimeRange(start, end)
	require.NoError(t, err)
	require.True(t, r.Contains(start))
	require.False(t, r.Contains(end), "end is exclusive")
	require.Equal(t, 24*time.Hour, r.Duration())

	_, err = NewTimeRange(start, start)
	require.NoError(t, err, "empty range is valid")

	_, err = NewTimeRange(end, start)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestHealthRecordValidate(t *testing.T) {
	start := time.Date(2026, time.June, 15, 8, 0, 0, 0, time.UTC)
	valid := NewHealthRecord("steps-1", RecordTypeSteps, start, start.Add(time.Hour), 100, nil, nil)
	require.NoError(t, valid.Validate())

	cases := map[string]func(r *HealthRecord){
		"missing id":     func(r *HealthRecord) { r.ID = " " },
		"unknown type":   func(r *HealthRecord) { r.Type = "weight" },
		"inverted times": func(r *HealthRecord) { r.EndTime = r.StartTime.Add(-time.Second) },
		"zero primary":   func(r *HealthRecord) { r.PrimaryValue = 0 },
		"negative value": func(r *HealthRecord) { r.PrimaryValue = -1 },
		"missing source": func(r *HealthRecord) { r.Source = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid
			mutate(&r)
			require.Error(t, r.Validate())
		})
	}
}

func TestNewHealthRecordCopiesMaps(t *testing.T) {
	start := time.Date(2026, time.June, 15, 8, 0, 0, 0, time.UTC)
	secondary := map[string]float64{"calories_kcal": 250}
	metadata := map[string]any{"title": "Run"}

	r := NewHealthRecord("ex-1", RecordTypeExercise, start, start.Add(30*time.Minute), 30, secondary, metadata)
	secondary["calories_kcal"] = 1
	metadata["title"] = "changed"

	kcal, ok := r.Secondary("calories_kcal")
	require.True(t, ok)
	require.Equal(t, 250.0, kcal)
	title, ok := r.Meta("title")
	require.True(t, ok)
	require.Equal(t, "Run", title)
	require.Equal(t, SourcePlatformHealth, r.Source)
	require.Equal(t, RecordKey{Source: SourcePlatformHealth, Type: RecordTypeExercise, ID: "ex-1"}, r.Key())
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("socket closed")
	wrapped := fmt.Errorf("fetch steps: %w", &ProviderError{Type: RecordTypeSteps, Err: cause})

	require.True(t, IsProvider(wrapped))
	require.False(t, IsPermission(wrapped))
	require.ErrorIs(t, wrapped, cause)

	perm := &PermissionError{Type: RecordTypeSleep}
	require.True(t, IsPermission(perm))
	require.Equal(t, "permission denied", perm.Error())

	var pe *PersistenceError
	require.ErrorAs(t, fmt.Errorf("x: %w", &PersistenceError{Type: RecordTypeSteps, RecordID: "s1", Err: cause}), &pe)
	require.Equal(t, "s1", pe.RecordID)
}

func TestRecordTypeUnits(t *testing.T) {
	require.Equal(t, "bpm", RecordTypeHeartRate.Unit())
	require.Equal(t, "kcal", RecordTypeTotalCalories.Unit())
	require.Equal(t, "min", RecordTypeSleep.Unit())
	require.Empty(t, RecordType("weight").Unit())
}
