// Package normalize converts raw platform records into domain.HealthRecord
// values. Every function is pure and reports false when the input must be
// dropped instead of stored.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

// MaxHeartRateBPM is the exclusive upper bound for a plausible reading.
const MaxHeartRateBPM = 300.0

// Secondary value keys.
const (
	KeyCaloriesKcal   = "calories_kcal"
	KeyDistanceMeters = "distance_meters"
)

// Metadata keys copied from provider records.
const (
	MetaDeviceID       = "device_id"
	MetaDataOrigin     = "data_origin"
	MetaClientRecordID = "client_record_id"
	MetaAccuracy       = "accuracy"
	MetaLastModified   = "last_modified"
	MetaNotes          = "notes"
	MetaTitle          = "title"
	MetaExerciseType   = "exercise_type"
)

var idNamespace = uuid.MustParse("6f1c1f0e-3d8b-5b7a-9a4e-2f0d8c6b1a55")

// SynthesizeID derives a stable id for provider records that arrive without one,
// so repeated imports of the same record dedupe on the same key.
func SynthesizeID(t domain.RecordType, start, end time.Time, primary float64) string {
	name := fmt.Sprintf("%s|%s|%s|%s", t,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(primary, 'g', -1, 64))
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Steps normalizes a step count record.
func Steps(r platform.StepsRecord) (domain.HealthRecord, bool) {
	if r.Count == nil {
		return domain.HealthRecord{}, false
	}
	return interval(domain.RecordTypeSteps, r.ID, r.StartTime, r.EndTime, float64(*r.Count), nil, metadata(r.Metadata))
}

// HeartRate normalizes one flattened heart-rate sample. Samples outside
// (0, MaxHeartRateBPM) are dropped. The id is keyed on the sample time so a
// sample keeps its id when the platform reorders or trims the series.
func HeartRate(r platform.HeartRateReading) (domain.HealthRecord, bool) {
	if r.BeatsPerMinute == nil {
		return domain.HealthRecord{}, false
	}
	bpm := *r.BeatsPerMinute
	if !positive(bpm) || bpm >= MaxHeartRateBPM {
		return domain.HealthRecord{}, false
	}
	id := ""
	if r.RecordID != "" {
		id = r.RecordID + "#" + strconv.FormatInt(r.Time.UnixNano(), 10)
	}
	return interval(domain.RecordTypeHeartRate, id, r.Time, r.Time, bpm, nil, metadata(r.Metadata))
}

// Distance normalizes a distance record in meters.
func Distance(r platform.DistanceRecord) (domain.HealthRecord, bool) {
	if r.Meters == nil {
		return domain.HealthRecord{}, false
	}
	return interval(domain.RecordTypeDistance, r.ID, r.StartTime, r.EndTime, *r.Meters, nil, metadata(r.Metadata))
}

// ActiveCalories normalizes an active energy record in kilocalories.
func ActiveCalories(r platform.CaloriesRecord) (domain.HealthRecord, bool) {
	return calories(domain.RecordTypeActiveCalories, r)
}

// TotalCalories normalizes a total energy record in kilocalories.
func TotalCalories(r platform.CaloriesRecord) (domain.HealthRecord, bool) {
	return calories(domain.RecordTypeTotalCalories, r)
}

func calories(t domain.RecordType, r platform.CaloriesRecord) (domain.HealthRecord, bool) {
	if r.Kilocalories == nil {
		return domain.HealthRecord{}, false
	}
	return interval(t, r.ID, r.StartTime, r.EndTime, *r.Kilocalories, nil, metadata(r.Metadata))
}

// Exercise normalizes a workout. The primary value is its duration in minutes.
func Exercise(r platform.ExerciseSessionRecord) (domain.HealthRecord, bool) {
	secondary := make(map[string]float64)
	if r.Kilocalories != nil && positive(*r.Kilocalories) {
		secondary[KeyCaloriesKcal] = *r.Kilocalories
	}
	if r.Meters != nil && positive(*r.Meters) {
		secondary[KeyDistanceMeters] = *r.Meters
	}
	meta := metadata(r.Metadata)
	if r.ExerciseType != "" {
		meta[MetaExerciseType] = r.ExerciseType
	}
	putString(meta, MetaTitle, r.Title)
	putString(meta, MetaNotes, r.Notes)
	return interval(domain.RecordTypeExercise, r.ID, r.StartTime, r.EndTime, minutes(r.StartTime, r.EndTime), secondary, meta)
}

// Sleep normalizes a sleep session. The primary value is its duration in
// minutes; stages are summed into "<stage>_minutes" secondary values.
func Sleep(r platform.SleepSessionRecord) (domain.HealthRecord, bool) {
	secondary := make(map[string]float64)
	for _, stage := range r.Stages {
		d := minutes(stage.StartTime, stage.EndTime)
		if !positive(d) {
			continue
		}
		name := stage.Stage
		if name == "" {
			name = platform.SleepStageUnknown
		}
		secondary[name+"_minutes"] += d
	}
	meta := metadata(r.Metadata)
	putString(meta, MetaTitle, r.Title)
	putString(meta, MetaNotes, r.Notes)
	return interval(domain.RecordTypeSleep, r.ID, r.StartTime, r.EndTime, minutes(r.StartTime, r.EndTime), secondary, meta)
}

func interval(t domain.RecordType, id string, start, end time.Time, primary float64, secondary map[string]float64, meta map[string]any) (domain.HealthRecord, bool) {
	if start.After(end) || !positive(primary) {
		return domain.HealthRecord{}, false
	}
	if id == "" {
		id = SynthesizeID(t, start, end, primary)
	}
	return domain.NewHealthRecord(id, t, start, end, primary, secondary, meta), true
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func minutes(start, end time.Time) float64 {
	return end.Sub(start).Minutes()
}

func metadata(m platform.Metadata) map[string]any {
	out := make(map[string]any)
	putString(out, MetaDeviceID, m.DeviceID)
	putString(out, MetaDataOrigin, m.DataOrigin)
	putString(out, MetaClientRecordID, m.ClientRecordID)
	if m.Accuracy != nil {
		out[MetaAccuracy] = *m.Accuracy
	}
	if m.LastModified != nil {
		out[MetaLastModified] = m.LastModified.UTC()
	}
	return out
}

func putString(m map[string]any, key string, v *string) {
	if v != nil && *v != "" {
		m[key] = *v
	}
}
