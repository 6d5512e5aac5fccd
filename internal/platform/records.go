package platform

import "time"

// Metadata carries optional provider details passed through to storage untouched.
type Metadata struct {
	DeviceID       *string    `json:"device_id,omitempty"`
	DataOrigin     *string    `json:"data_origin,omitempty"`
	ClientRecordID *string    `json:"client_record_id,omitempty"`
	Accuracy       *float64   `json:"accuracy,omitempty"`
	LastModified   *time.Time `json:"last_modified,omitempty"`
}

// StepsRecord is a step count over an interval.
type StepsRecord struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Count     *int64    `json:"count"`
	Metadata  Metadata  `json:"metadata"`
}

// HeartRateSample is one instantaneous reading inside a HeartRateRecord.
type HeartRateSample struct {
	Time           time.Time `json:"time"`
	BeatsPerMinute *float64  `json:"beats_per_minute"`
}

// HeartRateRecord groups heart-rate samples captured over an interval.
type HeartRateRecord struct {
	ID        string            `json:"id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Samples   []HeartRateSample `json:"samples"`
	Metadata  Metadata          `json:"metadata"`
}

// HeartRateReading is a single sample lifted out of its HeartRateRecord.
type HeartRateReading struct {
	RecordID       string
	Time           time.Time
	BeatsPerMinute *float64
	Metadata       Metadata
}

// Readings flattens the record into one reading per sample.
func (r HeartRateRecord) Readings() []HeartRateReading {
	out := make([]HeartRateReading, 0, len(r.Samples))
	for _, s := range r.Samples {
		out = append(out, HeartRateReading{
			RecordID:       r.ID,
			Time:           s.Time,
			BeatsPerMinute: s.BeatsPerMinute,
			Metadata:       r.Metadata,
		})
	}
	return out
}

// DistanceRecord is distance travelled over an interval.
type DistanceRecord struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Meters    *float64  `json:"meters"`
	Metadata  Metadata  `json:"metadata"`
}

// CaloriesRecord is energy burned over an interval. Active and total
// calories share this shape.
type CaloriesRecord struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Kilocalories *float64  `json:"kilocalories"`
	Metadata     Metadata  `json:"metadata"`
}

// ExerciseSessionRecord is a workout with optional energy and distance totals.
type ExerciseSessionRecord struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	ExerciseType string    `json:"exercise_type"`
	Title        *string   `json:"title,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	Kilocalories *float64  `json:"kilocalories,omitempty"`
	Meters       *float64  `json:"meters,omitempty"`
	Metadata     Metadata  `json:"metadata"`
}

// Sleep stage names reported by the platform.
const (
	SleepStageAwake    = "awake"
	SleepStageLight    = "light"
	SleepStageDeep     = "deep"
	SleepStageREM      = "rem"
	SleepStageOutOfBed = "out_of_bed"
	SleepStageSleeping = "sleeping"
	SleepStageUnknown  = "unknown"
)

// SleepStage is one contiguous stage inside a sleep session.
type SleepStage struct {
	Stage     string    `json:"stage"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// SleepSessionRecord is a sleep session with optional stage breakdown.
type SleepSessionRecord struct {
	ID        string       `json:"id"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Title     *string      `json:"title,omitempty"`
	Notes     *string      `json:"notes,omitempty"`
	Stages    []SleepStage `json:"stages,omitempty"`
	Metadata  Metadata     `json:"metadata"`
}
