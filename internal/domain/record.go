// Package domain defines the health records, results, and ports shared by the import pipeline.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourcePlatformHealth tags every record acquired from the device health platform.
const SourcePlatformHealth = "platform_health"

// RecordType is the closed set of health data categories the pipeline imports.
type RecordType string

const (
	RecordTypeSteps          RecordType = "steps"
	RecordTypeHeartRate      RecordType = "heart_rate"
	RecordTypeDistance       RecordType = "distance"
	RecordTypeActiveCalories RecordType = "active_calories"
	RecordTypeTotalCalories  RecordType = "total_calories"
	RecordTypeExercise       RecordType = "exercise"
	RecordTypeSleep          RecordType = "sleep"
)

var allRecordTypes = []RecordType{
	RecordTypeSteps,
	RecordTypeHeartRate,
	RecordTypeDistance,
	RecordTypeActiveCalories,
	RecordTypeTotalCalories,
	RecordTypeExercise,
	RecordTypeSleep,
}

// ErrUnknownRecordType is returned when a record type name is not recognised.
var ErrUnknownRecordType = errors.New("unknown record type")

// AllRecordTypes returns every record type in canonical order.
func AllRecordTypes() []RecordType {
	out := make([]RecordType, len(allRecordTypes))
	copy(out, allRecordTypes)
	return out
}

// ParseRecordType maps a wire name onto a RecordType.
func ParseRecordType(value string) (RecordType, error) {
	t := RecordType(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRecordType, value)
	}
	return t, nil
}

// Valid reports whether t belongs to the closed set.
func (t RecordType) Valid() bool {
	for _, known := range allRecordTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Unit names the unit of the record type's primary value.
func (t RecordType) Unit() string {
	switch t {
	case RecordTypeSteps:
		return "count"
	case RecordTypeHeartRate:
		return "bpm"
	case RecordTypeDistance:
		return "m"
	case RecordTypeActiveCalories, RecordTypeTotalCalories:
		return "kcal"
	case RecordTypeExercise, RecordTypeSleep:
		return "min"
	default:
		return ""
	}
}

func (t RecordType) String() string { return string(t) }

// ErrInvalidRange is returned when a time range starts after it ends.
var ErrInvalidRange = errors.New("time range start is after end")

// TimeRange bounds fetches and queries to the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange validates and constructs a TimeRange.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	r := TimeRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

// Validate enforces start <= end.
func (r TimeRange) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// HealthRecord is the normalized shape persisted by the pipeline. Values are
// built once by the normalizer and never mutated afterwards.
type HealthRecord struct {
	ID              string
	Type            RecordType
	StartTime       time.Time
	EndTime         time.Time
	PrimaryValue    float64
	SecondaryValues map[string]float64
	Source          string
	Metadata        map[string]any
}

// RecordKey is the dedup key enforced by every store: one row per provider record.
type RecordKey struct {
	Source string
	Type   RecordType
	ID     string
}

// Key returns the record's dedup key.
func (r HealthRecord) Key() RecordKey {
	return RecordKey{Source: r.Source, Type: r.Type, ID: r.ID}
}

// Validate checks the invariants a record must satisfy before it is written.
func (r HealthRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return errors.New("record id is required")
	case !r.Type.Valid():
		return fmt.Errorf("%w: %q", ErrUnknownRecordType, r.Type)
	case r.EndTime.Before(r.StartTime):
		return errors.New("record end time precedes start time")
	case r.PrimaryValue <= 0:
		return errors.New("record primary value must be positive")
	case r.Source == "":
		return errors.New("record source is required")
	}
	return nil
}

// NewHealthRecord builds a record with its own copies of the value maps.
func NewHealthRecord(id string, t RecordType, start, end time.Time, primary float64, secondary map[string]float64, metadata map[string]any) HealthRecord {
	r := HealthRecord{
		ID:              id,
		Type:            t,
		StartTime:       start,
		EndTime:         end,
		PrimaryValue:    primary,
		SecondaryValues: make(map[string]float64, len(secondary)),
		Source:          SourcePlatformHealth,
		Metadata:        make(map[string]any, len(metadata)),
	}
	for k, v := range secondary {
		r.SecondaryValues[k] = v
	}
	for k, v := range metadata {
		r.Metadata[k] = v
	}
	return r
}

// Secondary returns a secondary value by key.
func (r HealthRecord) Secondary(key string) (float64, bool) {
	v, ok := r.SecondaryValues[key]
	return v, ok
}

// Meta returns a metadata value by key.
func (r HealthRecord) Meta(key string) (any, bool) {
	v, ok := r.Metadata[key]
	return v, ok
}
