package domain

import "time"

// PermissionGrant is the read grant observed for one record type.
type PermissionGrant struct {
	RecordType RecordType
	Granted    bool
}

// Reasons reported in ImportResult.Message.
const (
	MessageUnavailable  = "health platform unavailable"
	MessageNothingToAdd = "no new data to import"
	MessageInvalidRange = "invalid time range"

	MessagePermissionsDenied = "permission denied for every requested record type"
	MessageImportFailed      = "no records imported"
)

// ImportResult summarises one import run. PerTypeErrors holds a human-readable
// reason for every type that failed or was skipped.
type ImportResult struct {
	Success       bool
	ImportedCount int
	PerTypeErrors map[RecordType]string
	SkippedTypes  []RecordType
	PerTypeCounts map[RecordType]int
	Message       string
}

// NewImportResult returns an empty, unsuccessful result with initialised collections.
func NewImportResult() ImportResult {
	return ImportResult{
		PerTypeErrors: make(map[RecordType]string),
		SkippedTypes:  make([]RecordType, 0),
		PerTypeCounts: make(map[RecordType]int),
	}
}

// StatsRollup aggregates persisted records over one window.
type StatsRollup struct {
	Steps                  float64
	WorkoutCount           int
	WorkoutDurationMinutes float64
	WindowStart            time.Time
	WindowEnd              time.Time
}

// HealthStats pairs the daily and weekly rollups consumed by dashboards.
type HealthStats struct {
	Daily  StatsRollup
	Weekly StatsRollup
}
