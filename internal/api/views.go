package api

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/health"
)

// ImportRequest is the payload for POST /v1/health/import. An empty Types
// list imports every record type.
type ImportRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Types []string  `json:"types"`
}

// Validate checks the request and converts it to domain values.
func (r ImportRequest) Validate() (domain.TimeRange, []domain.RecordType, error) {
	if r.Start.IsZero() {
		return domain.TimeRange{}, nil, errors.New("start is required")
	}
	if r.End.IsZero() {
		return domain.TimeRange{}, nil, errors.New("end is required")
	}
	window, err := domain.NewTimeRange(r.Start, r.End)
	if err != nil {
		return domain.TimeRange{}, nil, err
	}
	types := make([]domain.RecordType, 0, len(r.Types))
	for _, raw := range r.Types {
		t, err := domain.ParseRecordType(raw)
		if err != nil {
			return domain.TimeRange{}, nil, fmt.Errorf("types: %w", err)
		}
		types = append(types, t)
	}
	return window, types, nil
}

// AvailabilityResponse reports whether the platform is usable.
type AvailabilityResponse struct {
	Available bool `json:"available"`
}

// ImportResultView is the wire form of domain.ImportResult.
type ImportResultView struct {
	Success       bool              `json:"success"`
	ImportedCount int               `json:"imported_count"`
	PerTypeCounts map[string]int    `json:"per_type_counts"`
	PerTypeErrors map[string]string `json:"per_type_errors"`
	SkippedTypes  []string          `json:"skipped_types"`
	Message       string            `json:"message,omitempty"`
}

// PermissionView is one resolved grant.
type PermissionView struct {
	RecordType string `json:"record_type"`
	Granted    bool   `json:"granted"`
}

// StatusView describes the running or most recent import.
type StatusView struct {
	RunID       string            `json:"run_id,omitempty"`
	State       string            `json:"state"`
	RecordType  string            `json:"record_type,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
	Permissions []PermissionView  `json:"permissions"`
	LastResult  *ImportResultView `json:"last_result,omitempty"`
}

// RollupView is the wire form of domain.StatsRollup.
type RollupView struct {
	Steps                  float64   `json:"steps"`
	WorkoutCount           int       `json:"workout_count"`
	WorkoutDurationMinutes float64   `json:"workout_duration_minutes"`
	WindowStart            time.Time `json:"window_start"`
	WindowEnd              time.Time `json:"window_end"`
}

// StatsResponse pairs the daily and weekly rollups.
type StatsResponse struct {
	Daily  RollupView `json:"daily"`
	Weekly RollupView `json:"weekly"`
}

// PermissionResponse answers GET /v1/health/permissions/{type}.
type PermissionResponse struct {
	RecordType string `json:"record_type"`
	Granted    bool   `json:"granted"`
}

// PermissionCheckRequest is the payload for POST /v1/health/permissions/check.
// An empty Types list checks every record type.
type PermissionCheckRequest struct {
	Types []string `json:"types"`
}

// Validate parses the requested types.
func (r PermissionCheckRequest) Validate() ([]domain.RecordType, error) {
	types := make([]domain.RecordType, 0, len(r.Types))
	for _, raw := range r.Types {
		t, err := domain.ParseRecordType(raw)
		if err != nil {
			return nil, fmt.Errorf("types: %w", err)
		}
		types = append(types, t)
	}
	return types, nil
}

// PermissionCheckResponse lists the refreshed grants.
type PermissionCheckResponse struct {
	Permissions []PermissionView `json:"permissions"`
}

// RecordView exposes a persisted record.
type RecordView struct {
	ID              string             `json:"id"`
	RecordType      string             `json:"record_type"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         time.Time          `json:"end_time"`
	PrimaryValue    float64            `json:"primary_value"`
	Unit            string             `json:"unit"`
	SecondaryValues map[string]float64 `json:"secondary_values"`
	Source          string             `json:"source"`
	Metadata        map[string]any     `json:"metadata"`
}

// ListRecordsResponse packages list results.
type ListRecordsResponse struct {
	Items      []RecordView `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toImportResultView(r domain.ImportResult) ImportResultView {
	view := ImportResultView{
		Success:       r.Success,
		ImportedCount: r.ImportedCount,
		PerTypeCounts: make(map[string]int, len(r.PerTypeCounts)),
		PerTypeErrors: make(map[string]string, len(r.PerTypeErrors)),
		SkippedTypes:  make([]string, 0, len(r.SkippedTypes)),
		Message:       r.Message,
	}
	for t, n := range r.PerTypeCounts {
		view.PerTypeCounts[string(t)] = n
	}
	for t, msg := range r.PerTypeErrors {
		view.PerTypeErrors[string(t)] = msg
	}
	for _, t := range r.SkippedTypes {
		view.SkippedTypes = append(view.SkippedTypes, string(t))
	}
	sort.Strings(view.SkippedTypes)
	return view
}

func toStatusView(s health.Status) StatusView {
	view := StatusView{
		RunID:       s.RunID,
		State:       string(s.State),
		RecordType:  string(s.RecordType),
		Permissions: make([]PermissionView, 0, len(s.Permissions)),
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		view.StartedAt = &started
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		view.UpdatedAt = &updated
	}
	for _, g := range s.Permissions {
		view.Permissions = append(view.Permissions, PermissionView{RecordType: string(g.RecordType), Granted: g.Granted})
	}
	if s.LastResult != nil {
		last := toImportResultView(*s.LastResult)
		view.LastResult = &last
	}
	return view
}

func toRollupView(r domain.StatsRollup) RollupView {
	return RollupView{
		Steps:                  r.Steps,
		WorkoutCount:           r.WorkoutCount,
		WorkoutDurationMinutes: r.WorkoutDurationMinutes,
		WindowStart:            r.WindowStart,
		WindowEnd:              r.WindowEnd,
	}
}

func toRecordView(r domain.HealthRecord) RecordView {
	return RecordView{
		ID:              r.ID,
		RecordType:      string(r.Type),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		PrimaryValue:    r.PrimaryValue,
		Unit:            r.Type.Unit(),
		SecondaryValues: r.SecondaryValues,
		Source:          r.Source,
		Metadata:        r.Metadata,
	}
}
