// Package memory implements the activity store in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/persistence"
)

// Store keeps one row per record key. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[domain.RecordKey]domain.HealthRecord
}

var _ domain.ActivityStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[domain.RecordKey]domain.HealthRecord)}
}

// UpsertActivity inserts or replaces the row for the record's key.
func (s *Store) UpsertActivity(ctx context.Context, record domain.HealthRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := record.Validate(); err != nil {
		return false, err
	}
	stored := domain.NewHealthRecord(record.ID, record.Type, record.StartTime, record.EndTime, record.PrimaryValue, record.SecondaryValues, record.Metadata)
	stored.Source = record.Source

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.records[record.Key()]
	s.records[record.Key()] = stored
	return !exists, nil
}

// QueryAggregate reduces records of recordType whose start time falls in window.
func (s *Store) QueryAggregate(ctx context.Context, recordType domain.RecordType, kind domain.AggregateKind, window domain.TimeRange) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if kind != domain.AggregateSum && kind != domain.AggregateCount {
		return 0, fmt.Errorf("unsupported aggregate %q", kind)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, rec := range s.records {
		if rec.Type != recordType || !window.Contains(rec.StartTime) {
			continue
		}
		if kind == domain.AggregateCount {
			total++
		} else {
			total += rec.PrimaryValue
		}
	}
	return total, nil
}

// ListRecords returns records newest first, optionally filtered by type.
func (s *Store) ListRecords(ctx context.Context, recordType domain.RecordType, cursor *domain.Cursor, limit int) ([]domain.HealthRecord, *domain.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	limit = persistence.ClampLimit(limit)

	s.mu.RLock()
	matches := make([]domain.HealthRecord, 0, len(s.records))
	for _, rec := range s.records {
		if recordType != "" && rec.Type != recordType {
			continue
		}
		if !persistence.Before(cursor, rec.StartTime, rec.ID) {
			continue
		}
		matches = append(matches, rec)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartTime.Equal(matches[j].StartTime) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].StartTime.After(matches[j].StartTime)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	var next *domain.Cursor
	if len(matches) == limit {
		last := matches[len(matches)-1]
		next = &domain.Cursor{StartTime: last.StartTime, ID: last.ID}
	}
	return matches, next, nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
