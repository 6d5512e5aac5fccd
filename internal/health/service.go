package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

// Status is the published view of the most recently started import. Updates
// from an older run that is still in flight do not overwrite it.
type Status struct {
	RunID       string
	State       State
	RecordType  domain.RecordType
	StartedAt   time.Time
	UpdatedAt   time.Time
	Permissions []domain.PermissionGrant
	LastResult  *domain.ImportResult
}

// Service is the facade used by the HTTP layer.
type Service struct {
	orchestrator *Orchestrator
	probe        *Probe
	negotiator   *Negotiator
	aggregator   *Aggregator
	lister       domain.RecordLister
	logger       *slog.Logger
	now          func() time.Time

	mu       sync.RWMutex
	status   Status
	grants   map[domain.RecordType]bool
	external Observer
}

type runKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}

// NewService wires the pipeline over client and store.
func NewService(client platform.Client, store domain.ActivityStore, opts ...Option) *Service {
	o := buildOptions(opts)
	s := &Service{
		probe:      NewProbe(client, o.logger),
		negotiator: NewNegotiator(client, o.consentTimeout, o.logger),
		aggregator: NewAggregator(store, o.location),
		lister:     store,
		logger:     o.logger,
		now:        o.now,
		status:     Status{State: StateIdle},
		grants:     make(map[domain.RecordType]bool),
		external:   o.observer,
	}
	o.observer = s
	s.orchestrator = newOrchestrator(client, store, o)
	return s
}

// IsAvailable reports whether the health platform can be used.
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.probe.Available(ctx)
}

// ImportHealthData runs an import synchronously on the caller's goroutine.
// Concurrent calls are allowed; Status follows the one started last.
func (s *Service) ImportHealthData(ctx context.Context, window domain.TimeRange, types []domain.RecordType) domain.ImportResult {
	runID := uuid.NewString()
	now := s.now()
	s.mu.Lock()
	s.status = Status{RunID: runID, State: StateIdle, StartedAt: now, UpdatedAt: now, LastResult: s.status.LastResult}
	s.mu.Unlock()
	return s.orchestrator.Import(withRunID(ctx, runID), window, types)
}

// GetHealthStats returns daily and weekly rollups for the current time.
func (s *Service) GetHealthStats(ctx context.Context) (domain.HealthStats, error) {
	return s.aggregator.HealthStats(ctx, s.now())
}

// HasPermission reports the last grant resolved for t by an import or
// CheckPermissions. It never calls the platform; unresolved types are false.
func (s *Service) HasPermission(t domain.RecordType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[t]
}

// CheckPermissions refreshes the grants for types from the platform.
func (s *Service) CheckPermissions(ctx context.Context, types []domain.RecordType) ([]domain.PermissionGrant, error) {
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, t)
		}
	}
	types = dedupeTypes(types)
	perms, err := s.negotiator.Check(ctx, types)
	if err != nil {
		return nil, fmt.Errorf("check permissions: %w", err)
	}
	grants := perms.Grants()
	s.storeGrants(grants)
	return grants, nil
}

func (s *Service) storeGrants(grants []domain.PermissionGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range grants {
		s.grants[g.RecordType] = g.Granted
	}
}

// current reports whether ctx belongs to the run Status is tracking. Calls
// made outside ImportHealthData carry no run id and always count.
func (s *Service) current(ctx context.Context) bool {
	id := runIDFrom(ctx)
	return id == "" || id == s.status.RunID
}

// ListRecords pages through stored records.
func (s *Service) ListRecords(ctx context.Context, t domain.RecordType, cursor *domain.Cursor, limit int) ([]domain.HealthRecord, *domain.Cursor, error) {
	return s.lister.ListRecords(ctx, t, cursor, limit)
}

// Status returns a copy of the published import status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.status
	out.Permissions = append([]domain.PermissionGrant(nil), s.status.Permissions...)
	return out
}

// StateChanged implements Observer.
func (s *Service) StateChanged(ctx context.Context, state State, t domain.RecordType) {
	s.mu.Lock()
	if s.current(ctx) {
		s.status.State = state
		s.status.RecordType = t
		s.status.UpdatedAt = s.now()
	}
	s.mu.Unlock()
	if s.external != nil {
		s.external.StateChanged(ctx, state, t)
	}
}

// PermissionsResolved implements Observer. Grants from every run refresh the
// HasPermission answers.
func (s *Service) PermissionsResolved(ctx context.Context, perms PermissionState) {
	grants := perms.Grants()
	s.storeGrants(grants)
	s.mu.Lock()
	if s.current(ctx) {
		s.status.Permissions = grants
	}
	s.mu.Unlock()
	if s.external != nil {
		s.external.PermissionsResolved(ctx, perms)
	}
}

// Completed implements Observer.
func (s *Service) Completed(ctx context.Context, result domain.ImportResult) {
	s.mu.Lock()
	if s.current(ctx) {
		r := result
		s.status.LastResult = &r
		s.status.UpdatedAt = s.now()
	}
	s.mu.Unlock()
	if s.external != nil {
		s.external.Completed(ctx, result)
	}
}
