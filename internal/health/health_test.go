package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/persistence/memory"
	"example.com/healthsync/internal/platform/platformtest"
)

var (
	testDay    = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	testWindow = domain.TimeRange{Start: testDay, End: testDay.Add(24 * time.Hour)}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(fake *platformtest.Fake, store domain.RecordWriter, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewOrchestrator(fake, store, opts...)
}

type recordingObserver struct {
	mu     sync.Mutex
	states []State
	types  []domain.RecordType
	perms  PermissionState
	result *domain.ImportResult
}

func (r *recordingObserver) StateChanged(_ context.Context, state State, t domain.RecordType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	if t != "" {
		r.types = append(r.types, t)
	}
}

func (r *recordingObserver) PermissionsResolved(_ context.Context, perms PermissionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms = perms
}

func (r *recordingObserver) Completed(_ context.Context, result domain.ImportResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = &result
}

// failingWriter rejects the configured ids and delegates everything else.
type failingWriter struct {
	next    *memory.Store
	failIDs map[string]bool
	calls   int
}

func (f *failingWriter) UpsertActivity(ctx context.Context, rec domain.HealthRecord) (bool, error) {
	f.calls++
	if f.failIDs["*"] || f.failIDs[rec.ID] {
		return false, errors.New("disk full")
	}
	return f.next.UpsertActivity(ctx, rec)
}
