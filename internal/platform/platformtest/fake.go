// Package platformtest provides a scriptable in-memory health platform for tests.
package platformtest

import (
	"context"
	"strings"
	"sync"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

// Fake implements platform.Client from scripted fields and records every call.
// Configure it before use; the call log is safe for concurrent access.
type Fake struct {
	Available       bool
	AvailabilityErr error

	// Granted holds current OS-level grants; Approve lists the types the
	// simulated user accepts when the consent dialog is shown.
	Granted    map[domain.RecordType]bool
	Approve    map[domain.RecordType]bool
	CheckErr   error
	RequestErr error
	// BlockRequest makes RequestPermissions wait until its context ends.
	BlockRequest bool

	Steps          []platform.StepsRecord
	HeartRate      []platform.HeartRateRecord
	Distance       []platform.DistanceRecord
	ActiveCalories []platform.CaloriesRecord
	TotalCalories  []platform.CaloriesRecord
	Exercise       []platform.ExerciseSessionRecord
	Sleep          []platform.SleepSessionRecord
	ReadErrs       map[domain.RecordType]error

	mu    sync.Mutex
	calls []string
}

var _ platform.Client = (*Fake)(nil)

// New returns an available platform that has granted every type.
func New() *Fake {
	granted := make(map[domain.RecordType]bool)
	for _, t := range domain.AllRecordTypes() {
		granted[t] = true
	}
	return &Fake{
		Available: true,
		Granted:   granted,
		Approve:   make(map[domain.RecordType]bool),
		ReadErrs:  make(map[domain.RecordType]error),
	}
}

// Calls returns the recorded call log in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts recorded calls starting with prefix.
func (f *Fake) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// IsHealthServiceAvailable implements platform.AvailabilityChecker.
func (f *Fake) IsHealthServiceAvailable(context.Context) (bool, error) {
	f.record("availability")
	return f.Available, f.AvailabilityErr
}

// CheckPermissions implements platform.PermissionClient.
func (f *Fake) CheckPermissions(_ context.Context, requests []platform.PermissionRequest) (platform.PermissionResponse, error) {
	f.record("check:" + joinTypes(requests))
	if f.CheckErr != nil {
		return platform.PermissionResponse{}, f.CheckErr
	}
	resp := platform.PermissionResponse{Success: true}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range requests {
		if f.Granted[req.RecordType] {
			resp.Granted = append(resp.Granted, req.RecordType)
		} else {
			resp.Denied = append(resp.Denied, req.RecordType)
		}
	}
	return resp, nil
}

// RequestPermissions implements platform.PermissionClient.
func (f *Fake) RequestPermissions(ctx context.Context, requests []platform.PermissionRequest) (platform.PermissionResponse, error) {
	f.record("request:" + joinTypes(requests))
	if f.BlockRequest {
		<-ctx.Done()
		return platform.PermissionResponse{}, ctx.Err()
	}
	if f.RequestErr != nil {
		return platform.PermissionResponse{}, f.RequestErr
	}
	resp := platform.PermissionResponse{Success: true}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range requests {
		if f.Approve[req.RecordType] {
			f.Granted[req.RecordType] = true
		}
		if f.Granted[req.RecordType] {
			resp.Granted = append(resp.Granted, req.RecordType)
		} else {
			resp.Denied = append(resp.Denied, req.RecordType)
			resp.Success = false
		}
	}
	return resp, nil
}

func readScripted[T any](f *Fake, t domain.RecordType, records []T) ([]T, error) {
	f.record("read:" + string(t))
	if err := f.ReadErrs[t]; err != nil {
		return nil, err
	}
	out := make([]T, len(records))
	copy(out, records)
	return out, nil
}

// ReadSteps implements platform.RecordReader.
func (f *Fake) ReadSteps(context.Context, domain.TimeRange) ([]platform.StepsRecord, error) {
	return readScripted(f, domain.RecordTypeSteps, f.Steps)
}

// ReadHeartRate implements platform.RecordReader.
func (f *Fake) ReadHeartRate(context.Context, domain.TimeRange) ([]platform.HeartRateRecord, error) {
	return readScripted(f, domain.RecordTypeHeartRate, f.HeartRate)
}

// ReadDistance implements platform.RecordReader.
func (f *Fake) ReadDistance(context.Context, domain.TimeRange) ([]platform.DistanceRecord, error) {
	return readScripted(f, domain.RecordTypeDistance, f.Distance)
}

// ReadActiveCalories implements platform.RecordReader.
func (f *Fake) ReadActiveCalories(context.Context, domain.TimeRange) ([]platform.CaloriesRecord, error) {
	return readScripted(f, domain.RecordTypeActiveCalories, f.ActiveCalories)
}

// ReadTotalCalories implements platform.RecordReader.
func (f *Fake) ReadTotalCalories(context.Context, domain.TimeRange) ([]platform.CaloriesRecord, error) {
	return readScripted(f, domain.RecordTypeTotalCalories, f.TotalCalories)
}

// ReadExerciseSessions implements platform.RecordReader.
func (f *Fake) ReadExerciseSessions(context.Context, domain.TimeRange) ([]platform.ExerciseSessionRecord, error) {
	return readScripted(f, domain.RecordTypeExercise, f.Exercise)
}

// ReadSleepSessions implements platform.RecordReader.
func (f *Fake) ReadSleepSessions(context.Context, domain.TimeRange) ([]platform.SleepSessionRecord, error) {
	return readScripted(f, domain.RecordTypeSleep, f.Sleep)
}

func joinTypes(requests []platform.PermissionRequest) string {
	names := make([]string, 0, len(requests))
	for _, r := range requests {
		names = append(names, string(r.RecordType))
	}
	return strings.Join(names, ",")
}
