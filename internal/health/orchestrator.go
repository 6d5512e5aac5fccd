package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/platform"
)

// State is a step of the import state machine.
type State string

const (
	StateIdle                  State = "idle"
	StateCheckingAvailability  State = "checking_availability"
	StateCheckingPermissions   State = "checking_permissions"
	StateRequestingPermissions State = "requesting_permissions"
	StateImporting             State = "importing"
	StateCompleted             State = "completed"
)

// Observer receives orchestrator progress. Calls happen on the import goroutine.
type Observer interface {
	// StateChanged reports a transition. recordType is set only while importing.
	StateChanged(ctx context.Context, state State, recordType domain.RecordType)
	// PermissionsResolved reports the grants used by the run.
	PermissionsResolved(ctx context.Context, perms PermissionState)
	// Completed reports the final result.
	Completed(ctx context.Context, result domain.ImportResult)
}

type typeOutcome struct {
	Type     domain.RecordType
	Imported int
	Err      error
}

// Orchestrator runs one import end to end.
type Orchestrator struct {
	probe      *Probe
	negotiator *Negotiator
	fetcher    *Fetcher
	persister  *Persister
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires the pipeline stages over a platform client and a record writer.
func NewOrchestrator(client platform.Client, store domain.RecordWriter, opts ...Option) *Orchestrator {
	o := buildOptions(opts)
	return newOrchestrator(client, store, o)
}

func newOrchestrator(client platform.Client, store domain.RecordWriter, o options) *Orchestrator {
	persister := NewPersister(store, o.logger)
	persister.now = o.now
	return &Orchestrator{
		probe:      NewProbe(client, o.logger),
		negotiator: NewNegotiator(client, o.consentTimeout, o.logger),
		fetcher:    NewFetcher(client),
		persister:  persister,
		observer:   o.observer,
		logger:     o.logger,
		now:        o.now,
	}
}

// Import acquires every requested type inside window. It always returns a
// result; failures are reported per type. An empty types list means every type.
func (o *Orchestrator) Import(ctx context.Context, window domain.TimeRange, types []domain.RecordType) domain.ImportResult {
	started := o.now()
	result := o.run(ctx, window, types)
	o.transition(ctx, StateCompleted, "")
	if o.observer != nil {
		o.observer.Completed(ctx, result)
	}
	recordRun(result, o.now().Sub(started))
	observability.RecordImportCompleted(o.now())
	o.logger.InfoContext(ctx, "import completed",
		"success", result.Success,
		"imported", result.ImportedCount,
		"skipped", result.SkippedTypes,
		"errors", len(result.PerTypeErrors),
		"message", result.Message,
	)
	return result
}

func (o *Orchestrator) run(ctx context.Context, window domain.TimeRange, types []domain.RecordType) domain.ImportResult {
	result := domain.NewImportResult()
	if err := window.Validate(); err != nil {
		result.Message = domain.MessageInvalidRange
		return result
	}

	o.transition(ctx, StateCheckingAvailability, "")
	if !o.probe.Available(ctx) {
		result.Message = domain.MessageUnavailable
		return result
	}

	requested := dedupeTypes(types)

	o.transition(ctx, StateCheckingPermissions, "")
	perms, err := o.negotiator.Check(ctx, requested)
	if err != nil {
		o.logger.WarnContext(ctx, "permission check failed", "error", err)
	}
	if pending := perms.Pending(); len(pending) > 0 {
		o.transition(ctx, StateRequestingPermissions, "")
		perms, err = o.negotiator.Request(ctx, perms, pending)
		if err != nil {
			o.logger.WarnContext(ctx, "permission request failed", "types", pending, "error", err)
		}
	}
	if o.observer != nil {
		o.observer.PermissionsResolved(ctx, perms)
	}

	outcomes := make([]typeOutcome, 0, len(requested))
	for _, t := range requested {
		outcomes = append(outcomes, o.importType(ctx, t, window, perms))
	}
	return fold(result, outcomes)
}

func (o *Orchestrator) importType(ctx context.Context, t domain.RecordType, window domain.TimeRange, perms PermissionState) typeOutcome {
	if !perms.HasPermission(t) {
		err := &domain.PermissionError{Type: t}
		recordTypeError(t, err)
		return typeOutcome{Type: t, Err: err}
	}
	o.transition(ctx, StateImporting, t)

	batch, err := o.fetcher.Fetch(ctx, t, window, perms)
	if err != nil {
		o.logger.WarnContext(ctx, "fetch failed", "record_type", t, "error", err)
		recordTypeError(t, err)
		return typeOutcome{Type: t, Err: err}
	}

	res := o.persister.PersistBatch(ctx, batch.Records)
	recordBatch(t, res.Written, batch.Filtered)
	o.logger.DebugContext(ctx, "record type imported",
		"record_type", t,
		"fetched", batch.Fetched,
		"filtered", batch.Filtered,
		"written", res.Written,
		"inserted", res.Inserted,
		"failed", res.Failed,
	)

	out := typeOutcome{Type: t, Imported: res.Written}
	if res.Failed > 0 {
		out.Err = &domain.PersistenceError{
			Type: t,
			Err:  fmt.Errorf("persistence failed for %d of %d records", res.Failed, len(batch.Records)),
		}
		recordTypeError(t, out.Err)
	}
	return out
}

// fold reduces per-type outcomes into the run result. Skipped permission
// types are reported but only provider and persistence errors fail the run.
func fold(result domain.ImportResult, outcomes []typeOutcome) domain.ImportResult {
	failed := false
	for _, out := range outcomes {
		result.ImportedCount += out.Imported
		if out.Imported > 0 || out.Err == nil {
			result.PerTypeCounts[out.Type] = out.Imported
		}
		if out.Err == nil {
			continue
		}
		if domain.IsPermission(out.Err) {
			result.PerTypeErrors[out.Type] = (&domain.PermissionError{}).Error()
			result.SkippedTypes = append(result.SkippedTypes, out.Type)
			continue
		}
		failed = true
		result.PerTypeErrors[out.Type] = typeErrorMessage(out.Err)
	}

	result.Success = result.ImportedCount > 0 && !failed
	if result.ImportedCount == 0 {
		switch {
		case len(outcomes) > 0 && len(result.SkippedTypes) == len(outcomes):
			result.Message = domain.MessagePermissionsDenied
		case !failed:
			result.Message = domain.MessageNothingToAdd
		default:
			result.Message = domain.MessageImportFailed
		}
	}
	return result
}

func typeErrorMessage(err error) string {
	if perr, ok := err.(*domain.PersistenceError); ok && perr.RecordID == "" {
		return perr.Err.Error()
	}
	return err.Error()
}

func (o *Orchestrator) transition(ctx context.Context, state State, t domain.RecordType) {
	if o.observer != nil {
		o.observer.StateChanged(ctx, state, t)
	}
}

func dedupeTypes(types []domain.RecordType) []domain.RecordType {
	if len(types) == 0 {
		return domain.AllRecordTypes()
	}
	seen := make(map[domain.RecordType]bool, len(types))
	out := make([]domain.RecordType, 0, len(types))
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
