package health

import (
	"context"
	"log/slog"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
)

// Persister writes normalized records one at a time.
type Persister struct {
	store  domain.RecordWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewPersister constructs a Persister.
func NewPersister(store domain.RecordWriter, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{store: store, logger: logger, now: time.Now}
}

// Persist upserts one record and reports whether the write succeeded. Failures
// are logged and never returned.
func (p *Persister) Persist(ctx context.Context, rec domain.HealthRecord) bool {
	_, ok := p.persist(ctx, rec)
	return ok
}

func (p *Persister) persist(ctx context.Context, rec domain.HealthRecord) (inserted, ok bool) {
	err := rec.Validate()
	if err == nil {
		inserted, err = p.store.UpsertActivity(ctx, rec)
	}
	if err != nil {
		perr := &domain.PersistenceError{Type: rec.Type, RecordID: rec.ID, Err: err}
		p.logger.ErrorContext(ctx, "persist record", "record_type", rec.Type, "record_id", rec.ID, "error", perr)
		return false, false
	}
	observability.RecordPersisted(p.now())
	return inserted, true
}

// BatchResult tallies one PersistBatch call. Inserted counts first-time rows
// and is a subset of Written.
type BatchResult struct {
	Written  int
	Inserted int
	Failed   int
}

// PersistBatch writes every record, continuing past failures. Earlier writes
// are never undone by later failures.
func (p *Persister) PersistBatch(ctx context.Context, records []domain.HealthRecord) BatchResult {
	var res BatchResult
	for _, rec := range records {
		inserted, ok := p.persist(ctx, rec)
		switch {
		case !ok:
			res.Failed++
		case inserted:
			res.Written++
			res.Inserted++
		default:
			res.Written++
		}
	}
	return res
}
