package domain

import (
	"context"
	"time"
)

// AggregateKind selects the reduction applied by QueryAggregate.
type AggregateKind string

const (
	AggregateSum   AggregateKind = "sum"
	AggregateCount AggregateKind = "count"
)

// Cursor models the pagination token for record listings.
type Cursor struct {
	StartTime time.Time
	ID        string
}

// RecordWriter persists normalized records. UpsertActivity is idempotent on
// RecordKey; inserted is false when an existing row was refreshed instead.
type RecordWriter interface {
	UpsertActivity(ctx context.Context, record HealthRecord) (inserted bool, err error)
}

// AggregateReader reduces persisted records whose start time falls in the range.
type AggregateReader interface {
	QueryAggregate(ctx context.Context, recordType RecordType, kind AggregateKind, window TimeRange) (float64, error)
}

// RecordLister pages through persisted records, newest first. An empty
// recordType lists every type.
type RecordLister interface {
	ListRecords(ctx context.Context, recordType RecordType, cursor *Cursor, limit int) ([]HealthRecord, *Cursor, error)
}

// ActivityStore is the local store shared by the persister and the stats aggregator.
type ActivityStore interface {
	RecordWriter
	AggregateReader
	RecordLister
}
