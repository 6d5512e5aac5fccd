package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/healthsync/internal/domain"
)

// Event types and topics published by the service.
const (
	EventHealthRecordImported = "health_record.imported"
	TopicHealthRecordEvents   = "health_record_events"
)

// HealthRecordImported is emitted the first time a record key is stored.
type HealthRecordImported struct {
	RecordID     string    `json:"record_id"`
	RecordType   string    `json:"record_type"`
	Source       string    `json:"source"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	PrimaryValue float64   `json:"primary_value"`
	Unit         string    `json:"unit"`
	ImportedAt   time.Time `json:"imported_at"`
}

// Event is a row destined for the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	DedupeKey     string
	Payload       any
}

// NewHealthRecordImported builds the outbox event for a newly stored record.
func NewHealthRecordImported(rec domain.HealthRecord, importedAt time.Time) Event {
	return Event{
		AggregateType: "health_record",
		AggregateID:   rec.ID,
		EventType:     EventHealthRecordImported,
		PartitionKey:  string(rec.Type),
		DedupeKey:     fmt.Sprintf("%s:%s", rec.Type, rec.ID),
		Payload: HealthRecordImported{
			RecordID:     rec.ID,
			RecordType:   string(rec.Type),
			Source:       rec.Source,
			StartTime:    rec.StartTime.UTC(),
			EndTime:      rec.EndTime.UTC(),
			PrimaryValue: rec.PrimaryValue,
			Unit:         rec.Type.Unit(),
			ImportedAt:   importedAt.UTC(),
		},
	}
}

// EventMetadata describes how an event type is routed and encoded.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]EventMetadata{
	EventHealthRecordImported: {
		Topic:         TopicHealthRecordEvents,
		SchemaSubject: TopicHealthRecordEvents + "-value",
		Schema:        healthRecordImportedSchema,
	},
}

// Lookup returns routing metadata for eventType.
func Lookup(eventType string) (EventMetadata, bool) {
	meta, ok := catalog[eventType]
	return meta, ok
}

// Execer is satisfied by pgx.Tx and pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Enqueue appends ev to the outbox using tx. Events whose dedupe key was
// already enqueued are ignored.
func Enqueue(ctx context.Context, tx Execer, ev Event) error {
	meta, ok := Lookup(ev.EventType)
	if !ok {
		return fmt.Errorf("unknown event type: %s", ev.EventType)
	}
	body, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.EventType, err)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		ev.AggregateType,
		ev.AggregateID,
		ev.EventType,
		meta.Topic,
		meta.SchemaSubject,
		ev.PartitionKey,
		body,
		ev.DedupeKey,
	)
	return err
}
