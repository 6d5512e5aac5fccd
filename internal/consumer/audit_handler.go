package consumer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditHandler records every imported-record event in health_record_event_log.
// Redelivered offsets are ignored.
type AuditHandler struct {
	db Execer
}

// NewAuditHandler constructs a handler writing through db.
func NewAuditHandler(db Execer) *AuditHandler {
	return &AuditHandler{db: db}
}

// Handle stores the decoded record alongside its Kafka coordinates.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	_, err := h.db.Exec(ctx,
		`INSERT INTO health_record_event_log (event_type, record_type, record_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		string(msg.RecordType),
		msg.Record.RecordID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		[]byte(msg.Payload),
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event log %s/%s: %w", msg.RecordType, msg.Record.RecordID, err)
	}
	return nil
}
