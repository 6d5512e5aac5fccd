// Package postgres implements the activity store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/outbox"
	"example.com/healthsync/internal/persistence"
)

// Repository stores health records and their outbox events.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ domain.ActivityStore = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

// UpsertActivity writes rec in its own transaction. A first insert also
// enqueues a health_record.imported event in the same transaction.
func (r *Repository) UpsertActivity(ctx context.Context, rec domain.HealthRecord) (inserted bool, err error) {
	secondary, err := json.Marshal(nonNil(rec.SecondaryValues))
	if err != nil {
		return false, fmt.Errorf("encode secondary values: %w", err)
	}
	metadata, err := json.Marshal(nonNilMeta(rec.Metadata))
	if err != nil {
		return false, fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const upsert = `INSERT INTO health_records (source, record_type, external_id, start_time, end_time, primary_value, secondary_values, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (source, record_type, external_id) DO UPDATE SET
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            primary_value = EXCLUDED.primary_value,
            secondary_values = EXCLUDED.secondary_values,
            metadata = EXCLUDED.metadata,
            updated_at = NOW()
        RETURNING (xmax = 0)`

	err = tx.QueryRow(ctx, upsert,
		rec.Source,
		string(rec.Type),
		rec.ID,
		rec.StartTime.UTC(),
		rec.EndTime.UTC(),
		rec.PrimaryValue,
		secondary,
		metadata,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}

	if inserted {
		if err = outbox.Enqueue(ctx, tx, outbox.NewHealthRecordImported(rec, r.now())); err != nil {
			return false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return inserted, nil
}

// QueryAggregate reduces records of recordType starting inside window.
func (r *Repository) QueryAggregate(ctx context.Context, recordType domain.RecordType, kind domain.AggregateKind, window domain.TimeRange) (float64, error) {
	var expr string
	switch kind {
	case domain.AggregateSum:
		expr = "COALESCE(SUM(primary_value), 0)"
	case domain.AggregateCount:
		expr = "COUNT(*)::float8"
	default:
		return 0, fmt.Errorf("unsupported aggregate %q", kind)
	}

	query := `SELECT ` + expr + ` FROM health_records
        WHERE record_type = $1 AND start_time >= $2 AND start_time < $3`

	var total float64
	if err := r.pool.QueryRow(ctx, query, string(recordType), window.Start.UTC(), window.End.UTC()).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListRecords returns records newest first. An empty recordType lists all types.
func (r *Repository) ListRecords(ctx context.Context, recordType domain.RecordType, cursor *domain.Cursor, limit int) ([]domain.HealthRecord, *domain.Cursor, error) {
	limit = persistence.ClampLimit(limit)
	args := []any{limit}
	query := `SELECT source, record_type, external_id, start_time, end_time, primary_value, secondary_values, metadata
        FROM health_records WHERE TRUE`

	if recordType != "" {
		args = append(args, string(recordType))
		query += fmt.Sprintf(` AND record_type = $%d`, len(args))
	}
	if cursor != nil {
		args = append(args, cursor.StartTime.UTC(), cursor.ID)
		query += fmt.Sprintf(` AND (start_time, external_id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY start_time DESC, external_id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	results, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartTime: last.StartTime, ID: last.ID}
	}
	return results, next, nil
}

func scanRecord(row pgx.CollectableRow) (domain.HealthRecord, error) {
	var (
		rec        domain.HealthRecord
		recordType string
		secondary  []byte
		metadata   []byte
	)
	if err := row.Scan(&rec.Source, &recordType, &rec.ID, &rec.StartTime, &rec.EndTime, &rec.PrimaryValue, &secondary, &metadata); err != nil {
		return domain.HealthRecord{}, err
	}
	rec.Type = domain.RecordType(recordType)
	if err := json.Unmarshal(secondary, &rec.SecondaryValues); err != nil {
		return domain.HealthRecord{}, fmt.Errorf("decode secondary values: %w", err)
	}
	if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
		return domain.HealthRecord{}, fmt.Errorf("decode metadata: %w", err)
	}
	return rec, nil
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nonNilMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
