//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/outbox"
)

func TestImportedRecordRoundTripsThroughKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             outbox.TopicHealthRecordEvents,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
	require.NoError(t, conn.Close())

	var registered atomic.Int32
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.NotFound(w, r)
			return
		}
		registered.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]int{"id": 42})
	}))
	defer registry.Close()

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := domain.NewHealthRecord("hr-1#1772352000000000000", domain.RecordTypeHeartRate, start, start, 72, nil, nil)
	require.NoError(t, outbox.Enqueue(ctx, pool, outbox.NewHealthRecordImported(rec, start)))

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	dispatcher := outbox.NewDispatcher(pool, producer, outbox.NewSchemaRegistryClient(registry.URL), 50*time.Millisecond, 10,
		outbox.WithLogger(quietLogger))
	go dispatcher.Start(runCtx)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "healthsync-roundtrip",
		Topic:       outbox.TopicHealthRecordEvents,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	proc := NewProcessor(reader, NewAuditHandler(pool), WithLogger(quietLogger))
	go func() {
		_ = proc.Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM health_record_event_log`).Scan(&count); err != nil {
			return false
		}
		return count == 1
	}, time.Minute, 500*time.Millisecond)

	var (
		recordType string
		recordID   string
		schemaID   int
		subject    string
		payload    []byte
	)
	err = pool.QueryRow(ctx,
		`SELECT record_type, record_id, schema_id, schema_subject, payload FROM health_record_event_log LIMIT 1`,
	).Scan(&recordType, &recordID, &schemaID, &subject, &payload)
	require.NoError(t, err)
	require.Equal(t, "heart_rate", recordType)
	require.Equal(t, "hr-1#1772352000000000000", recordID)
	require.Equal(t, 42, schemaID)
	require.Equal(t, "health_record_events-value", subject)

	var event outbox.HealthRecordImported
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, 72.0, event.PrimaryValue)
	require.Equal(t, "bpm", event.Unit)
	require.Equal(t, int32(1), registered.Load(), "schema id is cached after the first registration")

	stop()
	dispatcher.Wait()
}
