// Package consumer reads health record events back off Kafka for downstream auditing.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/outbox"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives imported-record events that passed decoding.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is a health_record.imported event read back from the topic the
// outbox dispatcher publishes to. Payload keeps the raw JSON body; Record is
// the same body decoded.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Key           string
	Timestamp     time.Time
	EventType     string
	SchemaSubject string
	SchemaID      int
	RecordType    domain.RecordType
	Record        outbox.HealthRecordImported
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Processor pulls imported-record events from Kafka and dispatches them to a
// Handler. Frames that fail decoding are committed and counted; handler
// failures leave the offset uncommitted so the event is redelivered.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *slog.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  slog.Default().With("component", "consumer"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.ErrorContext(ctx, "fetch failed", "error", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.WarnContext(ctx, "decode failed",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", decodeErr)
			recordDecodeError(msg.Topic)
			// Malformed messages are committed so they cannot wedge the partition.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.ErrorContext(ctx, "commit after decode failure", "error", commitErr)
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.ErrorContext(ctx, "handler failed",
				"record_type", event.RecordType, "record_id", event.Record.RecordID, "offset", event.Offset, "error", handleErr)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.ErrorContext(ctx, "commit failed", "error", commitErr)
		} else {
			recordProcessed(event)
		}
	}
}

// decodeMessage unwraps the [magic][schema id][json] frame and checks the
// headers against the outbox catalog before decoding the record.
func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unexpected magic byte %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	if string(eventType) != outbox.EventHealthRecordImported {
		return Message{}, fmt.Errorf("unsupported event type %q", eventType)
	}
	meta, _ := outbox.Lookup(outbox.EventHealthRecordImported)

	schemaSubject, _ := headerValue(msg, "schema_subject")
	if string(schemaSubject) != meta.SchemaSubject {
		return Message{}, fmt.Errorf("schema subject %q does not match %q", schemaSubject, meta.SchemaSubject)
	}
	schemaID := int(binary.BigEndian.Uint32(msg.Value[1:5]))
	if schemaID == 0 {
		return Message{}, errors.New("missing schema id")
	}

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	var record outbox.HealthRecordImported
	if err := json.Unmarshal(payload, &record); err != nil {
		return Message{}, fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	if record.RecordID == "" {
		return Message{}, fmt.Errorf("%s payload missing record id", eventType)
	}
	recordType, err := domain.ParseRecordType(record.RecordType)
	if err != nil {
		return Message{}, fmt.Errorf("%s payload: %w", eventType, err)
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Key:           string(msg.Key),
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		RecordType:    recordType,
		Record:        record,
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
