// Package kafka implements the message bus adapter: an event publisher
// writing to the events topic and a consumer feeding commands and peer
// events into the dispatcher.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/metric"

	"github.com/stackmesh/entitybus/internal/platform/config"
	"github.com/stackmesh/entitybus/internal/platform/telemetry"
	"github.com/stackmesh/entitybus/internal/ports"
)

// Message headers used on the bus.
const (
	headerEvent         = "event"
	headerPattern       = "pattern"
	headerCorrelationID = "correlation_id"
	headerReplyTo       = "reply_to"
)

// Compile-time check that Publisher implements ports.EventPublisher.
var _ ports.EventPublisher = (*Publisher)(nil)

// eventRecord is the wire form of a published event.
type eventRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher writes domain events to the events topic. Messages are keyed
// by entity identifier so the bus's per-partition ordering yields ordered
// delivery within a single identifier's event stream; no re-sequencing
// happens here. There is no retry: the contract is fire-and-forget,
// at-least-once.
type Publisher struct {
	writer  *kafka.Writer
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Publisher for the configured events topic. If
// metrics is nil, metric recording is skipped.
func NewPublisher(cfg config.BusConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EventsTopic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Publish writes one event synchronously and reports the attempt's
// outcome. Callers decide what a failure means; for the mutation pipeline
// it is logged and swallowed because the store write already committed.
func (p *Publisher) Publish(ctx context.Context, event, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event, err)
	}

	value, err := json.Marshal(eventRecord{
		ID:         uuid.NewString(),
		Name:       event,
		Payload:    body,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", event, err)
	}

	writeErr := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerEvent, Value: []byte(event)},
		},
	})

	p.record(ctx, event, writeErr)

	if writeErr != nil {
		return fmt.Errorf("publishing %s: %w", event, writeErr)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) record(ctx context.Context, event string, err error) {
	if p.metrics == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}
	p.metrics.EventPublishTotal.Add(ctx, 1, metric.WithAttributes(
		telemetry.AttrEvent.String(event),
		telemetry.AttrResult.String(result),
	))
}
