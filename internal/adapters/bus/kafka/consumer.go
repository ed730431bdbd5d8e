package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stackmesh/entitybus/internal/adapters/dispatch"
	"github.com/stackmesh/entitybus/internal/platform/config"
)

// readRetryDelay paces the consumption loops after a failed read, so an
// unreachable broker with a fast-failing dial does not spin the log.
const readRetryDelay = time.Second

// Consumer runs the inbound side of the bus: a command loop that feeds the
// dispatcher and writes response envelopes to the requested reply topic,
// and an event loop that routes peer events to local hooks. Malformed
// messages are logged and skipped; neither loop ever stops on a single bad
// message.
type Consumer struct {
	commands   *kafka.Reader
	events     *kafka.Reader
	replies    *kafka.Writer
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// NewConsumer creates a Consumer for the configured topics. Commands are
// consumed in the shared group so each command reaches one replica; events
// are consumed in a per-instance group starting at the log tail so every
// replica observes every new event without replaying history.
func NewConsumer(cfg config.BusConfig, d *dispatch.Dispatcher, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Consumer{
		commands: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.CommandsTopic,
			GroupID: cfg.GroupID,
		}),
		events: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.EventsTopic,
			GroupID:     cfg.GroupID + ".events." + uuid.NewString(),
			StartOffset: kafka.LastOffset,
		}),
		replies: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			RequiredAcks: kafka.RequireOne,
			Balancer:     &kafka.Hash{},
		},
		dispatcher: d,
		logger:     logger,
	}
}

// Run starts both consumption loops and blocks until ctx is canceled,
// then closes the readers and the reply writer.
func (c *Consumer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		c.commandLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.eventLoop(ctx)
	}()

	wg.Wait()

	return errors.Join(
		c.commands.Close(),
		c.events.Close(),
		c.replies.Close(),
	)
}

func (c *Consumer) commandLoop(ctx context.Context) {
	for {
		msg, err := c.commands.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.ErrorContext(ctx, "command read failed", slog.Any("error", err))
			sleepContext(ctx, readRetryDelay)
			continue
		}

		c.handleCommand(ctx, msg)
	}
}

// handleCommand dispatches one command message and, when the sender asked
// for a reply, writes the response envelope to the reply topic with the
// correlation id echoed. The dispatch runs on a non-cancelable context:
// once a command is in flight it runs to completion even during shutdown,
// so a store write is never abandoned between mutation and event publish.
func (c *Consumer) handleCommand(ctx context.Context, msg kafka.Message) {
	pattern := headerValue(msg, headerPattern)
	if pattern == "" {
		c.logger.WarnContext(ctx, "command message without pattern header",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		return
	}

	cmdCtx := context.WithoutCancel(ctx)

	tracer := otel.GetTracerProvider().Tracer("bus")
	cmdCtx, span := tracer.Start(cmdCtx, "command "+pattern,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("bus.command", pattern),
		),
	)
	defer span.End()

	env := c.dispatcher.Dispatch(cmdCtx, pattern, msg.Value)
	if !env.Success {
		span.SetStatus(codes.Error, env.Message)
	}

	replyTo := headerValue(msg, headerReplyTo)
	if replyTo == "" {
		return
	}

	correlationID := headerValue(msg, headerCorrelationID)

	value, err := json.Marshal(env)
	if err != nil {
		c.logger.ErrorContext(cmdCtx, "failed to encode reply envelope",
			slog.String("pattern", pattern),
			slog.Any("error", err),
		)
		return
	}

	err = c.replies.WriteMessages(cmdCtx, kafka.Message{
		Topic: replyTo,
		Key:   []byte(correlationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerCorrelationID, Value: []byte(correlationID)},
		},
	})
	if err != nil {
		c.logger.ErrorContext(cmdCtx, "failed to write reply",
			slog.String("pattern", pattern),
			slog.String("reply_to", replyTo),
			slog.Any("error", err),
		)
	}
}

func (c *Consumer) eventLoop(ctx context.Context) {
	for {
		msg, err := c.events.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.ErrorContext(ctx, "event read failed", slog.Any("error", err))
			sleepContext(ctx, readRetryDelay)
			continue
		}

		var rec eventRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			c.logger.WarnContext(ctx, "malformed event record skipped",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.Any("error", err),
			)
			continue
		}

		c.dispatcher.DispatchEvent(ctx, rec.Name, rec.Payload)
	}
}

// sleepContext waits d or until ctx is done, reporting whether the full
// delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
