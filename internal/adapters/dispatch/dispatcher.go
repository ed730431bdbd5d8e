// Package dispatch routes inbound bus messages: named commands to entity
// service methods, wrapping every outcome in a uniform response envelope,
// and named events to local event hooks. It performs no business logic;
// entity-kind-specific behavior belongs in the services it calls.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/stackmesh/entitybus/internal/domain"
	"github.com/stackmesh/entitybus/internal/platform/telemetry"
)

// CommandHandler executes one named command. The payload is the raw JSON
// command body; the returned value becomes the envelope data.
type CommandHandler func(ctx context.Context, payload []byte) (any, error)

// EventHandler consumes one named event. Handlers must tolerate duplicate
// delivery; the dispatcher contains their panics.
type EventHandler func(ctx context.Context, payload []byte)

// Dispatcher maps command patterns to handlers and event names to hooks.
// Registration happens once during wiring; Dispatch and DispatchEvent are
// safe for concurrent use afterwards.
type Dispatcher struct {
	commands map[string]CommandHandler
	events   map[string][]EventHandler
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// New creates an empty Dispatcher. If metrics is nil, metric recording is
// skipped.
func New(logger *slog.Logger, metrics *telemetry.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		commands: make(map[string]CommandHandler),
		events:   make(map[string][]EventHandler),
		logger:   logger,
		metrics:  metrics,
	}
}

// Command registers a handler for the given command pattern.
func (d *Dispatcher) Command(pattern string, h CommandHandler) {
	d.commands[pattern] = h
}

// Event registers a hook for the given event name. Multiple hooks per
// event are invoked in registration order.
func (d *Dispatcher) Event(name string, h EventHandler) {
	d.events[name] = append(d.events[name], h)
}

// Dispatch executes the command registered for pattern and wraps the
// outcome in an Envelope. Unknown patterns fail with a not-found envelope.
// Dispatch never returns an error: every failure mode is expressed through
// the envelope's success flag and status code.
func (d *Dispatcher) Dispatch(ctx context.Context, pattern string, payload []byte) Envelope {
	start := time.Now()

	h, ok := d.commands[pattern]
	if !ok {
		env := failureEnvelope(pattern, fmt.Errorf("unknown command %q: %w", pattern, domain.ErrNotFound))
		d.logger.WarnContext(ctx, "unknown command", slog.String("pattern", pattern))
		d.record(ctx, pattern, start, env)
		return env
	}

	data, err := h(ctx, payload)

	var env Envelope
	if err != nil {
		env = failureEnvelope(pattern, err)
		d.logCommandError(ctx, pattern, err)
	} else {
		env = successEnvelope(pattern, data)
	}

	d.record(ctx, pattern, start, env)
	return env
}

// DispatchEvent routes an event to every hook registered for its name.
// Hook panics are recovered and logged, never propagated: event handling
// must not destabilize the consumption loop. Events with no hooks are
// silently dropped.
func (d *Dispatcher) DispatchEvent(ctx context.Context, name string, payload []byte) {
	for _, h := range d.events[name] {
		d.invokeHook(ctx, name, h, payload)
	}
}

func (d *Dispatcher) invokeHook(ctx context.Context, name string, h EventHandler, payload []byte) {
	defer func() {
		if v := recover(); v != nil {
			d.logger.ErrorContext(ctx, "event hook panicked",
				slog.String("event", name),
				slog.String("panic", fmt.Sprint(v)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	h(ctx, payload)
}

// logCommandError logs failed commands. Expected taxonomy failures are
// warnings; unexpected failures log the full chain, cause included.
func (d *Dispatcher) logCommandError(ctx context.Context, pattern string, err error) {
	if errors.Is(err, domain.ErrUnexpected) {
		d.logger.ErrorContext(ctx, "command failed unexpectedly",
			slog.String("pattern", pattern),
			slog.Any("error", err),
		)
		return
	}
	d.logger.WarnContext(ctx, "command rejected",
		slog.String("pattern", pattern),
		slog.Any("error", err),
	)
}

func (d *Dispatcher) record(ctx context.Context, pattern string, start time.Time, env Envelope) {
	if d.metrics == nil {
		return
	}

	result := "success"
	if !env.Success {
		result = "error"
	}

	attrs := metric.WithAttributes(
		telemetry.AttrCommand.String(pattern),
		telemetry.AttrStatusCode.Int(env.StatusCode),
		telemetry.AttrResult.String(result),
	)

	d.metrics.CommandDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	d.metrics.CommandTotal.Add(ctx, 1, attrs)
}
