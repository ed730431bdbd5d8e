package app

import (
	"context"
	"log/slog"

	"github.com/stackmesh/entitybus/internal/ports"
)

// deletedPayload is the event payload for delete mutations: the identifier
// only, since the entity no longer exists.
type deletedPayload struct {
	ID string `json:"id"`
}

// publishEvent attempts a synchronous event publish after a committed
// mutation. The outcome never propagates: the write already happened and
// cannot be undone here, so a failed publish is logged and swallowed.
// Consumers must treat events as advisory, at-least-once notifications.
func publishEvent(ctx context.Context, logger *slog.Logger, publisher ports.EventPublisher, event, key string, payload any) {
	if err := publisher.Publish(ctx, event, key, payload); err != nil {
		logger.ErrorContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("entity_id", key),
			slog.Any("error", err),
		)
	}
}
