package ports

import "context"

// EventPublisher delivers a named domain event to the message bus.
// Delivery is fire-and-forget at the contract level: at-least-once, no
// retry, no cross-event ordering guarantee. Ordering within a single
// identifier's event stream relies on the bus's per-producer ordering,
// which implementations preserve by keying messages on the entity id.
//
// A non-nil error reports that the publish attempt failed; callers log it
// and move on, because the mutation the event describes has already
// committed and cannot be rolled back here.
type EventPublisher interface {
	Publish(ctx context.Context, event, key string, payload any) error
}
