package shared

import "context"

// EventHandler reacts to published domain events. Invoicing uses handlers
// for side channels only (metrics, error reporting), so a failing handler
// never rolls back the change that raised the event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants; empty means all
	EventTypes() []string
}

// EventPublisher is what application services depend on
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is the full bus wired at startup
type EventBus interface {
	EventPublisher

	// Subscribe falls back to handler.EventTypes when eventTypes is empty
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
