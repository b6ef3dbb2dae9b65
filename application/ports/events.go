package ports

import (
	"context"

	"cardtree-backend/domain/core/valueobjects"
	"cardtree-backend/domain/events"
)

// EventBus publishes domain events to the telemetry collaborator
type EventBus interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Locator is the externally-visible location collaborator (e.g. a URL bar).
// Each successful navigation updates it.
type Locator interface {
	// SetLocation records the session's current folder; the root sentinel
	// means the top-level view
	SetLocation(ctx context.Context, folderID valueobjects.NodeID)

	// Location returns the folder recorded at startup, if any, so a session
	// can resume where the client left off
	Location(ctx context.Context) (valueobjects.NodeID, bool)
}
