// Package local provides an in-process EventBus for tests and local
// development runs where no EventBridge bus is configured.
package local

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cardtree-backend/application/ports"
	"cardtree-backend/domain/events"
)

// Bus collects published events in memory
type Bus struct {
	mu     sync.Mutex
	events []events.DomainEvent
	logger *zap.Logger
}

// NewBus creates an in-process event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

var _ ports.EventBus = (*Bus)(nil)

// Publish records a single event
func (b *Bus) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch records a batch of events
func (b *Bus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.mu.Lock()
	b.events = append(b.events, batch...)
	b.mu.Unlock()

	for _, event := range batch {
		b.logger.Debug("event published",
			zap.String("type", event.GetEventType()),
			zap.String("aggregate_id", event.GetAggregateID()),
		)
	}
	return nil
}

// Events returns a copy of everything published so far
func (b *Bus) Events() []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.DomainEvent, len(b.events))
	copy(out, b.events)
	return out
}

// OfType returns published events matching the given type
func (b *Bus) OfType(eventType string) []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.DomainEvent
	for _, event := range b.events {
		if event.GetEventType() == eventType {
			out = append(out, event)
		}
	}
	return out
}
