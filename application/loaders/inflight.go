package loaders

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// FetchFunc performs the actual load for a key
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// call tracks one outstanding fetch
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Group coalesces concurrent loads per key: while a fetch for a key is
// outstanding, later callers wait on it instead of issuing a duplicate.
// This also serializes same-key operations within a session, which is the
// ordering the cache layer relies on around mutations.
type Group[K comparable, V any] struct {
	fetch  FetchFunc[K, V]
	logger *zap.Logger

	mu    sync.Mutex
	calls map[K]*call[V]
}

// NewGroup creates a coalescing group around a fetch function
func NewGroup[K comparable, V any](fetch FetchFunc[K, V], logger *zap.Logger) *Group[K, V] {
	return &Group[K, V]{
		fetch:  fetch,
		logger: logger,
		calls:  make(map[K]*call[V]),
	}
}

// Do loads the value for key, joining an in-flight fetch when one exists.
// Exactly one fetch runs per key at a time; every waiter gets its result.
// A waiter whose own context expires gives up without cancelling the fetch.
func (g *Group[K, V]) Do(ctx context.Context, key K) (V, error) {
	g.mu.Lock()
	if existing, ok := g.calls[key]; ok {
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		case <-existing.done:
			return existing.value, existing.err
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.value, c.err = g.fetch(ctx, key)

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	close(c.done)

	if c.err != nil {
		g.logger.Debug("coalesced fetch failed", zap.Any("key", key), zap.Error(c.err))
	}

	return c.value, c.err
}

// Inflight reports how many fetches are currently outstanding
func (g *Group[K, V]) Inflight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
