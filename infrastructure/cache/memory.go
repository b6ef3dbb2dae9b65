package cache

import (
	"sync"
	"time"
)

// MemoryTier is the in-process cache tier. It is cleared on process restart;
// the durable tier is what survives a reload within a session.
type MemoryTier struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewMemoryTier creates an in-memory tier and starts its expiry sweep
func NewMemoryTier() *MemoryTier {
	tier := &MemoryTier{
		items: make(map[string]memoryItem),
	}

	go tier.sweepExpired()

	return tier
}

// Get retrieves a value, honoring its TTL
func (t *MemoryTier) Get(key string) (interface{}, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	item, exists := t.items[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		return nil, false
	}

	return item.value, true
}

// Set stores a value with the given TTL
func (t *MemoryTier) Set(key string, value interface{}, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[key] = memoryItem{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a value
func (t *MemoryTier) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.items, key)
}

// Clear removes all values
func (t *MemoryTier) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make(map[string]memoryItem)
}

// sweepExpired periodically removes expired items
func (t *MemoryTier) sweepExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		now := time.Now()
		for key, item := range t.items {
			if now.After(item.expiresAt) {
				delete(t.items, key)
			}
		}
		t.mu.Unlock()
	}
}
