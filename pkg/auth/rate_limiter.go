package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is the throttling contract shared by the in-memory and
// DynamoDB-backed implementations.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// slidingWindow tracks request timestamps per key and admits a request
// only when fewer than limit fall inside the trailing window. Keys idle
// longer than an hour are evicted by a background sweep.
type slidingWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
}

type windowEntry struct {
	requests []time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	sw := &slidingWindow{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
	}
	go sw.sweep()
	return sw
}

func (sw *slidingWindow) Allow(ctx context.Context, key string) (bool, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	entry, ok := sw.entries[key]
	if !ok {
		entry = &windowEntry{}
		sw.entries[key] = entry
	}

	now := time.Now()
	cutoff := now.Add(-sw.window)

	live := entry.requests[:0]
	for _, at := range entry.requests {
		if at.After(cutoff) {
			live = append(live, at)
		}
	}
	entry.requests = live

	if len(entry.requests) >= sw.limit {
		return false, nil
	}

	entry.requests = append(entry.requests, now)
	return true, nil
}

func (sw *slidingWindow) Reset(ctx context.Context, key string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	delete(sw.entries, key)
	return nil
}

func (sw *slidingWindow) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-time.Hour)
		sw.mu.Lock()
		for key, entry := range sw.entries {
			if len(entry.requests) == 0 || entry.requests[len(entry.requests)-1].Before(cutoff) {
				delete(sw.entries, key)
			}
		}
		sw.mu.Unlock()
	}
}

// IPRateLimiter throttles unauthenticated traffic by client address
type IPRateLimiter struct {
	window *slidingWindow
}

// NewIPRateLimiter creates an in-memory per-IP limiter with a one
// minute window
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return &IPRateLimiter{window: newSlidingWindow(requestsPerMinute, time.Minute)}
}

// Allow reports whether a request from the given address fits the limit
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.window.Allow(ctx, "ip:"+ip)
}

// UserRateLimiter throttles authenticated traffic by user identity
type UserRateLimiter struct {
	window *slidingWindow
}

// NewUserRateLimiter creates an in-memory per-user limiter with a one
// minute window
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return &UserRateLimiter{window: newSlidingWindow(requestsPerMinute, time.Minute)}
}

// Allow reports whether a request from the given user fits the limit
func (l *UserRateLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	return l.window.Allow(ctx, "user:"+userID)
}
