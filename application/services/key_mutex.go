package services

import (
	"sort"
	"sync"
)

// keyMutex hands out one mutex per string key so mutations touching the
// same node or parent serialize while unrelated subtrees proceed
// concurrently. Entries are reference counted and removed once the last
// holder releases, keeping the map bounded by in-flight work.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutexes for the given keys, deduplicated and in
// sorted order so overlapping holders cannot deadlock, and returns the
// function that releases them.
func (k *keyMutex) Lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	held := make([]*keyLock, 0, len(sorted))
	for _, key := range sorted {
		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &keyLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}

		k.mu.Lock()
		for _, key := range sorted {
			l := k.locks[key]
			l.refs--
			if l.refs == 0 {
				delete(k.locks, key)
			}
		}
		k.mu.Unlock()
	}
}
