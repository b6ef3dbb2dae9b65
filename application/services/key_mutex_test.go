package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMutex_SerializesSameKey(t *testing.T) {
	km := newKeyMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("parent-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyMutex_OverlappingKeySetsDoNotDeadlock(t *testing.T) {
	km := newKeyMutex()

	// Holders requesting the same pair in opposite order rely on the
	// sorted acquisition inside Lock.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := km.Lock("a", "b")
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := km.Lock("b", "a")
			unlock()
		}()
	}
	wg.Wait()
}

func TestKeyMutex_ReleasedEntriesAreEvicted(t *testing.T) {
	km := newKeyMutex()

	unlock := km.Lock("a", "a", "b")
	assert.Len(t, km.locks, 2, "duplicate keys collapse to one entry")
	unlock()
	assert.Empty(t, km.locks, "released entries leave the map")
}
