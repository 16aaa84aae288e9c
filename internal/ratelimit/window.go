package ratelimit

import (
	"sync"
	"time"
)

// Window is one per-identifier fixed counting window.
type Window struct {
	Count   int
	ResetAt time.Time
}

// WindowStore holds the rate windows. The single-process implementation is
// an in-memory map; a shared implementation (e.g. Redis) can be swapped in
// behind the same contract as long as Update stays atomic per identifier.
// Version: 1.0
type WindowStore interface {
	// Update atomically applies fn to the window for identifier and stores
	// the result. fn receives nil when no window exists yet. The stored
	// window is returned.
	Update(identifier string, fn func(current *Window) Window) Window

	// Sweep removes all windows whose ResetAt is before now and returns
	// the number of windows removed.
	Sweep(now time.Time) int
}

// MemoryWindowStore is the in-memory WindowStore used for single-process
// deployments.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]Window
}

// NewMemoryWindowStore creates an empty in-memory window store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		windows: make(map[string]Window),
	}
}

// Ensure MemoryWindowStore implements the WindowStore interface
var _ WindowStore = (*MemoryWindowStore)(nil)

// Update implements WindowStore.Update.
func (s *MemoryWindowStore) Update(identifier string, fn func(current *Window) Window) Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Window
	if w, ok := s.windows[identifier]; ok {
		current = &w
	}

	next := fn(current)
	s.windows[identifier] = next
	return next
}

// Sweep implements WindowStore.Sweep.
func (s *MemoryWindowStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for identifier, w := range s.windows {
		if w.ResetAt.Before(now) {
			delete(s.windows, identifier)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows. Intended for tests.
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
