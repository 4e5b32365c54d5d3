package guard

import (
	"context"
	"sync"
	"time"
)

// Budget names a per-order counter.
type Budget string

const (
	// BudgetAutomatic limits pushes triggered by change notifications.
	BudgetAutomatic Budget = "auto"
	// BudgetUser limits pushes requested by an operator.
	BudgetUser Budget = "user"
	// BudgetPressure counts every recompute attempt that wanted to push,
	// including rate-limited ones. It feeds the emergency halt.
	BudgetPressure Budget = "pressure"
)

// Key returns the window-store key for this budget and order.
func (b Budget) Key(orderID string) string {
	return string(b) + ":" + orderID
}

// WindowStore holds fixed-window counters.
//
// Take atomically resets the window for key when it has expired, then
// consumes one unit if the count is below limit. It returns the count after
// the call and whether a unit was consumed. A limit of 0 means unlimited.
//
// The check and the increment must be one atomic step: two writers racing on
// the same order would otherwise both see room under the ceiling.
type WindowStore interface {
	Take(ctx context.Context, key string, limit int, now time.Time) (count int, ok bool, err error)
}

// MemoryWindowStore is a process-local WindowStore.
//
// A window opens on the first Take for a key and lasts for the configured
// duration; the first Take after it lapses opens a fresh one.
//
// Thread-safety: safe for concurrent use.
type MemoryWindowStore struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*fixedWindow
}

type fixedWindow struct {
	start time.Time
	count int
}

// NewMemoryWindowStore creates a store whose windows last for window.
func NewMemoryWindowStore(window time.Duration) *MemoryWindowStore {
	return &MemoryWindowStore{
		window:  window,
		windows: make(map[string]*fixedWindow),
	}
}

// Take implements WindowStore.
func (s *MemoryWindowStore) Take(_ context.Context, key string, limit int, now time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || now.Sub(w.start) > s.window {
		w = &fixedWindow{start: now}
		s.windows[key] = w
	}

	if limit > 0 && w.count >= limit {
		return w.count, false, nil
	}
	w.count++
	return w.count, true, nil
}

// Count returns the current count for key, 0 if its window lapsed.
func (s *MemoryWindowStore) Count(key string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil || now.Sub(w.start) > s.window {
		return 0
	}
	return w.count
}

// Sweep drops every lapsed window and returns how many were removed.
func (s *MemoryWindowStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, w := range s.windows {
		if now.Sub(w.start) > s.window {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked windows.
func (s *MemoryWindowStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
