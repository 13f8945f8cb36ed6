package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/gatekeeper/pkg/clock"
)

const pruneEvery = 1024

type window struct {
	start  time.Time
	length time.Duration
	count  int64
}

func (w *window) elapsed(now time.Time) bool {
	return !now.Before(w.start.Add(w.length))
}

// MemoryWindowStore keeps fixed-window counters in process memory. Counters
// are lost on restart, which only ever makes the limiter more permissive.
type MemoryWindowStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	windows map[string]*window
	hits    int
}

func NewMemoryWindowStore(c clock.Clock) *MemoryWindowStore {
	return &MemoryWindowStore{
		clock:   c,
		windows: make(map[string]*window),
	}
}

// Increment counts one hit for key and returns the count in the current
// window plus the time left before the window resets
func (s *MemoryWindowStore) Increment(_ context.Context, key string, length time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	w, ok := s.windows[key]
	if !ok || w.elapsed(now) {
		w = &window{start: now, length: length}
		s.windows[key] = w
	}
	w.count++

	s.hits++
	if s.hits%pruneEvery == 0 {
		s.prune(now)
	}

	return w.count, w.start.Add(w.length).Sub(now), nil
}

// prune drops elapsed windows; caller holds mu
func (s *MemoryWindowStore) prune(now time.Time) {
	for key, w := range s.windows {
		if w.elapsed(now) {
			delete(s.windows, key)
		}
	}
}

// Len reports how many windows are tracked
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
