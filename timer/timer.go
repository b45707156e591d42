// Package timer implements the clock/timer service: it fires a callback at
// or after a requested wall-clock instant, keyed so a pending fire can be
// cancelled or replaced.
package timer

import (
	"sync"
	"time"
)

// Service delivers fire events as bare-key callbacks. Arming an already
// armed key replaces its pending fire.
type Service struct {
	fire func(key string)

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a timer service. The fire callback runs on the timer's own
// goroutine and receives only the key; state lookup is the callback's job.
func New(fire func(key string)) *Service {
	if fire == nil {
		panic("timer.New: fire callback is required")
	}
	return &Service{fire: fire, pending: make(map[string]*time.Timer)}
}

// Arm schedules a fire at fireAt. Instants in the past fire immediately.
func (s *Service) Arm(key string, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.pending[key]; ok {
		t.Stop()
	}
	d := time.Until(fireAt)
	if d < 0 {
		d = 0
	}
	s.pending[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.fire(key)
	})
}

// Cancel stops any pending fire for the key. Unknown keys are a no-op.
func (s *Service) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[key]; ok {
		t.Stop()
		delete(s.pending, key)
	}
}

// Pending returns the number of armed keys.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
