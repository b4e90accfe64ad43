package election

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs one-shot actions keyed by election round.
type Scheduler interface {
	// Schedule runs fn once after d. A pending action with the same key
	// is replaced.
	Schedule(key uint64, d time.Duration, fn func())

	// Cancel drops the pending action for key, if any.
	Cancel(key uint64)
}

// Ensure type ClockScheduler implements interface Scheduler.
var _ Scheduler = (*ClockScheduler)(nil)

// ClockScheduler is a Scheduler backed by a clock.Clock.
type ClockScheduler struct {
	clock clock.Clock

	mu     sync.Mutex
	timers map[uint64]*clock.Timer
}

// NewClockScheduler returns a scheduler firing on c.
func NewClockScheduler(c clock.Clock) *ClockScheduler {
	return &ClockScheduler{
		clock:  c,
		timers: make(map[uint64]*clock.Timer),
	}
}

// Schedule implements Scheduler.
func (s *ClockScheduler) Schedule(key uint64, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}

	var t *clock.Timer

	t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[key] == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		fn()
	})

	s.timers[key] = t
}

// Cancel implements Scheduler.
func (s *ClockScheduler) Cancel(key uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending returns the number of actions not fired nor cancelled.
func (s *ClockScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}
