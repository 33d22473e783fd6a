package session

import (
	"sync"
	"time"
)

// refreshScheduler owns the proactive refresh timer. The "at most one
// outstanding timer" guarantee is structural: arming always cancels the prior
// timer, and a fired callback from a superseded generation is dropped.
type refreshScheduler struct {
	lock  sync.Mutex
	timer *time.Timer
	gen   uint64
}

func newRefreshScheduler() *refreshScheduler {
	return &refreshScheduler{}
}

// Arm schedules fn after d, replacing any pending timer.
func (s *refreshScheduler) Arm(d time.Duration, fn func()) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.cancelLocked()
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		if !s.claim(gen) {
			return
		}
		fn()
	})
}

// Cancel stops any pending timer.
func (s *refreshScheduler) Cancel() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cancelLocked()
}

// Pending reports whether a timer is armed and has not fired.
func (s *refreshScheduler) Pending() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.timer != nil
}

// claim marks the timer as fired if gen is still current. A stale generation
// means Cancel or Arm won the race against the firing callback.
func (s *refreshScheduler) claim(gen uint64) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.gen != gen {
		return false
	}
	s.gen++
	s.timer = nil
	return true
}

func (s *refreshScheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
