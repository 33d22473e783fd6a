package gateway

import "time"

// circuitBreaker is deliberately two plain counters, not a state machine:
// the only states are closed and open, decided by threshold and window.
type circuitBreaker struct {
	threshold     int
	openWindow    time.Duration
	failureCount  int
	lastFailureAt time.Time
}

// open reports whether remote attempts should be short-circuited at now.
func (b *circuitBreaker) open(now time.Time) bool {
	return b.failureCount >= b.threshold && now.Sub(b.lastFailureAt) < b.openWindow
}

func (b *circuitBreaker) recordFailure(now time.Time) {
	b.failureCount++
	b.lastFailureAt = now
}

// reset closes the breaker after a single success.
func (b *circuitBreaker) reset() {
	b.failureCount = 0
	b.lastFailureAt = time.Time{}
}
