// Package retry implements the bounded retry policy used for remote calls:
// capped exponential backoff with jitter, retrying only failures the caller
// classifies as retryable. Caller cancellation always wins over the schedule.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a bounded retry schedule.
type Policy struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Cap applied after multiplication
	Multiplier  float64       // Growth factor between attempts
	Jitter      float64       // Fraction of the delay randomized, 0..1
}

// DefaultPolicy matches the application-wide remote call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  1.6,
		Jitter:      0.2,
	}
}

// Do runs fn up to p.MaxAttempts times. A nil error stops immediately. A
// non-retryable error (per the predicate) is returned as-is without further
// attempts. Context errors are returned unwrapped and never retried.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, retryable func(error) bool) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if waitErr := wait(ctx, p.delay(attempt)); waitErr != nil {
				return waitErr
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
