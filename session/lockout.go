package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LockoutTracker records failed login attempts per identifier and answers
// whether the next attempt should be rejected before reaching the transport.
type LockoutTracker interface {
	RecordFailure(identifier string)
	Locked(identifier string) bool
	Clear(identifier string)
}

var _ LockoutTracker = (*MemoryLockout)(nil)

// MemoryLockout keeps a rolling window of failure timestamps per identifier.
// Suitable for a single-process client, which is the normal deployment.
type MemoryLockout struct {
	maxAttempts int
	window      time.Duration
	nowFunc     func() time.Time

	lock     sync.Mutex
	failures map[string][]time.Time
}

type MemoryLockoutOption func(*MemoryLockout)

func WithLockoutNowFunc(now func() time.Time) MemoryLockoutOption {
	return func(m *MemoryLockout) {
		m.nowFunc = now
	}
}

func NewMemoryLockout(maxAttempts int, window time.Duration, options ...MemoryLockoutOption) *MemoryLockout {
	m := &MemoryLockout{
		maxAttempts: maxAttempts,
		window:      window,
		nowFunc:     time.Now,
		failures:    make(map[string][]time.Time),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *MemoryLockout) RecordFailure(identifier string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.nowFunc()
	m.failures[identifier] = append(m.pruneLocked(identifier, now), now)
}

func (m *MemoryLockout) Locked(identifier string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	recent := m.pruneLocked(identifier, m.nowFunc())
	m.failures[identifier] = recent
	return len(recent) >= m.maxAttempts
}

func (m *MemoryLockout) Clear(identifier string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.failures, identifier)
}

// pruneLocked drops failures older than the rolling window. Caller holds lock.
func (m *MemoryLockout) pruneLocked(identifier string, now time.Time) []time.Time {
	cutoff := now.Add(-m.window)
	kept := m.failures[identifier][:0]
	for _, ts := range m.failures[identifier] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

var _ LockoutTracker = (*RedisLockout)(nil)

// RedisLockout shares the failure count across processes via INCR with a
// window expiry on first failure. Redis unavailability fails open: a login
// attempt is never blocked because the tracker is down.
type RedisLockout struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewRedisLockout(client *redis.Client, maxAttempts int, window time.Duration) *RedisLockout {
	return &RedisLockout{client: client, maxAttempts: maxAttempts, window: window}
}

func (r *RedisLockout) RecordFailure(identifier string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := r.client.Incr(ctx, lockoutKey(identifier)).Result()
	if err != nil {
		log.Warn().Err(err).Msg("lockout: redis incr failed")
		return
	}
	if count == 1 {
		if err := r.client.Expire(ctx, lockoutKey(identifier), r.window).Err(); err != nil {
			log.Warn().Err(err).Msg("lockout: redis expire failed")
		}
	}
}

func (r *RedisLockout) Locked(identifier string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := r.client.Get(ctx, lockoutKey(identifier)).Int()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Warn().Err(err).Msg("lockout: redis get failed")
		return false
	}
	return count >= r.maxAttempts
}

func (r *RedisLockout) Clear(identifier string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Del(ctx, lockoutKey(identifier)).Err(); err != nil {
		log.Warn().Err(err).Msg("lockout: redis del failed")
	}
}

func lockoutKey(identifier string) string {
	return "lockout:" + identifier
}
