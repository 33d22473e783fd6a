package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ TokenStore = (*Redis)(nil)

// Redis is a TokenStore backed by a Redis instance, for deployments where the
// client core runs on a shared host (kiosk terminals at a site office) and the
// session should follow the user between machines.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

type RedisOption func(*Redis)

// WithTTL expires persisted values after d. Zero means no expiry.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = d
	}
}

// WithCommandTimeout bounds each Redis round-trip.
func WithCommandTimeout(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.timeout = d
	}
}

func NewRedis(client *redis.Client, prefix string, options ...RedisOption) *Redis {
	r := &Redis{
		client:  client,
		prefix:  prefix,
		timeout: 2 * time.Second,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Redis) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[store.Redis.Get] client.Get")
	}
	return value, nil
}

func (r *Redis) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[store.Redis.Set] client.Set")
	}
	return nil
}

func (r *Redis) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "[store.Redis.Remove] client.Del")
	}
	return nil
}
