package mirror

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// RedisClient defines the Redis operations the backend needs.
// github.com/redis/go-redis/v9 clients satisfy it through a thin adapter,
// because go-redis returns concrete command types.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// ErrRedisNil is returned when a key doesn't exist in Redis.
// It matches redis.Nil from go-redis by message.
var ErrRedisNil = errors.New("redis: nil")

// RedisBackend is a Redis-backed mirror backend.
// Expiry maps to native key TTLs.
type RedisBackend struct {
	client RedisClient
	prefix string
	closed atomic.Bool
}

// RedisBackendOption configures RedisBackend behavior.
type RedisBackendOption func(*redisBackendConfig)

type redisBackendConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix for mirror keys.
// Default: "kodbox:mirror:".
func WithRedisPrefix(prefix string) RedisBackendOption {
	return func(c *redisBackendConfig) {
		c.prefix = prefix
	}
}

// NewRedisBackend creates a new Redis-backed mirror backend.
func NewRedisBackend(client RedisClient, opts ...RedisBackendOption) *RedisBackend {
	cfg := &redisBackendConfig{
		prefix: "kodbox:mirror:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisBackend{
		client: client,
		prefix: cfg.prefix,
	}
}

// key returns the Redis key for a mirror key.
func (r *RedisBackend) key(key string) string {
	return r.prefix + key
}

// Save stores data with an expiration time.
func (r *RedisBackend) Save(ctx context.Context, key string, data []byte, expiresAt time.Time) error {
	if r.closed.Load() {
		return ErrBackendClosed{}
	}

	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			// Already expired, delete instead
			return r.Delete(ctx, key)
		}
	}

	return r.client.Set(ctx, r.key(key), data, ttl).Err()
}

// Load retrieves data if it exists.
func (r *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrBackendClosed{}
	}

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, ErrRedisNil) || err.Error() == ErrRedisNil.Error() {
			return nil, nil
		}
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}

	return data, nil
}

// Delete removes a key from Redis.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrBackendClosed{}
	}

	return r.client.Del(ctx, r.key(key)).Err()
}

// Close marks the backend as closed.
// Note: This does not close the underlying Redis client,
// as it may be shared with other components.
func (r *RedisBackend) Close() error {
	r.closed.Store(true)
	return nil
}

// Prefix returns the current key prefix.
func (r *RedisBackend) Prefix() string {
	return r.prefix
}
