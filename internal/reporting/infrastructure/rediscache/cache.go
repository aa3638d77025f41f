package rediscache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cache stores report payloads in Redis.
type Cache struct {
	client redis.Cmdable
	prefix string
}

// Option configures the cache.
type Option func(*Cache)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// NewCache wraps a go-redis client.
func NewCache(client redis.Cmdable, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, errors.New("redis cache: nil client")
	}
	c := &Cache{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Get returns the value of key; a missing key is a miss, not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, errors.New("redis cache: not initialized")
	}
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value with expiry ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return errors.New("redis cache: not initialized")
	}
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
