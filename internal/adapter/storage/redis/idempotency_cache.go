package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache. It only short-circuits
// replays; idempotency_logs stays authoritative.
type IdempotencyCache struct {
	client *goredis.Client
}

// NewIdempotencyCache creates a Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

func replayKey(key string) string {
	return "replay:" + key
}

// Get returns the stored transfer result, or nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, replayKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis replay get: %w", err)
	}
	return val, nil
}

// Set stores the result of the first request under key. Later writes for the
// same key are ignored until it expires.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.SetNX(ctx, replayKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis replay set: %w", err)
	}
	return nil
}
