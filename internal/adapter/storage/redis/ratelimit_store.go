package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"mobile-money-gateway/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitStore implements ports.RateLimiter with one counter per key and
// fixed window, so every API replica shares the same budget.
type RateLimitStore struct {
	client *goredis.Client
	now    func() time.Time
}

// NewRateLimitStore creates a Redis-backed rate limiter.
func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// Allow counts one request against key. The counter and its expiry are set in
// a single MULTI so a crash between the two cannot leave an immortal key.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (ports.RateDecision, error) {
	if window <= 0 {
		return ports.RateDecision{}, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	now := s.now()
	start := now.Truncate(window)
	counterKey := "ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, counterKey)
		pipe.Expire(ctx, counterKey, window+time.Second)
		return nil
	})
	if err != nil {
		return ports.RateDecision{}, fmt.Errorf("redis rate limit %s: %w", key, err)
	}

	count := incr.Val()
	return ports.RateDecision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   start.Add(window),
	}, nil
}
