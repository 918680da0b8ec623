package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// LoginAttemptStore implements ports.LoginAttemptStore. Failure counters and
// lock flags are plain keys that expire on their own, so no sweeper is needed.
type LoginAttemptStore struct {
	client *goredis.Client
}

// NewLoginAttemptStore creates a Redis-backed attempt store.
func NewLoginAttemptStore(client *goredis.Client) *LoginAttemptStore {
	return &LoginAttemptStore{client: client}
}

func attemptsKey(key string) string { return "login:attempts:" + key }
func lockKey(key string) string     { return "login:locked:" + key }

// IsLocked reports whether the lock flag is set.
func (s *LoginAttemptStore) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock check: %w", err)
	}
	return n > 0, nil
}

// Increment bumps the failure counter and restarts its window.
func (s *LoginAttemptStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, attemptsKey(key))
		pipe.Expire(ctx, attemptsKey(key), window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis attempt incr: %w", err)
	}
	return incr.Val(), nil
}

// Lock sets the lock flag for ttl.
func (s *LoginAttemptStore) Lock(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, lockKey(key), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis lock set: %w", err)
	}
	return nil
}

// Reset clears both the counter and the lock flag.
func (s *LoginAttemptStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, attemptsKey(key), lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis attempt reset: %w", err)
	}
	return nil
}
