package ports

//go:generate mockgen -source=stores.go -destination=mocks/mock_stores.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LoginAttemptStore is the keyed TTL store behind the login lockout.
type LoginAttemptStore interface {
	IsLocked(ctx context.Context, key string) (bool, error)
	// Increment bumps the failure counter and restarts its window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Lock(ctx context.Context, key string, ttl time.Duration) error
	Reset(ctx context.Context, key string) error
}

// Session is a registered, revocable token.
type Session struct {
	AccountID uuid.UUID
	TokenID   string
	Scope     string
	ExpiresAt time.Time
}

// SessionStore tracks live tokens per account.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Exists(ctx context.Context, accountID uuid.UUID, tokenID string) (bool, error)
	RevokeAll(ctx context.Context, accountID uuid.UUID) error
	RevokeScope(ctx context.Context, accountID uuid.UUID, scope string) error
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// JobLock is a cluster-wide mutex for periodic jobs.
type JobLock interface {
	// Acquire returns false if another holder owns the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string // "postgresql", "redis", "memory"
}

// RateDecision is the outcome of counting one request.
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (RateDecision, error)
}
