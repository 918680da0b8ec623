package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/clock"

	"github.com/google/uuid"
)

type ttlEntry struct {
	count     int64
	value     string
	expiresAt time.Time
}

// ttlMap is a keyed map whose entries vanish at expiresAt according to clk.
type ttlMap struct {
	mu      sync.Mutex
	clk     clock.Clock
	entries map[string]ttlEntry
}

func newTTLMap(clk clock.Clock) *ttlMap {
	return &ttlMap{clk: clk, entries: make(map[string]ttlEntry)}
}

// get must be called with mu held.
func (m *ttlMap) get(key string) (ttlEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return ttlEntry{}, false
	}
	if !m.clk.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return ttlEntry{}, false
	}
	return e, true
}

// LoginAttemptStore implements ports.LoginAttemptStore.
type LoginAttemptStore struct {
	attempts *ttlMap
	locks    *ttlMap
}

// NewLoginAttemptStore creates a LoginAttemptStore driven by clk.
func NewLoginAttemptStore(clk clock.Clock) *LoginAttemptStore {
	return &LoginAttemptStore{attempts: newTTLMap(clk), locks: newTTLMap(clk)}
}

func (s *LoginAttemptStore) IsLocked(_ context.Context, key string) (bool, error) {
	s.locks.mu.Lock()
	defer s.locks.mu.Unlock()
	_, ok := s.locks.get(key)
	return ok, nil
}

func (s *LoginAttemptStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	m := s.attempts
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.get(key)
	e.count++
	e.expiresAt = m.clk.Now().Add(window)
	m.entries[key] = e
	return e.count, nil
}

func (s *LoginAttemptStore) Lock(_ context.Context, key string, ttl time.Duration) error {
	m := s.locks
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = ttlEntry{expiresAt: m.clk.Now().Add(ttl)}
	return nil
}

func (s *LoginAttemptStore) Reset(_ context.Context, key string) error {
	for _, m := range []*ttlMap{s.attempts, s.locks} {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
	}
	return nil
}

// SessionStore implements ports.SessionStore.
type SessionStore struct {
	m *ttlMap
}

// NewSessionStore creates a SessionStore driven by clk.
func NewSessionStore(clk clock.Clock) *SessionStore {
	return &SessionStore{m: newTTLMap(clk)}
}

func sessionKey(accountID uuid.UUID, tokenID string) string {
	return accountID.String() + ":" + tokenID
}

func (s *SessionStore) Save(_ context.Context, sess ports.Session) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.entries[sessionKey(sess.AccountID, sess.TokenID)] = ttlEntry{value: sess.Scope, expiresAt: sess.ExpiresAt}
	return nil
}

func (s *SessionStore) Exists(_ context.Context, accountID uuid.UUID, tokenID string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	_, ok := s.m.get(sessionKey(accountID, tokenID))
	return ok, nil
}

func (s *SessionStore) RevokeAll(_ context.Context, accountID uuid.UUID) error {
	s.revoke(accountID, func(string) bool { return true })
	return nil
}

func (s *SessionStore) RevokeScope(_ context.Context, accountID uuid.UUID, scope string) error {
	s.revoke(accountID, func(v string) bool { return v == scope })
	return nil
}

func (s *SessionStore) revoke(accountID uuid.UUID, match func(scope string) bool) {
	prefix := accountID.String() + ":"
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for key, e := range s.m.entries {
		if strings.HasPrefix(key, prefix) && match(e.value) {
			delete(s.m.entries, key)
		}
	}
}

// JobLock implements ports.JobLock for a single process.
type JobLock struct {
	m *ttlMap
}

// NewJobLock creates a JobLock driven by clk.
func NewJobLock(clk clock.Clock) *JobLock {
	return &JobLock{m: newTTLMap(clk)}
}

func (l *JobLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	if _, held := l.m.get(name); held {
		return false, nil
	}
	l.m.entries[name] = ttlEntry{expiresAt: l.m.clk.Now().Add(ttl)}
	return true, nil
}

func (l *JobLock) Release(_ context.Context, name string) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	delete(l.m.entries, name)
	return nil
}

// IdempotencyCache implements ports.IdempotencyCache.
type IdempotencyCache struct {
	m *ttlMap
}

// NewIdempotencyCache creates an IdempotencyCache driven by clk.
func NewIdempotencyCache(clk clock.Clock) *IdempotencyCache {
	return &IdempotencyCache{m: newTTLMap(clk)}
}

func (c *IdempotencyCache) Get(_ context.Context, key string) ([]byte, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	e, ok := c.m.get(key)
	if !ok {
		return nil, nil
	}
	return []byte(e.value), nil
}

// Set keeps the first value stored under key until it expires.
func (c *IdempotencyCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if _, held := c.m.get(key); held || ttl <= 0 {
		return nil
	}
	c.m.entries[key] = ttlEntry{value: string(value), expiresAt: c.m.clk.Now().Add(ttl)}
	return nil
}

// Buckets from past windows are swept once this many are held.
const rateLimiterSweepAt = 4096

// RateLimiter implements ports.RateLimiter for a single process.
type RateLimiter struct {
	m *ttlMap
}

// NewRateLimiter creates a RateLimiter driven by clk.
func NewRateLimiter(clk clock.Clock) *RateLimiter {
	return &RateLimiter{m: newTTLMap(clk)}
}

func (l *RateLimiter) Allow(_ context.Context, key string, limit int64, window time.Duration) (ports.RateDecision, error) {
	if window <= 0 {
		return ports.RateDecision{}, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	l.m.mu.Lock()
	defer l.m.mu.Unlock()

	now := l.m.clk.Now()
	if len(l.m.entries) >= rateLimiterSweepAt {
		for k, e := range l.m.entries {
			if !now.Before(e.expiresAt) {
				delete(l.m.entries, k)
			}
		}
	}

	start := now.Truncate(window)
	bucket := key + "@" + start.Format(time.RFC3339)
	e, _ := l.m.get(bucket)
	e.count++
	e.expiresAt = start.Add(window)
	l.m.entries[bucket] = e

	return ports.RateDecision{
		Allowed:   e.count <= limit,
		Limit:     limit,
		Remaining: max(limit-e.count, 0),
		ResetAt:   e.expiresAt,
	}, nil
}
