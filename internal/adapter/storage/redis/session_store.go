package redis

import (
	"context"
	"errors"
	"fmt"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/clock"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SessionStore implements ports.SessionStore. Each session is a key holding
// its scope and expiring with the token; a per-account set indexes them for
// revocation.
type SessionStore struct {
	client *goredis.Client
	clock  clock.Clock
}

// NewSessionStore creates a Redis-backed session store. Token expiry times
// are read against clk.
func NewSessionStore(client *goredis.Client, clk clock.Clock) *SessionStore {
	return &SessionStore{client: client, clock: clk}
}

func sessionKey(accountID uuid.UUID, tokenID string) string {
	return "session:" + accountID.String() + ":" + tokenID
}

func sessionIndexKey(accountID uuid.UUID) string {
	return "sessions:" + accountID.String()
}

// Save registers the session until its token expires.
func (s *SessionStore) Save(ctx context.Context, sess ports.Session) error {
	ttl := sess.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil
	}
	idx := sessionIndexKey(sess.AccountID)

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.AccountID, sess.TokenID), sess.Scope, ttl)
		pipe.SAdd(ctx, idx, sess.TokenID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session save: %w", err)
	}

	// The index must outlive its longest session.
	current, err := s.client.TTL(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("redis session index ttl: %w", err)
	}
	if current < ttl {
		if err := s.client.Expire(ctx, idx, ttl).Err(); err != nil {
			return fmt.Errorf("redis session index expire: %w", err)
		}
	}
	return nil
}

// Exists reports whether the token is still registered.
func (s *SessionStore) Exists(ctx context.Context, accountID uuid.UUID, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(accountID, tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis session exists: %w", err)
	}
	return n > 0, nil
}

// RevokeAll removes every session of the account.
func (s *SessionStore) RevokeAll(ctx context.Context, accountID uuid.UUID) error {
	return s.revoke(ctx, accountID, func(string) bool { return true })
}

// RevokeScope removes the account's sessions carrying scope.
func (s *SessionStore) RevokeScope(ctx context.Context, accountID uuid.UUID, scope string) error {
	return s.revoke(ctx, accountID, func(got string) bool { return got == scope })
}

func (s *SessionStore) revoke(ctx context.Context, accountID uuid.UUID, match func(scope string) bool) error {
	idx := sessionIndexKey(accountID)
	tokenIDs, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("redis session list: %w", err)
	}

	var doomed []string
	var stale []any
	for _, id := range tokenIDs {
		key := sessionKey(accountID, id)
		scope, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return fmt.Errorf("redis session get: %w", err)
		}
		if match(scope) {
			doomed = append(doomed, key)
			stale = append(stale, id)
		}
	}

	if len(doomed) == 0 && len(stale) == 0 {
		return nil
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(doomed) > 0 {
			pipe.Del(ctx, doomed...)
		}
		if len(stale) > 0 {
			pipe.SRem(ctx, idx, stale...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session revoke: %w", err)
	}
	return nil
}
