package postgres

import (
	"context"
	"errors"
	"fmt"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

const (
	insertReplay = `INSERT INTO idempotency_logs (key, transaction_id, response_json, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`

	selectReplay = `SELECT key, transaction_id, response_json, created_at
		FROM idempotency_logs WHERE key = $1`
)

// Create records the result for a key inside tx. When another request already
// recorded the same key, ErrDuplicateTransaction is returned and the caller's
// transaction must roll back.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.IdempotencyLog) error {
	tag, err := tx.Exec(ctx, insertReplay, entry.Key, entry.TransactionID, entry.ResponseJSON, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert idempotency log %q: %w", entry.Key, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrDuplicateTransaction()
	}
	return nil
}

// Get returns the recorded result for key, or nil when none exists.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	var entry domain.IdempotencyLog
	err := r.pool.QueryRow(ctx, selectReplay, key).
		Scan(&entry.Key, &entry.TransactionID, &entry.ResponseJSON, &entry.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get idempotency log %q: %w", key, err)
	}
	return &entry, nil
}
