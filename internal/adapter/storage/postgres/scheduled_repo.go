package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const scheduledColumns = `id, sender_id, receiver_id, amount, frequency, start_date, end_date, execution_time,
		next_execution, last_execution, active, consecutive_failures, created_at, updated_at`

// ScheduledTransferRepo implements ports.ScheduledTransferRepository.
type ScheduledTransferRepo struct {
	pool Pool
}

// NewScheduledTransferRepo creates a new ScheduledTransferRepo.
func NewScheduledTransferRepo(pool Pool) *ScheduledTransferRepo {
	return &ScheduledTransferRepo{pool: pool}
}

// Create inserts a new definition.
func (r *ScheduledTransferRepo) Create(ctx context.Context, s *domain.ScheduledTransfer) error {
	query := `INSERT INTO scheduled_transfers (` + scheduledColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.SenderID, s.ReceiverID, s.Amount, s.Frequency, s.StartDate, s.EndDate, s.ExecutionTime,
		s.NextExecution, s.LastExecution, s.Active, s.ConsecutiveFailures, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled transfer: %w", err)
	}
	return nil
}

// GetByIDForUpdate locks the definition row for the rest of the transaction.
func (r *ScheduledTransferRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ScheduledTransfer, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_transfers WHERE id = $1 FOR UPDATE`
	return scanScheduled(tx.QueryRow(ctx, query, id))
}

// Update writes the mutable execution state.
func (r *ScheduledTransferRepo) Update(ctx context.Context, tx pgx.Tx, s *domain.ScheduledTransfer) error {
	query := `UPDATE scheduled_transfers
		SET next_execution = $1, last_execution = $2, active = $3, consecutive_failures = $4, updated_at = $5
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		s.NextExecution, s.LastExecution, s.Active, s.ConsecutiveFailures, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update scheduled transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scheduled transfer not found: %s", s.ID)
	}
	return nil
}

// FindActiveDuplicate returns an active definition with the same sender,
// receiver, amount, start date and time of day.
func (r *ScheduledTransferRepo) FindActiveDuplicate(ctx context.Context, c *domain.ScheduledTransfer) (*domain.ScheduledTransfer, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_transfers
		WHERE sender_id = $1 AND receiver_id = $2 AND amount = $3 AND start_date = $4 AND execution_time = $5 AND active
		LIMIT 1`
	return scanScheduled(r.pool.QueryRow(ctx, query,
		c.SenderID, c.ReceiverID, c.Amount, domain.DateOnly(c.StartDate), c.ExecutionTime))
}

// ListActive returns active definitions whose end date is unset or not
// before today, earliest due first.
func (r *ScheduledTransferRepo) ListActive(ctx context.Context, today time.Time) ([]domain.ScheduledTransfer, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_transfers
		WHERE active AND (end_date IS NULL OR end_date >= $1)
		ORDER BY next_execution ASC NULLS LAST`
	return r.list(ctx, query, domain.DateOnly(today))
}

// ListBySender returns the sender's definitions, newest first.
func (r *ScheduledTransferRepo) ListBySender(ctx context.Context, senderID uuid.UUID) ([]domain.ScheduledTransfer, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_transfers
		WHERE sender_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, senderID)
}

func (r *ScheduledTransferRepo) list(ctx context.Context, query string, args ...any) ([]domain.ScheduledTransfer, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled transfers: %w", err)
	}
	defer rows.Close()

	defs := []domain.ScheduledTransfer{}
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled rows: %w", err)
	}
	return defs, nil
}

func scanScheduled(row pgx.Row) (*domain.ScheduledTransfer, error) {
	s := &domain.ScheduledTransfer{}
	err := row.Scan(
		&s.ID, &s.SenderID, &s.ReceiverID, &s.Amount, &s.Frequency, &s.StartDate, &s.EndDate, &s.ExecutionTime,
		&s.NextExecution, &s.LastExecution, &s.Active, &s.ConsecutiveFailures, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan scheduled transfer: %w", err)
	}
	return s, nil
}
