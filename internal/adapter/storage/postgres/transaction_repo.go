package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, sender_id, receiver_id, amount, type, status, created_at, cancelled_at, cancel_reason, cancelled_by`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.SenderID, t.ReceiverID, t.Amount, t.Type, t.Status,
		t.CreatedAt, t.CancelledAt, t.CancelReason, t.CancelledBy,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByIDForUpdate fetches a transaction with pessimistic locking.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// MarkCancelled moves a COMPLETED transaction to CANCELLED.
func (r *TransactionRepo) MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor uuid.UUID, reason string, at time.Time) error {
	query := `UPDATE transactions
		SET status = $1, cancelled_at = $2, cancel_reason = $3, cancelled_by = $4
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query,
		domain.TransactionStatusCancelled, at, reason, actor, id, domain.TransactionStatusCompleted)
	if err != nil {
		return fmt.Errorf("cancel transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not cancellable: %s", id)
	}
	return nil
}

// sqlFilter accumulates AND-ed conditions. Each condition holds one "?",
// replaced by the next positional placeholder.
type sqlFilter struct {
	conds []string
	args  []any
}

func (f *sqlFilter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(f.args)), 1))
}

func (f *sqlFilter) where() string {
	return "WHERE " + strings.Join(f.conds, " AND ")
}

// next is the placeholder for an argument appended after the filter's own.
func (f *sqlFilter) next(offset int) string {
	return "$" + strconv.Itoa(len(f.args)+offset)
}

// List returns one page of the account's transactions, sent or received,
// newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var f sqlFilter
	f.add("(sender_id = ? OR receiver_id = $1)", params.AccountID)
	if params.Status != nil {
		f.add("status = ?", *params.Status)
	}
	if params.Type != nil {
		f.add("type = ?", *params.Type)
	}
	if params.From != nil {
		f.add("created_at >= ?", *params.From)
	}
	if params.To != nil {
		f.add("created_at <= ?", *params.To)
	}
	if params.MinAmount != nil {
		f.add("amount >= ?", *params.MinAmount)
	}
	if params.MaxAmount != nil {
		f.add("amount <= ?", *params.MaxAmount)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions "+f.where(), f.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	if total == 0 {
		return []domain.Transaction{}, 0, nil
	}

	query := "SELECT " + transactionColumns + " FROM transactions " + f.where() +
		" ORDER BY created_at DESC, id DESC LIMIT " + f.next(1) + " OFFSET " + f.next(2)
	offset := (params.Page - 1) * params.PageSize
	rows, err := r.pool.Query(ctx, query, append(f.args, params.PageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Transaction, error) {
		t, err := scanTransaction(row)
		if err != nil {
			return domain.Transaction{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("collect transactions: %w", err)
	}
	return txns, total, nil
}

// GetStats sums the account's completed transactions in each direction.
func (r *TransactionRepo) GetStats(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*ports.TransactionStats, error) {
	var f sqlFilter
	f.add("(sender_id = ? OR receiver_id = $1)", accountID)
	f.add("status = ?", domain.TransactionStatusCompleted)
	if from != nil {
		f.add("created_at >= ?", *from)
	}
	if to != nil {
		f.add("created_at <= ?", *to)
	}

	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE sender_id = $1), 0),
		COALESCE(SUM(amount) FILTER (WHERE receiver_id = $1), 0),
		COUNT(*) FILTER (WHERE sender_id = $1),
		COUNT(*) FILTER (WHERE receiver_id = $1)
		FROM transactions ` + f.where()

	stats := &ports.TransactionStats{}
	err := r.pool.QueryRow(ctx, query, f.args...).
		Scan(&stats.TotalSent, &stats.TotalReceived, &stats.SentCount, &stats.ReceivedCount)
	if err != nil {
		return nil, fmt.Errorf("get transaction stats: %w", err)
	}
	return stats, nil
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Type, &t.Status,
		&t.CreatedAt, &t.CancelledAt, &t.CancelReason, &t.CancelledBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
