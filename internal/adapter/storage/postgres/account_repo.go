package postgres

import (
	"context"
	"errors"
	"fmt"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, phone, first_name, last_name, email, balance, secret_code_hash, active, role, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account. A phone already registered yields ErrPhoneExists.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Phone, a.FirstName, a.LastName, a.Email, a.Balance,
		a.SecretCodeHash, a.Active, a.Role, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "accounts_phone_key") {
			return apperror.ErrPhoneExists()
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByPhone fetches an account by its normalized phone number.
func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, phone), "get account by phone")
}

// GetByIDForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, id), "get account for update")
}

// AdjustBalance adds delta to the balance and returns the new value.
func (r *AccountRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2 RETURNING balance`

	var balance decimal.Decimal
	if err := tx.QueryRow(ctx, query, delta, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account not found: %s", id)
		}
		return decimal.Zero, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

// UpdateSecretCodeHash replaces the stored code hash.
func (r *AccountRepo) UpdateSecretCodeHash(ctx context.Context, id uuid.UUID, hash string) error {
	query := `UPDATE accounts SET secret_code_hash = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("update secret code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

func scanAccount(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.ID, &a.Phone, &a.FirstName, &a.LastName, &a.Email, &a.Balance,
		&a.SecretCodeHash, &a.Active, &a.Role, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
