package memory

import (
	"context"
	"fmt"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	s *Store
}

// NewAccountRepo creates an AccountRepo over s.
func NewAccountRepo(s *Store) *AccountRepo {
	return &AccountRepo{s: s}
}

func (r *AccountRepo) Create(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.phones[a.Phone]; exists {
		return apperror.ErrPhoneExists()
	}
	cp := *a
	r.s.accounts[a.ID] = &cp
	r.s.phones[a.Phone] = a.ID
	return nil
}

func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(id), nil
}

func (r *AccountRepo) GetByPhone(_ context.Context, phone string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.phones[phone]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

// GetByIDForUpdate reads the account; the unit of work already excludes
// concurrent writers.
func (r *AccountRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(id), nil
}

func (r *AccountRepo) AdjustBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("account not found: %s", id)
	}
	prev := a.Balance
	a.Balance = a.Balance.Add(delta)
	record(tx, func() { a.Balance = prev })
	return a.Balance, nil
}

func (r *AccountRepo) UpdateSecretCodeHash(_ context.Context, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %s", id)
	}
	a.SecretCodeHash = hash
	return nil
}

// SetActive toggles an account. Used by admin tooling and tests.
func (r *AccountRepo) SetActive(id uuid.UUID, active bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a, ok := r.s.accounts[id]; ok {
		a.Active = active
	}
}

func (r *AccountRepo) get(id uuid.UUID) *domain.Account {
	a, ok := r.s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}
