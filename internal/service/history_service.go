package service

import (
	"context"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// historyService implements ports.HistoryService.
type historyService struct {
	txRepo   ports.TransactionRepository
	accounts ports.AccountRepository
}

// NewHistoryService creates a new history service.
func NewHistoryService(txRepo ports.TransactionRepository, accounts ports.AccountRepository) ports.HistoryService {
	return &historyService{
		txRepo:   txRepo,
		accounts: accounts,
	}
}

// ListTransactions returns a page of the account's transactions, newest first.
func (s *historyService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return nil, 0, apperror.Validation("invalid range: to must not be before from")
	}
	if params.MinAmount != nil && params.MaxAmount != nil && params.MaxAmount.LessThan(*params.MinAmount) {
		return nil, 0, apperror.Validation("invalid range: max_amount must not be below min_amount")
	}

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

// GetStats aggregates completed transactions in [from, to].
func (s *historyService) GetStats(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*ports.TransactionStats, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperror.Validation("invalid range: to must not be before from")
	}
	stats, err := s.txRepo.GetStats(ctx, accountID, from, to)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// GetBalance returns the current balance.
func (s *historyService) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(err)
	}
	if account == nil {
		return decimal.Zero, apperror.ErrNotFound("Account")
	}
	return account.Balance, nil
}
