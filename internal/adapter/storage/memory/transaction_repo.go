package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store
}

// NewTransactionRepo creates a TransactionRepo over s.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.transactions[t.ID]; exists {
		return fmt.Errorf("transaction already exists: %s", t.ID)
	}
	cp := *t
	r.s.transactions[t.ID] = &cp
	r.s.txOrder = append(r.s.txOrder, t.ID)
	record(tx, func() {
		delete(r.s.transactions, t.ID)
		for i := len(r.s.txOrder) - 1; i >= 0; i-- {
			if r.s.txOrder[i] == t.ID {
				r.s.txOrder = append(r.s.txOrder[:i], r.s.txOrder[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *TransactionRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(id), nil
}

func (r *TransactionRepo) MarkCancelled(_ context.Context, tx pgx.Tx, id uuid.UUID, actor uuid.UUID, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.Status != domain.TransactionStatusCompleted {
		return fmt.Errorf("transaction not cancellable: %s", id)
	}
	prev := *t
	t.Status = domain.TransactionStatusCancelled
	t.CancelledAt = &at
	t.CancelReason = &reason
	t.CancelledBy = &actor
	record(tx, func() { *t = prev })
	return nil
}

func (r *TransactionRepo) List(_ context.Context, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// newest insert first, so equal timestamps keep a stable order
	var matched []domain.Transaction
	for i := len(r.s.txOrder) - 1; i >= 0; i-- {
		t := r.s.transactions[r.s.txOrder[i]]
		if matches(t, p) {
			matched = append(matched, *t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (p.Page - 1) * p.PageSize
	if start < 0 || start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := start + p.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *TransactionRepo) GetStats(_ context.Context, accountID uuid.UUID, from, to *time.Time) (*ports.TransactionStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &ports.TransactionStats{TotalSent: decimal.Zero, TotalReceived: decimal.Zero}
	for _, t := range r.s.transactions {
		if t.Status != domain.TransactionStatusCompleted || !inRange(t.CreatedAt, from, to) {
			continue
		}
		if t.SenderID == accountID {
			stats.TotalSent = stats.TotalSent.Add(t.Amount)
			stats.SentCount++
		}
		if t.ReceiverID == accountID {
			stats.TotalReceived = stats.TotalReceived.Add(t.Amount)
			stats.ReceivedCount++
		}
	}
	return stats, nil
}

func (r *TransactionRepo) get(id uuid.UUID) *domain.Transaction {
	t, ok := r.s.transactions[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

func matches(t *domain.Transaction, p ports.TransactionListParams) bool {
	if t.SenderID != p.AccountID && t.ReceiverID != p.AccountID {
		return false
	}
	if p.Status != nil && t.Status != *p.Status {
		return false
	}
	if p.Type != nil && t.Type != *p.Type {
		return false
	}
	if p.MinAmount != nil && t.Amount.LessThan(*p.MinAmount) {
		return false
	}
	if p.MaxAmount != nil && t.Amount.GreaterThan(*p.MaxAmount) {
		return false
	}
	return inRange(t.CreatedAt, p.From, p.To)
}

func inRange(at time.Time, from, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}
