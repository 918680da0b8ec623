package memory

import (
	"context"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/pkg/apperror"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	s *Store
}

// NewIdempotencyRepo creates an IdempotencyRepo over s.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{s: s}
}

func (r *IdempotencyRepo) Create(_ context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.idempotency[log.Key]; exists {
		return apperror.ErrDuplicateTransaction()
	}
	cp := *log
	cp.ResponseJSON = append([]byte(nil), log.ResponseJSON...)
	r.s.idempotency[log.Key] = &cp
	record(tx, func() { delete(r.s.idempotency, log.Key) })
	return nil
}

func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	log, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	cp := *log
	return &cp, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates an AuditRepo over s.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// Entries returns a snapshot of the audit trail.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.s.audit...)
}
