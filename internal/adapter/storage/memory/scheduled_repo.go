package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScheduledTransferRepo implements ports.ScheduledTransferRepository.
type ScheduledTransferRepo struct {
	s *Store
}

// NewScheduledTransferRepo creates a ScheduledTransferRepo over s.
func NewScheduledTransferRepo(s *Store) *ScheduledTransferRepo {
	return &ScheduledTransferRepo{s: s}
}

func (r *ScheduledTransferRepo) Create(_ context.Context, def *domain.ScheduledTransfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.schedules[def.ID]; exists {
		return fmt.Errorf("scheduled transfer already exists: %s", def.ID)
	}
	r.s.schedules[def.ID] = cloneSchedule(def)
	return nil
}

func (r *ScheduledTransferRepo) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*domain.ScheduledTransfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	def, ok := r.s.schedules[id]
	if !ok {
		return nil, nil
	}
	return cloneSchedule(def), nil
}

func (r *ScheduledTransferRepo) Update(_ context.Context, tx pgx.Tx, def *domain.ScheduledTransfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.schedules[def.ID]
	if !ok {
		return fmt.Errorf("scheduled transfer not found: %s", def.ID)
	}
	prev := cur
	r.s.schedules[def.ID] = cloneSchedule(def)
	record(tx, func() { r.s.schedules[def.ID] = prev })
	return nil
}

func (r *ScheduledTransferRepo) FindActiveDuplicate(_ context.Context, c *domain.ScheduledTransfer) (*domain.ScheduledTransfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, def := range r.s.schedules {
		if def.Active && def.IsDuplicateOf(c) {
			return cloneSchedule(def), nil
		}
	}
	return nil, nil
}

func (r *ScheduledTransferRepo) ListActive(_ context.Context, today time.Time) ([]domain.ScheduledTransfer, error) {
	return r.list(func(def *domain.ScheduledTransfer) bool {
		return def.Active && !def.IsExpired(today)
	}), nil
}

func (r *ScheduledTransferRepo) ListBySender(_ context.Context, senderID uuid.UUID) ([]domain.ScheduledTransfer, error) {
	return r.list(func(def *domain.ScheduledTransfer) bool {
		return def.SenderID == senderID
	}), nil
}

func (r *ScheduledTransferRepo) list(keep func(*domain.ScheduledTransfer) bool) []domain.ScheduledTransfer {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.ScheduledTransfer{}
	for _, def := range r.s.schedules {
		if keep(def) {
			out = append(out, *cloneSchedule(def))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func cloneSchedule(def *domain.ScheduledTransfer) *domain.ScheduledTransfer {
	cp := *def
	cp.EndDate = cloneTime(def.EndDate)
	cp.NextExecution = cloneTime(def.NextExecution)
	cp.LastExecution = cloneTime(def.LastExecution)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
