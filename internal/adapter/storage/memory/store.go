// Package memory is a process-local storage driver. Units of work are
// serialized and roll back through an undo log, which gives the same
// visible semantics as the PostgreSQL driver for a single instance.
package memory

import (
	"context"
	"sync"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type contactKey struct {
	owner, peer uuid.UUID
}

// Store holds every table. It implements ports.UnitOfWork.
type Store struct {
	txMu sync.Mutex // one unit of work at a time, standing in for row locks
	mu   sync.RWMutex

	accounts     map[uuid.UUID]*domain.Account
	phones       map[string]uuid.UUID
	transactions map[uuid.UUID]*domain.Transaction
	txOrder      []uuid.UUID
	contacts     map[contactKey]*domain.ContactRelation
	schedules    map[uuid.UUID]*domain.ScheduledTransfer
	idempotency  map[string]*domain.IdempotencyLog
	audit        []domain.AuditLog
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*domain.Account),
		phones:       make(map[string]uuid.UUID),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		contacts:     make(map[contactKey]*domain.ContactRelation),
		schedules:    make(map[uuid.UUID]*domain.ScheduledTransfer),
		idempotency:  make(map[string]*domain.IdempotencyLog),
	}
}

// WithinTransaction runs fn as one unit of work. Writes made through the
// transaction are undone when fn fails.
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &Tx{store: s}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Tx is the pgx.Tx handed to repositories. Only Begin, Commit and Rollback
// are supported; Begin opens a savepoint.
type Tx struct {
	pgx.Tx
	store  *Store
	parent *Tx
	undo   []func()
	done   bool
}

// Begin opens a savepoint.
func (t *Tx) Begin(_ context.Context) (pgx.Tx, error) {
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return &Tx{store: t.store, parent: t}, nil
}

// Commit keeps the writes. A savepoint hands its undo log to the parent.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.parent != nil {
		t.parent.undo = append(t.parent.undo, t.undo...)
	}
	t.undo = nil
	return nil
}

// Rollback undoes the writes in reverse order.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true

	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	return nil
}

// record registers an undo step. Callers hold s.mu.
func record(tx pgx.Tx, undo func()) {
	if t, ok := tx.(*Tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// HealthCheck implements ports.HealthChecker.
type HealthCheck struct{}

// Ping always succeeds.
func (HealthCheck) Ping(context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }
