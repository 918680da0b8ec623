package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository is the user directory.
// Methods accepting pgx.Tx are used inside a unit of work for row locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// AdjustBalance adds delta (negative to debit) and returns the new balance.
	AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	UpdateSecretCodeHash(ctx context.Context, id uuid.UUID, hash string) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	MarkCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID, actor uuid.UUID, reason string, at time.Time) error
	// History queries
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*TransactionStats, error)
}

// TransactionListParams holds filter + pagination for an account's history.
type TransactionListParams struct {
	AccountID uuid.UUID
	Status    *domain.TransactionStatus
	Type      *domain.TransactionType
	From      *time.Time
	To        *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Page      int
	PageSize  int
}

// TransactionStats aggregates completed transactions for one account.
type TransactionStats struct {
	TotalSent     decimal.Decimal `json:"total_sent"`
	TotalReceived decimal.Decimal `json:"total_received"`
	SentCount     int64           `json:"sent_count"`
	ReceivedCount int64           `json:"received_count"`
}

// ContactRepository maintains owner→peer relations.
type ContactRepository interface {
	// Touch creates the relation if missing and refreshes last_transaction_at.
	Touch(ctx context.Context, tx pgx.Tx, ownerID, peerID uuid.UUID, at time.Time) error
	Get(ctx context.Context, ownerID, peerID uuid.UUID) (*domain.ContactRelation, error)
	Upsert(ctx context.Context, rel *domain.ContactRelation) error
	// ToggleFavorite flips the flag atomically, creating a favorite relation when missing.
	ToggleFavorite(ctx context.Context, ownerID, peerID uuid.UUID, at time.Time) (*domain.ContactRelation, error)
	// ListByOwner returns favorites first, then most recent transaction first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error)
}

// ScheduledTransferRepository persists recurring transfer definitions.
type ScheduledTransferRepository interface {
	Create(ctx context.Context, s *domain.ScheduledTransfer) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ScheduledTransfer, error)
	// Update persists the mutable execution state (next, last, active, failures).
	Update(ctx context.Context, tx pgx.Tx, s *domain.ScheduledTransfer) error
	FindActiveDuplicate(ctx context.Context, candidate *domain.ScheduledTransfer) (*domain.ScheduledTransfer, error)
	// ListActive returns active definitions whose end date is null or >= today.
	ListActive(ctx context.Context, today time.Time) ([]domain.ScheduledTransfer, error)
	ListBySender(ctx context.Context, senderID uuid.UUID) ([]domain.ScheduledTransfer, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// UnitOfWork runs fn inside one database transaction: commit when fn returns
// nil, rollback otherwise.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}
