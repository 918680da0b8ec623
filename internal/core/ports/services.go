package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"mobile-money-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Token scopes.
const (
	ScopeFull         = "full"
	ScopeCreateSecret = "create-secret"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles secret-code hashing (Argon2id).
type HashService interface {
	Hash(code string) (string, error)
	Verify(code string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, scope string) (*IssuedToken, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// IssuedToken is a freshly signed token.
type IssuedToken struct {
	Token     string
	TokenID   string
	Scope     string
	ExpiresAt time.Time
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	TokenID   string
	Scope     string
	ExpiresAt time.Time
}

// Notifier delivers SMS-style messages. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, to string, message string) error
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// AuthService guards access to the ledger.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.AccountView, error)
	Login(ctx context.Context, phone, code string) (*LoginResult, error)
	VerifyInitialCode(ctx context.Context, phone, code string) (*LoginResult, error)
	SetCustomSecretCode(ctx context.Context, req SetSecretCodeRequest) (*LoginResult, error)
	UpdateSecretCode(ctx context.Context, accountID uuid.UUID, newCode string) error
	Logout(ctx context.Context, accountID uuid.UUID) error
	GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.AccountView, error)
}

// RegisterRequest holds input for account registration.
type RegisterRequest struct {
	Phone     string
	FirstName string
	LastName  string
	Email     *string
	Role      domain.Role
}

// SetSecretCodeRequest replaces the system-issued code after first login.
type SetSecretCodeRequest struct {
	AccountID   uuid.UUID
	Scope       string
	NewCode     string
	ConfirmCode string
}

// LoginResult is returned by every flow that issues a token.
type LoginResult struct {
	Account   domain.AccountView
	Token     string
	Scope     string
	ExpiresAt time.Time
}

// TransferService moves balances between accounts.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	MultipleTransfer(ctx context.Context, req MultipleTransferRequest) (*BatchResult, error)
	CancelTransfer(ctx context.Context, req CancelRequest) (*domain.Transaction, error)
	PayMerchant(ctx context.Context, req MerchantPaymentRequest) (*TransferResult, error)
}

// LedgerPoster posts a transfer inside a caller-owned database transaction.
type LedgerPoster interface {
	PostInTx(ctx context.Context, tx pgx.Tx, req PostingRequest) (*TransferResult, error)
}

// TransferRequest holds validated input for a single transfer.
type TransferRequest struct {
	SenderID       uuid.UUID
	RecipientPhone string
	Amount         decimal.Decimal
	IdempotencyKey string // optional
}

// MultipleTransferRequest sends the same amount to each phone.
type MultipleTransferRequest struct {
	SenderID        uuid.UUID
	RecipientPhones []string
	Amount          decimal.Decimal
}

// CancelRequest reverses a completed transfer.
type CancelRequest struct {
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	Reason        string
}

// MerchantPaymentRequest pays a merchant account identified by id.
type MerchantPaymentRequest struct {
	SenderID       uuid.UUID
	MerchantID     uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string // optional
}

// PostingRequest is a transfer between known account ids.
type PostingRequest struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Amount     decimal.Decimal
	Type       domain.TransactionType
}

// TransferResult describes one committed transfer.
type TransferResult struct {
	Transaction   *domain.Transaction `json:"transaction"`
	SenderBalance decimal.Decimal     `json:"sender_balance"`
	Sender        domain.Party        `json:"sender"`
	Recipient     domain.Party        `json:"recipient"`
}

// Batch statuses.
const (
	BatchStatusSuccess = "success"
	BatchStatusFailed  = "failed"
)

// BatchResult reports every leg of a multiple transfer.
type BatchResult struct {
	Status           string          `json:"status"`
	Successful       []LegSuccess    `json:"successful"`
	Failed           []LegFailure    `json:"failed"`
	CompletedCount   int             `json:"completed_count"`
	FailedCount      int             `json:"failed_count"`
	TotalTransferred decimal.Decimal `json:"total_transferred"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// LegSuccess is a committed leg of a batch.
type LegSuccess struct {
	Phone         string          `json:"phone"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Recipient     domain.Party    `json:"recipient"`
	Amount        decimal.Decimal `json:"amount"`
}

// LegFailure is a leg rolled back to its savepoint.
type LegFailure struct {
	Phone     string `json:"phone"`
	ErrorCode string `json:"error_code"`
	Reason    string `json:"reason"`
}

// ScheduledTransferService manages recurring transfers and their execution.
type ScheduledTransferService interface {
	Schedule(ctx context.Context, req ScheduleRequest) (*domain.ScheduledTransfer, error)
	ExecuteDue(ctx context.Context) (*ExecutionReport, error)
	Cancel(ctx context.Context, accountID, id uuid.UUID) (*domain.ScheduledTransfer, error)
	List(ctx context.Context, accountID uuid.UUID) ([]domain.ScheduledTransfer, error)
}

// ScheduleRequest holds validated input for a new series.
type ScheduleRequest struct {
	SenderID       uuid.UUID
	RecipientPhone string
	Amount         decimal.Decimal
	Frequency      domain.Frequency
	StartDate      time.Time
	EndDate        *time.Time
	ExecutionTime  string // HH:MM
}

// ExecutionReport summarizes one polling pass.
type ExecutionReport struct {
	Checked   int `json:"checked"`
	Due       int `json:"due"`
	Executed  int `json:"executed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// ContactService exposes the contact ledger.
type ContactService interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.Contact, error)
	Add(ctx context.Context, ownerID uuid.UUID, phone string) (*domain.Contact, error)
	ToggleFavorite(ctx context.Context, ownerID, peerID uuid.UUID) (*domain.ContactRelation, error)
}

// HistoryService is the read side of the ledger.
type HistoryService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*TransactionStats, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}
