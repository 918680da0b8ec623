package dto

import (
	"encoding/json"
	"time"

	"mobile-money-gateway/internal/core/domain"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Phone     string  `json:"phone" binding:"required,phone"`
	FirstName string  `json:"first_name" binding:"required,min=1,max=100"`
	LastName  string  `json:"last_name" binding:"required,min=1,max=100"`
	Email     *string `json:"email,omitempty" binding:"omitempty,email,max=255"`
}

// CredentialsRequest is used by login and initial-code verification.
type CredentialsRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
	Code  string `json:"code" binding:"required,min=4,max=6,alphanum"`
}

// SetSecretCodeRequest replaces the system-issued code.
type SetSecretCodeRequest struct {
	NewCode     string `json:"new_code" binding:"required,len=4,numeric"`
	ConfirmCode string `json:"confirm_code" binding:"required"`
}

// UpdateSecretCodeRequest changes the code of an authenticated account.
type UpdateSecretCodeRequest struct {
	NewCode string `json:"new_code" binding:"required,len=4,numeric"`
}

// TokenResponse is returned by every flow that issues a token.
type TokenResponse struct {
	Token     string             `json:"token"`
	Scope     string             `json:"scope"`
	ExpiresAt time.Time          `json:"expires_at"`
	Account   domain.AccountView `json:"account"`
}

// TransferRequest is the request body for a single transfer.
type TransferRequest struct {
	RecipientPhone string      `json:"recipient_phone" binding:"required,phone"`
	Amount         json.Number `json:"amount" binding:"required,amount"`
}

// MultipleTransferRequest sends the same amount to every phone.
type MultipleTransferRequest struct {
	RecipientPhones []string    `json:"recipient_phones" binding:"required,min=1,max=50,dive,phone"`
	Amount          json.Number `json:"amount" binding:"required,amount"`
}

// CancelTransferRequest is the request body for cancelling a transfer.
type CancelTransferRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// MerchantPaymentRequest is the request body for paying a merchant.
type MerchantPaymentRequest struct {
	MerchantID string      `json:"merchant_id" binding:"required,uuid"`
	Amount     json.Number `json:"amount" binding:"required,amount"`
}

// ScheduleRequest is the request body for a recurring transfer.
type ScheduleRequest struct {
	RecipientPhone string      `json:"recipient_phone" binding:"required,phone"`
	Amount         json.Number `json:"amount" binding:"required,amount"`
	Frequency      string      `json:"frequency" binding:"required,oneof=daily weekly monthly"`
	StartDate      string      `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate        string      `json:"end_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
	ExecutionTime  string      `json:"execution_time" binding:"required,hhmm"`
}

// AddContactRequest is the request body for adding a contact.
type AddContactRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
}

// TransactionQuery holds the history filters and pagination.
type TransactionQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status    string `form:"status" binding:"omitempty,oneof=COMPLETED CANCELLED"`
	Type      string `form:"type" binding:"omitempty,oneof=SIMPLE_TRANSFER MULTIPLE_TRANSFER SCHEDULED_TRANSFER MERCHANT_PAYMENT"`
	From      string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To        string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	MinAmount string `form:"min_amount" binding:"omitempty,amount"`
	MaxAmount string `form:"max_amount" binding:"omitempty,amount"`
}

// StatsQuery is the optional date range for statistics.
type StatsQuery struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// HistoryEntry is a transaction as seen by one of its parties.
type HistoryEntry struct {
	domain.Transaction
	Direction string `json:"direction"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance string `json:"balance"`
}
