package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeSimple    TransactionType = "SIMPLE_TRANSFER"
	TransactionTypeMultiple  TransactionType = "MULTIPLE_TRANSFER"
	TransactionTypeScheduled TransactionType = "SCHEDULED_TRANSFER"
	TransactionTypeMerchant  TransactionType = "MERCHANT_PAYMENT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSimple, TransactionTypeMultiple, TransactionTypeScheduled, TransactionTypeMerchant:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a transaction.
// COMPLETED moves to CANCELLED at most once.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction is a ledger entry moving Amount from sender to receiver.
// Amount never changes after creation.
type Transaction struct {
	ID           uuid.UUID         `json:"id"`
	SenderID     uuid.UUID         `json:"sender_id"`
	ReceiverID   uuid.UUID         `json:"receiver_id"`
	Amount       decimal.Decimal   `json:"amount"`
	Type         TransactionType   `json:"type"`
	Status       TransactionStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason *string           `json:"cancel_reason,omitempty"`
	CancelledBy  *uuid.UUID        `json:"cancelled_by,omitempty"`
}

// IsCancelled returns true once the transaction has been reversed.
func (t *Transaction) IsCancelled() bool {
	return t.Status == TransactionStatusCancelled
}

// WithinCancelWindow reports whether no more than window has elapsed since creation.
func (t *Transaction) WithinCancelWindow(now time.Time, window time.Duration) bool {
	return now.Sub(t.CreatedAt) <= window
}

// Direction of a transaction relative to the account viewing it.
const (
	DirectionSent     = "SENT"
	DirectionReceived = "RECEIVED"
)

// DirectionFor returns SENT or RECEIVED from the viewer's perspective.
func (t *Transaction) DirectionFor(accountID uuid.UUID) string {
	if t.SenderID == accountID {
		return DirectionSent
	}
	return DirectionReceived
}
