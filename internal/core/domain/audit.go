package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister         AuditAction = "REGISTER"
	AuditActionLogin            AuditAction = "LOGIN"
	AuditActionVerifyCode       AuditAction = "VERIFY_INITIAL_CODE"
	AuditActionSetSecretCode    AuditAction = "SET_SECRET_CODE"
	AuditActionUpdateSecretCode AuditAction = "UPDATE_SECRET_CODE"
	AuditActionLogout           AuditAction = "LOGOUT"
	AuditActionTransfer         AuditAction = "TRANSFER"
	AuditActionMultiTransfer    AuditAction = "MULTIPLE_TRANSFER"
	AuditActionCancelTransfer   AuditAction = "CANCEL_TRANSFER"
	AuditActionMerchantPayment  AuditAction = "MERCHANT_PAYMENT"
	AuditActionSchedule         AuditAction = "SCHEDULE_TRANSFER"
	AuditActionCancelSchedule   AuditAction = "CANCEL_SCHEDULED_TRANSFER"
	AuditActionAddContact       AuditAction = "ADD_CONTACT"
	AuditActionToggleFavorite   AuditAction = "TOGGLE_FAVORITE"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	AccountID    *uuid.UUID  `json:"account_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
