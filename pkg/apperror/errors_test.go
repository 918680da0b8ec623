package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Format(t *testing.T) {
	assert.Equal(t, "[PAY_001] Insufficient balance", ErrInsufficientFunds().Error())
	assert.Equal(t, "[SYS_001] Internal server error: connection refused",
		InternalError(errors.New("connection refused")).Error())
}

func TestAppError_Chains(t *testing.T) {
	inner := errors.New("pg: connection closed")
	wrapped := fmt.Errorf("leg 2: %w", ErrDatabaseError(inner))

	assert.ErrorIs(t, wrapped, inner, "Unwrap exposes the cause")
	assert.ErrorIs(t, wrapped, ErrDatabaseError(nil), "Is matches by code")
	assert.NotErrorIs(t, wrapped, ErrLockTimeout(nil))

	assert.True(t, HasCode(wrapped, "SYS_001"))
	assert.False(t, HasCode(errors.New("plain"), "SYS_001"))
	assert.False(t, HasCode(nil, "SYS_001"))
}

func TestCatalogue(t *testing.T) {
	catalogue := []struct {
		err    *AppError
		code   string
		status int
	}{
		{ErrInvalidCredentials(), "AUTH_001", http.StatusUnauthorized},
		{ErrInvalidCredentialsRemaining(2), "AUTH_001", http.StatusUnauthorized},
		{ErrPhoneExists(), "AUTH_002", http.StatusConflict},
		{ErrInvalidToken(), "AUTH_003", http.StatusUnauthorized},
		{ErrAccountDisabled(), "AUTH_004", http.StatusForbidden},
		{ErrAccountLocked(), "AUTH_005", http.StatusTooManyRequests},
		{ErrCodeMismatch(), "AUTH_006", http.StatusBadRequest},
		{ErrCapabilityRequired(), "AUTH_007", http.StatusForbidden},

		{ErrInsufficientFunds(), "PAY_001", http.StatusPaymentRequired},
		{ErrInvalidAmount(), "PAY_002", http.StatusBadRequest},
		{Validation("phone is required"), "PAY_002", http.StatusBadRequest},
		{ErrDuplicateTransaction(), "PAY_003", http.StatusConflict},
		{ErrNotFound("Transaction"), "PAY_004", http.StatusNotFound},
		{ErrUnknownRecipient(), "PAY_005", http.StatusNotFound},
		{ErrSelfTransfer(), "PAY_006", http.StatusBadRequest},
		{ErrForbidden(), "PAY_007", http.StatusForbidden},
		{ErrAlreadyCancelled(), "PAY_008", http.StatusConflict},
		{ErrNotCancellable(), "PAY_009", http.StatusConflict},
		{ErrCancellationWindowExpired(), "PAY_010", http.StatusUnprocessableEntity},
		{ErrNotAMerchant(), "PAY_011", http.StatusBadRequest},
		{ErrReversalNotCovered(), "PAY_012", http.StatusConflict},

		{ErrDuplicateScheduledTransfer(), "SCH_001", http.StatusConflict},
		{ErrPastStartDate(), "SCH_002", http.StatusBadRequest},
		{ErrInvalidDateRange(), "SCH_003", http.StatusBadRequest},
		{ErrAlreadyInactive(), "SCH_004", http.StatusConflict},

		{ErrRateLimitExceeded(), "RATE_001", http.StatusTooManyRequests},
		{InternalError(nil), "SYS_001", http.StatusInternalServerError},
		{ErrLockTimeout(nil), "SYS_002", http.StatusServiceUnavailable},
		{ErrPayloadTooLarge(), "SYS_003", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range catalogue {
		t.Run(tt.code+" "+tt.err.Message, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestMessagesHideCauses(t *testing.T) {
	assert.Contains(t, ErrInvalidCredentialsRemaining(2).Message, "2 attempt(s) remaining")
	assert.Equal(t, "Transaction not found", ErrNotFound("Transaction").Message)

	cause := errors.New("pg: relation accounts does not exist")
	for _, err := range []*AppError{InternalError(cause), ErrDatabaseError(cause), ErrLockTimeout(cause)} {
		assert.NotContains(t, err.Message, "pg:")
	}
}
