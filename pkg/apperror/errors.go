package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so callers
// can match business outcomes with errors.Is(err, apperror.ErrSelfTransfer()).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid phone number or secret code", http.StatusUnauthorized)
}

// ErrInvalidCredentialsRemaining carries the number of attempts left before lockout.
func ErrInvalidCredentialsRemaining(remaining int) *AppError {
	return New("AUTH_001",
		fmt.Sprintf("Invalid phone number or secret code. %d attempt(s) remaining", remaining),
		http.StatusUnauthorized)
}

func ErrPhoneExists() *AppError {
	return New("AUTH_002", "Phone number already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAccountDisabled() *AppError {
	return New("AUTH_004", "Account is disabled", http.StatusForbidden)
}

func ErrAccountLocked() *AppError {
	return New("AUTH_005", "Too many failed attempts. Account temporarily locked", http.StatusTooManyRequests)
}

func ErrCodeMismatch() *AppError {
	return New("AUTH_006", "Secret code and confirmation do not match", http.StatusBadRequest)
}

func ErrCapabilityRequired() *AppError {
	return New("AUTH_007", "Token does not grant this operation", http.StatusForbidden)
}

// ---- Transfers (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateTransaction() *AppError {
	return New("PAY_003", "Duplicate transaction", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrUnknownRecipient() *AppError {
	return New("PAY_005", "Recipient phone number is not registered", http.StatusNotFound)
}

func ErrSelfTransfer() *AppError {
	return New("PAY_006", "Cannot transfer to your own account", http.StatusBadRequest)
}

func ErrForbidden() *AppError {
	return New("PAY_007", "Operation not permitted for this account", http.StatusForbidden)
}

func ErrAlreadyCancelled() *AppError {
	return New("PAY_008", "Transaction already cancelled", http.StatusConflict)
}

func ErrNotCancellable() *AppError {
	return New("PAY_009", "Transaction cannot be cancelled", http.StatusConflict)
}

func ErrCancellationWindowExpired() *AppError {
	return New("PAY_010", "Cancellation window has expired", http.StatusUnprocessableEntity)
}

func ErrNotAMerchant() *AppError {
	return New("PAY_011", "Recipient is not an active merchant", http.StatusBadRequest)
}

func ErrReversalNotCovered() *AppError {
	return New("PAY_012", "Recipient balance cannot cover the reversal", http.StatusConflict)
}

// ---- Scheduled transfers (SCH) ----

func ErrDuplicateScheduledTransfer() *AppError {
	return New("SCH_001", "An identical scheduled transfer is already active", http.StatusConflict)
}

func ErrPastStartDate() *AppError {
	return New("SCH_002", "Start date and time must be in the future", http.StatusBadRequest)
}

func ErrInvalidDateRange() *AppError {
	return New("SCH_003", "End date must not be before start date", http.StatusBadRequest)
}

func ErrAlreadyInactive() *AppError {
	return New("SCH_004", "Scheduled transfer is already inactive", http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrPayloadTooLarge() *AppError {
	return New("SYS_003", "Request body too large", http.StatusRequestEntityTooLarge)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
