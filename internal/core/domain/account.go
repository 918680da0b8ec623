package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role distinguishes plain users from merchants that accept payments.
type Role string

const (
	RoleUser     Role = "USER"
	RoleMerchant Role = "MERCHANT"
	RoleAdmin    Role = "ADMIN"
)

// Account is a mobile-money holder identified by a normalized phone number.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	Phone          string          `json:"phone"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Email          *string         `json:"email,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	SecretCodeHash string          `json:"-"` // Never expose
	Active         bool            `json:"active"`
	Role           Role            `json:"role"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsActive returns true if the account may authenticate and transact.
func (a *Account) IsActive() bool {
	return a.Active
}

// IsMerchant returns true for active merchant accounts.
func (a *Account) IsMerchant() bool {
	return a.Active && a.Role == RoleMerchant
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// AccountView is the sanitized projection returned to clients.
type AccountView struct {
	ID        uuid.UUID       `json:"id"`
	Phone     string          `json:"phone"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     *string         `json:"email,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Role      Role            `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

// View strips credentials from the account.
func (a *Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Phone:     a.Phone,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Balance:   a.Balance,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

// Party is the display snapshot of a counterparty.
type Party struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// Party returns the display snapshot of the account.
func (a *Account) Party() Party {
	return Party{ID: a.ID, Phone: a.Phone, FirstName: a.FirstName, LastName: a.LastName}
}
