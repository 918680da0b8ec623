package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	customCodePattern = regexp.MustCompile(`^[0-9]{4}$`)
	loginCodePattern  = regexp.MustCompile(`^[A-Za-z0-9]{4,6}$`)
)

// AuthOptions carries the lockout parameters and phone normalization rule.
type AuthOptions struct {
	MaxAttempts       int
	LockoutDuration   time.Duration
	CountryPrefix     string
	InitialCodeLength int
}

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	accounts ports.AccountRepository
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	attempts ports.LoginAttemptStore
	sessions ports.SessionStore
	notifier ports.Notifier
	clock    clock.Clock
	metrics  *metrics.Collector
	opts     AuthOptions
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	accounts ports.AccountRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	attempts ports.LoginAttemptStore,
	sessions ports.SessionStore,
	notifier ports.Notifier,
	clk clock.Clock,
	mx *metrics.Collector,
	opts AuthOptions,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		accounts: accounts,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		attempts: attempts,
		sessions: sessions,
		notifier: notifier,
		clock:    clk,
		metrics:  mx,
		opts:     opts,
		log:      log,
	}
}

// Register creates an account with a zero balance and texts the
// system-issued initial code to the phone.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.AccountView, error) {
	phone := domain.NormalizePhone(req.Phone, s.opts.CountryPrefix)
	if phone == "" {
		return nil, apperror.Validation("Invalid phone number")
	}

	existing, err := s.accounts.GetByPhone(ctx, phone)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check phone: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrPhoneExists()
	}

	code, err := GenerateInitialCode(s.opts.InitialCodeLength)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	codeHash, err := s.hashSvc.Hash(code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash code: %w", err))
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	now := s.clock.Now()
	account := &domain.Account{
		ID:             uuid.New(),
		Phone:          phone,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Balance:        decimal.Zero,
		SecretCodeHash: codeHash,
		Active:         true,
		Role:           role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	s.log.Info().Str("account_id", account.ID.String()).Str("role", string(role)).Msg("account registered")

	notifyAsync(s.notifier, s.log, domain.InternationalPhone(phone, s.opts.CountryPrefix),
		fmt.Sprintf("Welcome %s! Your secret code is %s. Change it after your first login.", account.FirstName, code))

	view := account.View()
	return &view, nil
}

// Login checks the secret code and opens a full session, closing all others.
func (s *AuthServiceImpl) Login(ctx context.Context, phone, code string) (*ports.LoginResult, error) {
	account, err := s.checkCredentials(ctx, phone, code)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.RevokeAll(ctx, account.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("revoke sessions: %w", err))
	}
	result, err := s.issue(ctx, account, ports.ScopeFull)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("account_id", account.ID.String()).Msg("login succeeded")
	return result, nil
}

// VerifyInitialCode checks the code like Login but only grants the
// create-secret capability.
func (s *AuthServiceImpl) VerifyInitialCode(ctx context.Context, phone, code string) (*ports.LoginResult, error) {
	account, err := s.checkCredentials(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, account, ports.ScopeCreateSecret)
}

// SetCustomSecretCode replaces the initial code. The capability token is
// consumed and a full session is returned.
func (s *AuthServiceImpl) SetCustomSecretCode(ctx context.Context, req ports.SetSecretCodeRequest) (*ports.LoginResult, error) {
	if req.Scope != ports.ScopeCreateSecret {
		return nil, apperror.ErrCapabilityRequired()
	}
	if req.NewCode != req.ConfirmCode {
		return nil, apperror.ErrCodeMismatch()
	}
	if !customCodePattern.MatchString(req.NewCode) {
		return nil, apperror.Validation("Secret code must be exactly 4 digits")
	}

	account, err := s.getAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.storeCode(ctx, account.ID, req.NewCode); err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeScope(ctx, account.ID, ports.ScopeCreateSecret); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("revoke capability: %w", err))
	}

	s.log.Info().Str("account_id", account.ID.String()).Msg("custom secret code set")
	return s.issue(ctx, account, ports.ScopeFull)
}

// UpdateSecretCode stores a new code and revokes every session.
func (s *AuthServiceImpl) UpdateSecretCode(ctx context.Context, accountID uuid.UUID, newCode string) error {
	if !customCodePattern.MatchString(newCode) {
		return apperror.Validation("Secret code must be exactly 4 digits")
	}
	if _, err := s.getAccount(ctx, accountID); err != nil {
		return err
	}
	if err := s.storeCode(ctx, accountID, newCode); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, accountID); err != nil {
		return apperror.InternalError(fmt.Errorf("revoke sessions: %w", err))
	}

	s.log.Info().Str("account_id", accountID.String()).Msg("secret code updated, sessions revoked")
	return nil
}

// Logout revokes every session of the account.
func (s *AuthServiceImpl) Logout(ctx context.Context, accountID uuid.UUID) error {
	if err := s.sessions.RevokeAll(ctx, accountID); err != nil {
		return apperror.InternalError(fmt.Errorf("revoke sessions: %w", err))
	}
	return nil
}

// GetProfile returns the sanitized account view.
func (s *AuthServiceImpl) GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.AccountView, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	view := account.View()
	return &view, nil
}

// checkCredentials runs the lockout state machine for one attempt.
// Attempt-store failures are logged and ignored.
func (s *AuthServiceImpl) checkCredentials(ctx context.Context, rawPhone, code string) (*domain.Account, error) {
	key := domain.NormalizePhone(rawPhone, s.opts.CountryPrefix)

	locked, err := s.attempts.IsLocked(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("attempt store unavailable, skipping lockout check")
	}
	if locked {
		return nil, apperror.ErrAccountLocked()
	}

	account, err := s.accounts.GetByPhone(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrInvalidCredentials()
	}
	if !account.IsActive() {
		return nil, apperror.ErrAccountDisabled()
	}

	valid := false
	if loginCodePattern.MatchString(code) {
		valid, err = s.hashSvc.Verify(code, account.SecretCodeHash)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("verify code: %w", err))
		}
	}
	if !valid {
		return nil, s.recordFailure(ctx, key)
	}

	if err := s.attempts.Reset(ctx, key); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset login attempts")
	}
	return account, nil
}

func (s *AuthServiceImpl) recordFailure(ctx context.Context, key string) error {
	s.metrics.RecordLoginFailure()

	attempts, err := s.attempts.Increment(ctx, key, s.opts.LockoutDuration)
	if err != nil {
		s.log.Warn().Err(err).Msg("attempt store unavailable, failure not counted")
		return apperror.ErrInvalidCredentials()
	}

	if attempts >= int64(s.opts.MaxAttempts) {
		if err := s.attempts.Lock(ctx, key, s.opts.LockoutDuration); err != nil {
			s.log.Warn().Err(err).Msg("failed to set lockout flag")
		}
		s.metrics.RecordLockout()
		s.log.Warn().Int64("attempts", attempts).Msg("phone locked after repeated failures")
		return apperror.ErrAccountLocked()
	}
	return apperror.ErrInvalidCredentialsRemaining(s.opts.MaxAttempts - int(attempts))
}

func (s *AuthServiceImpl) issue(ctx context.Context, account *domain.Account, scope string) (*ports.LoginResult, error) {
	token, err := s.tokenSvc.Generate(account.ID, scope)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	if err := s.sessions.Save(ctx, ports.Session{
		AccountID: account.ID,
		TokenID:   token.TokenID,
		Scope:     scope,
		ExpiresAt: token.ExpiresAt,
	}); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save session: %w", err))
	}

	return &ports.LoginResult{
		Account:   account.View(),
		Token:     token.Token,
		Scope:     scope,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *AuthServiceImpl) storeCode(ctx context.Context, accountID uuid.UUID, code string) error {
	hash, err := s.hashSvc.Hash(code)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("hash code: %w", err))
	}
	if err := s.accounts.UpdateSecretCodeHash(ctx, accountID, hash); err != nil {
		return apperror.InternalError(fmt.Errorf("update code: %w", err))
	}
	return nil
}

func (s *AuthServiceImpl) getAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("Account")
	}
	return account, nil
}
