package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mobile-money-gateway/internal/core/domain"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/internal/core/ports/mocks"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const lockout = 300 * time.Second

type authTestDeps struct {
	svc      *AuthServiceImpl
	accounts *mocks.MockAccountRepository
	hashSvc  *mocks.MockHashService
	tokenSvc *mocks.MockTokenService
	attempts *mocks.MockLoginAttemptStore
	sessions *mocks.MockSessionStore
	notifier *mocks.MockNotifier
	metrics  *metrics.Collector
	ctrl     *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		accounts: mocks.NewMockAccountRepository(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		tokenSvc: mocks.NewMockTokenService(ctrl),
		attempts: mocks.NewMockLoginAttemptStore(ctrl),
		sessions: mocks.NewMockSessionStore(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
		metrics:  metrics.New(),
		ctrl:     ctrl,
	}
	d.svc = NewAuthService(
		d.accounts, d.hashSvc, d.tokenSvc, d.attempts, d.sessions, d.notifier,
		clock.NewMock(testNow), d.metrics,
		AuthOptions{MaxAttempts: 3, LockoutDuration: lockout, CountryPrefix: "221", InitialCodeLength: 6},
		zerolog.Nop(),
	)
	return d
}

func activeAccount() *domain.Account {
	return &domain.Account{
		ID:             uuid.New(),
		Phone:          "771234567",
		FirstName:      "Moussa",
		LastName:       "Ndiaye",
		SecretCodeHash: "$argon2id$stored",
		Active:         true,
		Role:           domain.RoleUser,
	}
}

func (d *authTestDeps) expectIssue(acc *domain.Account, scope string) {
	d.tokenSvc.EXPECT().Generate(acc.ID, scope).Return(&ports.IssuedToken{
		Token:     "jwt-" + scope,
		TokenID:   "jti-1",
		Scope:     scope,
		ExpiresAt: testNow.Add(time.Hour),
	}, nil)
	d.sessions.EXPECT().Save(gomock.Any(), ports.Session{
		AccountID: acc.ID,
		TokenID:   "jti-1",
		Scope:     scope,
		ExpiresAt: testNow.Add(time.Hour),
	}).Return(nil)
}

// ==================== Register ====================

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sent := make(chan string, 1)

	d.accounts.EXPECT().GetByPhone(ctx, "771234567").Return(nil, nil)
	d.hashSvc.EXPECT().Hash(gomock.Any()).DoAndReturn(func(code string) (string, error) {
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
		return "$argon2id$hashed", nil
	})
	d.accounts.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, acc *domain.Account) error {
		assert.Equal(t, "771234567", acc.Phone)
		assert.True(t, acc.Balance.IsZero())
		assert.True(t, acc.Active)
		assert.Equal(t, domain.RoleUser, acc.Role)
		assert.Equal(t, "$argon2id$hashed", acc.SecretCodeHash)
		return nil
	})
	d.notifier.EXPECT().Send(gomock.Any(), "+221771234567", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, msg string) error {
			sent <- msg
			return nil
		})

	view, err := d.svc.Register(ctx, ports.RegisterRequest{
		Phone:     "+221 77 123 45 67",
		FirstName: "Moussa",
		LastName:  "Ndiaye",
	})
	require.NoError(t, err)
	assert.Equal(t, "771234567", view.Phone)

	select {
	case msg := <-sent:
		assert.Contains(t, msg, "secret code")
	case <-time.After(2 * time.Second):
		t.Fatal("welcome sms not sent")
	}
}

func TestAuthService_Register_DuplicatePhone(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.accounts.EXPECT().GetByPhone(gomock.Any(), "771234567").Return(activeAccount(), nil)

	_, err := d.svc.Register(context.Background(), ports.RegisterRequest{Phone: "771234567", FirstName: "A", LastName: "B"})
	assertAppError(t, err, "AUTH_002")
}

// ==================== Login ====================

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acc := activeAccount()

	d.attempts.EXPECT().IsLocked(ctx, "771234567").Return(false, nil)
	d.accounts.EXPECT().GetByPhone(ctx, "771234567").Return(acc, nil)
	d.hashSvc.EXPECT().Verify("4821", acc.SecretCodeHash).Return(true, nil)
	d.attempts.EXPECT().Reset(ctx, "771234567").Return(nil)
	d.sessions.EXPECT().RevokeAll(ctx, acc.ID).Return(nil)
	d.expectIssue(acc, ports.ScopeFull)

	result, err := d.svc.Login(ctx, "221771234567", "4821")
	require.NoError(t, err)
	assert.Equal(t, "jwt-full", result.Token)
	assert.Equal(t, ports.ScopeFull, result.Scope)
	assert.Equal(t, acc.ID, result.Account.ID)
}

func TestAuthService_Login_Locked(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.attempts.EXPECT().IsLocked(gomock.Any(), "771234567").Return(true, nil)

	_, err := d.svc.Login(context.Background(), "771234567", "4821")
	assertAppError(t, err, "AUTH_005")
}

func TestAuthService_Login_UnknownPhoneDoesNotCount(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	d.attempts.EXPECT().IsLocked(gomock.Any(), "770000000").Return(false, nil)
	d.accounts.EXPECT().GetByPhone(gomock.Any(), "770000000").Return(nil, nil)

	_, err := d.svc.Login(context.Background(), "770000000", "4821")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_Disabled(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	acc := activeAccount()
	acc.Active = false
	d.attempts.EXPECT().IsLocked(gomock.Any(), acc.Phone).Return(false, nil)
	d.accounts.EXPECT().GetByPhone(gomock.Any(), acc.Phone).Return(acc, nil)

	_, err := d.svc.Login(context.Background(), acc.Phone, "4821")
	assertAppError(t, err, "AUTH_004")
}

func TestAuthService_Login_WrongCodeReportsRemaining(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	acc := activeAccount()
	d.attempts.EXPECT().IsLocked(gomock.Any(), acc.Phone).Return(false, nil)
	d.accounts.EXPECT().GetByPhone(gomock.Any(), acc.Phone).Return(acc, nil)
	d.hashSvc.EXPECT().Verify("0000", acc.SecretCodeHash).Return(false, nil)
	d.attempts.EXPECT().Increment(gomock.Any(), acc.Phone, lockout).Return(int64(1), nil)

	_, err := d.svc.Login(context.Background(), acc.Phone, "0000")
	assertAppError(t, err, "AUTH_001")
	assert.Contains(t, err.Error(), "2 attempt(s) remaining")
	assert.Equal(t, 1.0, counterValue(t, d.metrics, "mm_login_failures_total"))
}

func TestAuthService_Login_ThirdFailureLocks(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	acc := activeAccount()
	d.attempts.EXPECT().IsLocked(gomock.Any(), acc.Phone).Return(false, nil)
	d.accounts.EXPECT().GetByPhone(gomock.Any(), acc.Phone).Return(acc, nil)
	d.hashSvc.EXPECT().Verify("0000", acc.SecretCodeHash).Return(false, nil)
	d.attempts.EXPECT().Increment(gomock.Any(), acc.Phone, lockout).Return(int64(3), nil)
	d.attempts.EXPECT().Lock(gomock.Any(), acc.Phone, lockout).Return(nil)

	_, err := d.svc.Login(context.Background(), acc.Phone, "0000")
	assertAppError(t, err, "AUTH_005")
	assert.Equal(t, 1.0, counterValue(t, d.metrics, "mm_account_lockouts_total"))
}

func TestAuthService_Login_MalformedCodeCountsAsFailure(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	acc := activeAccount()
	d.attempts.EXPECT().IsLocked(gomock.Any(), acc.Phone).Return(false, nil)
	d.accounts.EXPECT().GetByPhone(gomock.Any(), acc.Phone).Return(acc, nil)
	d.attempts.EXPECT().Increment(gomock.Any(), acc.Phone, lockout).Return(int64(1), nil)

	_, err := d.svc.Login(context.Background(), acc.Phone, "12")
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_LimiterFailsOpen(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acc := activeAccount()
	storeDown := errors.New("redis: connection refused")

	d.attempts.EXPECT().IsLocked(ctx, acc.Phone).Return(false, storeDown)
	d.accounts.EXPECT().GetByPhone(ctx, acc.Phone).Return(acc, nil)
	d.hashSvc.EXPECT().Verify("4821", acc.SecretCodeHash).Return(true, nil)
	d.attempts.EXPECT().Reset(ctx, acc.Phone).Return(storeDown)
	d.sessions.EXPECT().RevokeAll(ctx, acc.ID).Return(nil)
	d.expectIssue(acc, ports.ScopeFull)

	_, err := d.svc.Login(ctx, acc.Phone, "4821")
	require.NoError(t, err)
}

// ==================== VerifyInitialCode / SetCustomSecretCode ====================

func TestAuthService_VerifyInitialCode_IssuesCapabilityToken(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acc := activeAccount()

	d.attempts.EXPECT().IsLocked(ctx, acc.Phone).Return(false, nil)
	d.accounts.EXPECT().GetByPhone(ctx, acc.Phone).Return(acc, nil)
	d.hashSvc.EXPECT().Verify("AB12CD", acc.SecretCodeHash).Return(true, nil)
	d.attempts.EXPECT().Reset(ctx, acc.Phone).Return(nil)
	d.expectIssue(acc, ports.ScopeCreateSecret)

	result, err := d.svc.VerifyInitialCode(ctx, acc.Phone, "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, ports.ScopeCreateSecret, result.Scope)
}

func TestAuthService_SetCustomSecretCode(t *testing.T) {
	t.Run("requires capability", func(t *testing.T) {
		d := setupAuthService(t)
		defer d.ctrl.Finish()

		_, err := d.svc.SetCustomSecretCode(context.Background(), ports.SetSecretCodeRequest{
			AccountID: uuid.New(), Scope: ports.ScopeFull, NewCode: "1234", ConfirmCode: "1234",
		})
		assertAppError(t, err, "AUTH_007")
	})

	t.Run("mismatch", func(t *testing.T) {
		d := setupAuthService(t)
		defer d.ctrl.Finish()

		_, err := d.svc.SetCustomSecretCode(context.Background(), ports.SetSecretCodeRequest{
			AccountID: uuid.New(), Scope: ports.ScopeCreateSecret, NewCode: "1234", ConfirmCode: "4321",
		})
		assertAppError(t, err, "AUTH_006")
	})

	t.Run("success consumes capability", func(t *testing.T) {
		d := setupAuthService(t)
		defer d.ctrl.Finish()

		ctx := context.Background()
		acc := activeAccount()

		d.accounts.EXPECT().GetByID(ctx, acc.ID).Return(acc, nil)
		d.hashSvc.EXPECT().Hash("1234").Return("$argon2id$new", nil)
		d.accounts.EXPECT().UpdateSecretCodeHash(ctx, acc.ID, "$argon2id$new").Return(nil)
		d.sessions.EXPECT().RevokeScope(ctx, acc.ID, ports.ScopeCreateSecret).Return(nil)
		d.expectIssue(acc, ports.ScopeFull)

		result, err := d.svc.SetCustomSecretCode(ctx, ports.SetSecretCodeRequest{
			AccountID: acc.ID, Scope: ports.ScopeCreateSecret, NewCode: "1234", ConfirmCode: "1234",
		})
		require.NoError(t, err)
		assert.Equal(t, ports.ScopeFull, result.Scope)
	})
}

// ==================== UpdateSecretCode / Logout ====================

func TestAuthService_UpdateSecretCode_RevokesAllSessions(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	acc := activeAccount()

	d.accounts.EXPECT().GetByID(ctx, acc.ID).Return(acc, nil)
	d.hashSvc.EXPECT().Hash("9876").Return("$argon2id$next", nil)
	d.accounts.EXPECT().UpdateSecretCodeHash(ctx, acc.ID, "$argon2id$next").Return(nil)
	d.sessions.EXPECT().RevokeAll(ctx, acc.ID).Return(nil)

	require.NoError(t, d.svc.UpdateSecretCode(ctx, acc.ID, "9876"))
}

func TestAuthService_UpdateSecretCode_RejectsBadFormat(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	err := d.svc.UpdateSecretCode(context.Background(), uuid.New(), "12a4")
	assertAppError(t, err, "PAY_002")
}

func TestAuthService_Logout(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	id := uuid.New()
	d.sessions.EXPECT().RevokeAll(gomock.Any(), id).Return(nil)
	require.NoError(t, d.svc.Logout(context.Background(), id))

	d.sessions.EXPECT().RevokeAll(gomock.Any(), id).Return(errors.New("redis down"))
	assertAppError(t, d.svc.Logout(context.Background(), id), "SYS_001")
}

func TestAuthService_GetProfile(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	acc := activeAccount()
	d.accounts.EXPECT().GetByID(gomock.Any(), acc.ID).Return(acc, nil)
	d.accounts.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)

	view, err := d.svc.GetProfile(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.Phone, view.Phone)

	_, err = d.svc.GetProfile(context.Background(), uuid.New())
	assertAppError(t, err, "PAY_004")
}
