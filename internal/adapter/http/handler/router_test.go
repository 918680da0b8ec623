package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	router   http.Handler
	tokens   *mocks.MockTokenService
	sessions *mocks.MockSessionStore
	auth     *mocks.MockAuthService
	history  *mocks.MockHistoryService
}

func newRouterFixture(t *testing.T) *routerFixture {
	ctrl := gomock.NewController(t)
	f := &routerFixture{
		tokens:   mocks.NewMockTokenService(ctrl),
		sessions: mocks.NewMockSessionStore(ctrl),
		auth:     mocks.NewMockAuthService(ctrl),
		history:  mocks.NewMockHistoryService(ctrl),
	}
	f.router = SetupRouter(RouterDeps{
		AuthSvc:     f.auth,
		TransferSvc: mocks.NewMockTransferService(ctrl),
		ScheduleSvc: mocks.NewMockScheduledTransferService(ctrl),
		ContactSvc:  mocks.NewMockContactService(ctrl),
		HistorySvc:  f.history,
		TokenSvc:    f.tokens,
		Sessions:    f.sessions,
		Logger:      zerolog.Nop(),
	})
	return f
}

// withToken makes "tok" resolve to a live session with the given scope.
func (f *routerFixture) withToken(account uuid.UUID, scope string) {
	f.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{
		AccountID: account, TokenID: "jti-1", Scope: scope,
	}, nil)
	f.sessions.EXPECT().Exists(gomock.Any(), account, "jti-1").Return(true, nil)
}

func (f *routerFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_CapabilityTokenCannotReachLedger(t *testing.T) {
	f := newRouterFixture(t)
	f.withToken(uuid.New(), ports.ScopeCreateSecret)

	w := f.do(http.MethodGet, "/api/v1/account/balance", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_007")
}

func TestRouter_FullTokenCannotSetInitialCode(t *testing.T) {
	f := newRouterFixture(t)
	f.withToken(uuid.New(), ports.ScopeFull)

	w := f.do(http.MethodPost, "/api/v1/auth/secret-code", `{"new_code":"4321","confirm_code":"4321"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_FullTokenReadsBalance(t *testing.T) {
	f := newRouterFixture(t)
	id := uuid.New()
	f.withToken(id, ports.ScopeFull)
	f.history.EXPECT().GetBalance(gomock.Any(), id).Return(decimal.RequireFromString("42.5"), nil)

	w := f.do(http.MethodGet, "/api/v1/account/balance", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"42.50"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RevokedSessionRejected(t *testing.T) {
	f := newRouterFixture(t)
	id := uuid.New()
	f.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{AccountID: id, TokenID: "old", Scope: ports.ScopeFull}, nil)
	f.sessions.EXPECT().Exists(gomock.Any(), id, "old").Return(false, nil)

	w := f.do(http.MethodGet, "/api/v1/me", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_003")
}

func TestRouter_PublicRoutesNeedNoToken(t *testing.T) {
	f := newRouterFixture(t)
	f.auth.EXPECT().VerifyInitialCode(gomock.Any(), "770000001", "123456").Return(&ports.LoginResult{
		Token: "cap", Scope: ports.ScopeCreateSecret,
	}, nil)

	w := f.do(http.MethodPost, "/api/v1/auth/verify-code", `{"phone":"770000001","code":"123456"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ports.ScopeCreateSecret)
}
