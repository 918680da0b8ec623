package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mobile-money-gateway/internal/adapter/http/middleware"
	"mobile-money-gateway/internal/adapter/storage/memory"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/internal/core/ports/mocks"
	"mobile-money-gateway/pkg/clock"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func setupRateLimitRouter(limiter ports.RateLimiter, accountID *uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if accountID != nil {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.CtxAccountID, *accountID)
			c.Next()
		})
	}

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/test", middleware.RateLimiter(limiter, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	return w
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	clk := clock.NewMock(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC))
	router := setupRateLimitRouter(memory.NewRateLimiter(clk), nil)

	for i := 0; i < 3; i++ {
		w := hit(router)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := hit(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_001")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1736928060", w.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	clk.Advance(time.Minute)
	assert.Equal(t, http.StatusOK, hit(router).Code)
}

func TestRateLimiter_KeysByAccount(t *testing.T) {
	limiter := memory.NewRateLimiter(clock.System{})
	a, b := uuid.New(), uuid.New()
	routerA := setupRateLimitRouter(limiter, &a)
	routerB := setupRateLimitRouter(limiter, &b)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(routerA).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(routerA).Code)
	assert.Equal(t, http.StatusOK, hit(routerB).Code, "another account from the same IP has its own budget")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	limiter := mocks.NewMockRateLimiter(ctrl)
	limiter.EXPECT().Allow(gomock.Any(), "ip:192.0.2.1:test", int64(3), time.Minute).
		Return(ports.RateDecision{}, errors.New("connection refused")).Times(5)

	router := setupRateLimitRouter(limiter, nil)
	for i := 0; i < 5; i++ {
		w := hit(router)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}
