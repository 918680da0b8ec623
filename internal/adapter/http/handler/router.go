package handler

import (
	"net/http"

	"mobile-money-gateway/internal/adapter/http/middleware"
	"mobile-money-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	TransferSvc    ports.TransferService
	ScheduleSvc    ports.ScheduledTransferService
	ContactSvc     ports.ContactService
	HistorySvc     ports.HistoryService
	TokenSvc       ports.TokenService
	Sessions       ports.SessionStore
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        http.Handler       // nil = no metrics endpoint
	MetricsPath    string
	OpenAPISpec    []byte // served under /swagger when set
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics))
	}
	docs := NewDocsHandler(deps.OpenAPISpec)
	r.GET("/swagger", docs.UI)
	r.GET("/swagger/spec", docs.Spec)

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	authHandler := NewAuthHandler(deps.AuthSvc)
	transferHandler := NewTransferHandler(deps.TransferSvc)
	historyHandler := NewHistoryHandler(deps.HistorySvc)
	scheduleHandler := NewScheduleHandler(deps.ScheduleSvc)
	contactHandler := NewContactHandler(deps.ContactSvc)
	sessionAuth := middleware.SessionAuth(deps.TokenSvc, deps.Sessions, deps.Logger)

	v1 := r.Group("/api/v1")

	// Public
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/verify-code", rl("auth_login"), authHandler.VerifyCode)
	}

	// Capability token from verify-code
	capability := v1.Group("/auth", sessionAuth, middleware.RequireScope(ports.ScopeCreateSecret))
	{
		capability.POST("/secret-code", authHandler.SetSecretCode)
	}

	// Full session
	full := v1.Group("", sessionAuth, middleware.RequireScope(ports.ScopeFull))
	{
		full.PUT("/auth/secret-code", authHandler.UpdateSecretCode)
		full.POST("/auth/logout", authHandler.Logout)
		full.GET("/me", rl("read"), authHandler.Me)

		full.GET("/account/balance", rl("read"), historyHandler.Balance)
		full.GET("/transactions", rl("read"), historyHandler.ListTransactions)
		full.GET("/transactions/stats", rl("read"), historyHandler.Stats)

		full.POST("/transfers", rl("transfers"), transferHandler.Transfer)
		full.POST("/transfers/multiple", rl("transfers"), transferHandler.MultipleTransfer)
		full.POST("/transfers/:id/cancel", rl("transfers"), transferHandler.Cancel)
		full.POST("/merchant/pay", rl("transfers"), transferHandler.PayMerchant)

		full.POST("/scheduled-transfers", rl("schedules"), scheduleHandler.Create)
		full.GET("/scheduled-transfers", rl("read"), scheduleHandler.List)
		full.DELETE("/scheduled-transfers/:id", rl("schedules"), scheduleHandler.Cancel)

		full.GET("/contacts", rl("read"), contactHandler.List)
		full.POST("/contacts", rl("read"), contactHandler.Add)
		full.POST("/contacts/:id/favorite", rl("read"), contactHandler.ToggleFavorite)
	}

	return r
}
