// Package app wires configuration, storage, services and the HTTP router
// into a runnable gateway.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"mobile-money-gateway/config"
	httpHandler "mobile-money-gateway/internal/adapter/http/handler"
	"mobile-money-gateway/internal/adapter/storage/memory"
	pgStorage "mobile-money-gateway/internal/adapter/storage/postgres"
	redisStorage "mobile-money-gateway/internal/adapter/storage/redis"
	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/internal/scheduler"
	"mobile-money-gateway/internal/service"
	"mobile-money-gateway/pkg/clock"
	"mobile-money-gateway/pkg/logger"
	"mobile-money-gateway/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// App is a fully wired gateway.
type App struct {
	Router    *gin.Engine
	Scheduler *scheduler.Runner
	Metrics   *metrics.Collector

	Accounts   ports.AccountRepository
	UnitOfWork ports.UnitOfWork

	AuthSvc     *service.AuthServiceImpl
	TransferSvc *service.TransferServiceImpl
	ScheduleSvc *service.ScheduledTransferServiceImpl

	closers []func()
}

// Option overrides a dependency, mostly for tests.
type Option func(*options)

type options struct {
	clock    clock.Clock
	notifier ports.Notifier
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNotifier replaces the configured SMS notifier.
func WithNotifier(n ports.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

type storage struct {
	accounts  ports.AccountRepository
	txns      ports.TransactionRepository
	contacts  ports.ContactRepository
	schedules ports.ScheduledTransferRepository
	idemp     ports.IdempotencyRepository
	audit     ports.AuditRepository
	uow       ports.UnitOfWork
	health    ports.HealthChecker
}

type stores struct {
	attempts ports.LoginAttemptStore
	sessions ports.SessionStore
	cache    ports.IdempotencyCache
	jobLock  ports.JobLock
	limiter  ports.RateLimiter
	health   ports.HealthChecker
}

// New builds the gateway described by cfg. Close releases its connections.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	o := options{clock: clock.System{}}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Metrics: metrics.New()}

	st, err := a.openStorage(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	kv, err := a.openStores(ctx, cfg, o.clock, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = newNotifier(cfg.Notifier, a.Metrics, logger.Component(log, "notifier"))
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.CapabilityExpiry, cfg.JWT.Issuer, o.clock)
	prefix := cfg.Auth.CountryPrefix

	hasher := service.NewArgon2HashService(service.Argon2Params{
		Memory:  cfg.Auth.Argon2Memory,
		Time:    cfg.Auth.Argon2Time,
		Threads: cfg.Auth.Argon2Threads,
	})

	a.AuthSvc = service.NewAuthService(
		st.accounts, hasher, tokenSvc, kv.attempts, kv.sessions,
		notifier, o.clock, a.Metrics,
		service.AuthOptions{
			MaxAttempts:       cfg.Auth.MaxAttempts,
			LockoutDuration:   cfg.Auth.LockoutDuration,
			CountryPrefix:     prefix,
			InitialCodeLength: cfg.Auth.InitialCodeLen,
		},
		logger.Component(log, "auth"),
	)
	a.TransferSvc = service.NewTransferService(
		st.accounts, st.txns, st.contacts, st.idemp, kv.cache, st.uow,
		notifier, o.clock, a.Metrics,
		service.TransferOptions{
			CancelWindow:          cfg.Transfer.CancelWindow,
			AllowNegativeReversal: cfg.Transfer.AllowNegativeReversal,
			IdempotencyTTL:        cfg.Transfer.IdempotencyTTL,
			CountryPrefix:         prefix,
		},
		logger.Component(log, "transfer"),
	)
	a.ScheduleSvc = service.NewScheduledTransferService(
		st.accounts, st.schedules, a.TransferSvc, st.uow,
		notifier, o.clock, a.Metrics,
		service.ScheduleOptions{
			CountryPrefix:          prefix,
			MaxConsecutiveFailures: cfg.Scheduler.MaxConsecutiveFailures,
		},
		logger.Component(log, "scheduler"),
	)
	contactSvc := service.NewContactService(st.accounts, st.contacts, o.clock, prefix, logger.Component(log, "contacts"))
	historySvc := service.NewHistoryService(st.txns, st.accounts)
	auditSvc := service.NewAuditService(st.audit, logger.Component(log, "audit"))
	a.closers = append(a.closers, auditSvc.Close)

	a.Scheduler = scheduler.NewRunner(a.ScheduleSvc, kv.jobLock, cfg.Scheduler.Interval, cfg.Scheduler.LockTTL,
		logger.Component(log, "scheduler"))
	a.Accounts = st.accounts
	a.UnitOfWork = st.uow

	var openAPI []byte
	if cfg.Server.OpenAPIPath != "" {
		var err error
		if openAPI, err = os.ReadFile(cfg.Server.OpenAPIPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.Server.OpenAPIPath).Msg("OpenAPI document not found, Swagger UI will be unavailable")
		}
	}

	deps := httpHandler.RouterDeps{
		AuthSvc:        a.AuthSvc,
		TransferSvc:    a.TransferSvc,
		ScheduleSvc:    a.ScheduleSvc,
		ContactSvc:     contactSvc,
		HistorySvc:     historySvc,
		TokenSvc:       tokenSvc,
		Sessions:       kv.sessions,
		RateLimiter:    kv.limiter,
		HealthCheckers: []ports.HealthChecker{st.health, kv.health},
		AuditSvc:       auditSvc,
		OpenAPISpec:    openAPI,
		Logger:         logger.Component(log, "http"),
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = a.Metrics.Handler()
		deps.MetricsPath = cfg.Metrics.Path
	}
	a.Router = httpHandler.SetupRouter(deps)

	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		s := memory.New()
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return &storage{
			accounts:  memory.NewAccountRepo(s),
			txns:      memory.NewTransactionRepo(s),
			contacts:  memory.NewContactRepo(s),
			schedules: memory.NewScheduledTransferRepo(s),
			idemp:     memory.NewIdempotencyRepo(s),
			audit:     memory.NewAuditRepo(s),
			uow:       s,
			health:    memory.HealthCheck{},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	return &storage{
		accounts:  pgStorage.NewAccountRepo(pool),
		txns:      pgStorage.NewTransactionRepo(pool),
		contacts:  pgStorage.NewContactRepo(pool),
		schedules: pgStorage.NewScheduledTransferRepo(pool),
		idemp:     pgStorage.NewIdempotencyRepo(pool),
		audit:     pgStorage.NewAuditRepo(pool),
		uow:       pgStorage.NewTransactor(pool),
		health:    pgStorage.NewHealthCheck(pool),
	}, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config, clk clock.Clock, log zerolog.Logger) (*stores, error) {
	if !cfg.Redis.Enabled {
		log.Warn().Msg("redis disabled, using in-process stores")
		return &stores{
			attempts: memory.NewLoginAttemptStore(clk),
			sessions: memory.NewSessionStore(clk),
			cache:    memory.NewIdempotencyCache(clk),
			jobLock:  memory.NewJobLock(clk),
			limiter:  memory.NewRateLimiter(clk),
			health:   memory.HealthCheck{},
		}, nil
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { rdb.Close() })

	return &stores{
		attempts: redisStorage.NewLoginAttemptStore(rdb),
		sessions: redisStorage.NewSessionStore(rdb, clk),
		cache:    redisStorage.NewIdempotencyCache(rdb),
		jobLock:  redisStorage.NewJobLock(rdb),
		limiter:  redisStorage.NewRateLimitStore(rdb),
		health:   redisStorage.NewHealthCheck(rdb),
	}, nil
}

func newNotifier(cfg config.NotifierConfig, mx *metrics.Collector, log zerolog.Logger) ports.Notifier {
	if cfg.URL == "" {
		return service.NewLogNotifier(log)
	}
	return service.NewSMSNotifier(
		service.SMSNotifierConfig{
			URL:    cfg.URL,
			APIKey: cfg.APIKey,
			Secret: cfg.Secret,
			Sender: cfg.Sender,
		},
		service.NewHMACSignatureService(),
		&http.Client{Timeout: cfg.Timeout},
		mx,
		log,
	)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
