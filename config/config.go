package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	OpenAPIPath     string        `mapstructure:"openapi_path"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// StorageConfig selects the ledger backend. The memory driver keeps
// everything in-process and is meant for local runs and tests.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// StatementTimeout bounds every statement server-side; 0 leaves the
	// server default.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	ConnectRetries   int           `mapstructure:"connect_retries"`
	ConnectBackoff   time.Duration `mapstructure:"connect_backoff"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	// Enabled=false swaps sessions, lockouts, the idempotency cache, the job
	// lock and rate limiting for in-process stores.
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
	// CapabilityExpiry bounds tokens scoped to a single capability (create-secret).
	CapabilityExpiry time.Duration `mapstructure:"capability_expiry"`
}

// AuthConfig drives the secret-code lockout state machine.
type AuthConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	LockoutDuration time.Duration `mapstructure:"lockout_duration"`
	CountryPrefix   string        `mapstructure:"country_prefix"`
	InitialCodeLen  int           `mapstructure:"initial_code_length"`

	// Argon2id cost for secret codes. Memory is in KiB.
	Argon2Memory  uint32 `mapstructure:"argon2_memory"`
	Argon2Time    uint32 `mapstructure:"argon2_time"`
	Argon2Threads uint8  `mapstructure:"argon2_threads"`
}

type TransferConfig struct {
	CancelWindow time.Duration `mapstructure:"cancel_window"`
	// AllowNegativeReversal lets a cancellation push the recipient below zero.
	AllowNegativeReversal bool          `mapstructure:"allow_negative_reversal"`
	IdempotencyTTL        time.Duration `mapstructure:"idempotency_ttl"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	// MaxConsecutiveFailures deactivates an underfunded series after that many
	// failed polls. Zero keeps retrying until funded or cancelled.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
}

type NotifierConfig struct {
	URL     string        `mapstructure:"url"` // empty = log-only notifier
	APIKey  string        `mapstructure:"api_key"`
	Secret  string        `mapstructure:"secret"` // HMAC key for payload signatures
	Sender  string        `mapstructure:"sender"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MMG_ (Mobile Money Gateway).
// Nested keys use underscore: MMG_DATABASE_HOST, MMG_AUTH_MAX_ATTEMPTS, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MMG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.openapi_path", "docs/api/openapi.yaml")

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "mobile_money")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.statement_timeout", "10s")
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.connect_backoff", "2s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "mobile-money-gateway")
	v.SetDefault("jwt.capability_expiry", "15m")

	v.SetDefault("auth.max_attempts", 3)
	v.SetDefault("auth.lockout_duration", "300s")
	v.SetDefault("auth.country_prefix", "221")
	v.SetDefault("auth.initial_code_length", 6)
	v.SetDefault("auth.argon2_memory", 64*1024)
	v.SetDefault("auth.argon2_time", 1)
	v.SetDefault("auth.argon2_threads", 4)

	v.SetDefault("transfer.cancel_window", "30m")
	v.SetDefault("transfer.allow_negative_reversal", true)
	v.SetDefault("transfer.idempotency_ttl", "24h")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.lock_ttl", "55s")
	v.SetDefault("scheduler.max_consecutive_failures", 0)

	v.SetDefault("notifier.url", "")
	v.SetDefault("notifier.api_key", "")
	v.SetDefault("notifier.secret", "")
	v.SetDefault("notifier.sender", "MobileMoney")
	v.SetDefault("notifier.timeout", "10s")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Storage.Driver != DriverPostgres && c.Storage.Driver != DriverMemory {
		return fmt.Errorf("storage.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Auth.MaxAttempts < 1 {
		return fmt.Errorf("auth.max_attempts must be at least 1")
	}
	if c.Auth.LockoutDuration <= 0 {
		return fmt.Errorf("auth.lockout_duration must be positive")
	}
	if c.Transfer.CancelWindow <= 0 {
		return fmt.Errorf("transfer.cancel_window must be positive")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("scheduler.max_consecutive_failures must not be negative")
	}
	return nil
}
