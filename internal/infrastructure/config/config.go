package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	OpsPort  string `env:"OPS_PORT,  default=9090"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session  SessionConfig
	Identity IdentityConfig
	Stores   StoresConfig
	Login    LoginConfig
	Audit    AuditConfig

	Mongo MongoConfig
	Redis RedisConfig
}

type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL,        default=12h"`
	CookieSecure bool          `env:"COOKIE_SECURE,      default=false"`
	CacheSize    int           `env:"SESSION_CACHE_SIZE, default=4096"`
}

type IdentityConfig struct {
	URL     string        `env:"IDENTITY_URL,     default=http://localhost:8000"`
	Timeout time.Duration `env:"IDENTITY_TIMEOUT, default=10s"`
}

// StoresConfig selects where snapshots and role selections live.
type StoresConfig struct {
	Snapshots string `env:"STORE_BACKEND, default=redis"`
	Roles     string `env:"ROLE_STORE,    default=redis"`
}

// LoginConfig throttles POST /auth/login per client IP.
type LoginConfig struct {
	Rate  float64 `env:"LOGIN_RATE,  default=1"`
	Burst int     `env:"LOGIN_BURST, default=5"`
}

// AuditConfig controls the MongoDB session audit trail.
type AuditConfig struct {
	Enabled   bool `env:"AUDIT_ENABLED,    default=true"`
	Workers   int  `env:"AUDIT_WORKERS,    default=4"`
	QueueSize int  `env:"AUDIT_QUEUE_SIZE, default=256"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=dashboard"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// DevIdentityConfig configures the local stand-in identity service.
type DevIdentityConfig struct {
	Port      string `env:"DEV_IDENTITY_PORT,  default=8000"`
	UsersFile string `env:"DEV_IDENTITY_USERS"`
	LogLevel  string `env:"LOG_LEVEL,          default=info"`
	Env       string `env:"ENV,                default=development"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit variable source.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDevIdentity reads the dev identity service settings.
func LoadDevIdentity(ctx context.Context) (*DevIdentityConfig, error) {
	var cfg DevIdentityConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if !oneOf(c.Stores.Snapshots, BackendRedis, BackendMemory) {
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q: want redis or memory", c.Stores.Snapshots))
	}
	if !oneOf(c.Stores.Roles, BackendRedis, BackendMongo, BackendMemory) {
		errs = append(errs, fmt.Errorf("ROLE_STORE %q: want redis, mongo or memory", c.Stores.Roles))
	}
	if c.Login.Rate <= 0 || c.Login.Burst <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE and LOGIN_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// UsesMongo reports whether the audit trail or a store needs MongoDB.
func (c *Config) UsesMongo() bool {
	return c.Audit.Enabled || c.Stores.Roles == BackendMongo
}

// IsDevelopment reports whether ENV selects development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UsesRedis reports whether any store needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Stores.Snapshots == BackendRedis || c.Stores.Roles == BackendRedis
}

func oneOf(v string, options ...string) bool {
	return slices.Contains(options, v)
}
