// Package config loads service settings from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

type Config struct {
	Port        string        `env:"PORT,           default=8080"`
	Env         string        `env:"ENV,            default=development"`
	ServiceName string        `env:"SERVICE_NAME,   default=escrow-service"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,      default=24h"`
	LogLevel    string        `env:"LOG_LEVEL,      default=info"`

	StoreBackend  string `env:"STORE_BACKEND,  default=memory"`
	LedgerBackend string `env:"LEDGER_BACKEND, default=memory"`
	EventWorkers  int    `env:"EVENT_WORKERS,  default=8"`

	// OTelEndpoint is the OTLP/HTTP collector host:port. Tracing stays on
	// the no-op provider when empty.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	SQLite   SQLiteConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Operator OperatorConfig
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH, default=./data/escrow.db"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=escrow"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// OperatorConfig seeds the first operator account at startup. Further
// operators can only be registered with an operator token.
type OperatorConfig struct {
	Email    string `env:"OPERATOR_EMAIL"`
	Password string `env:"OPERATOR_PASSWORD"`
	Identity string `env:"OPERATOR_IDENTITY"`
}

// Enabled reports whether a bootstrap operator is configured.
func (o OperatorConfig) Enabled() bool {
	return o.Email != ""
}

// Load reads configuration from the process environment and validates it.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.LedgerBackend = strings.ToLower(cfg.LedgerBackend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.StoreBackend == BackendRedis || c.LedgerBackend == BackendRedis
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case BackendMemory, BackendSQLite, BackendMongo, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q must be one of memory, sqlite, mongo, redis", c.StoreBackend))
	}
	switch c.LedgerBackend {
	case BackendMemory, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND %q must be memory or redis", c.LedgerBackend))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.EventWorkers <= 0 {
		errs = append(errs, errors.New("EVENT_WORKERS must be positive"))
	}
	if c.StoreBackend == BackendSQLite && c.SQLite.Path == "" {
		errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite backend"))
	}
	if c.StoreBackend == BackendMongo && (c.Mongo.URI == "" || c.Mongo.Database == "") {
		errs = append(errs, errors.New("MONGO_URI and MONGO_DB are required for the mongo backend"))
	}
	if c.Operator.Enabled() && (c.Operator.Password == "" || strings.TrimSpace(c.Operator.Identity) == "") {
		errs = append(errs, errors.New("OPERATOR_PASSWORD and OPERATOR_IDENTITY are required with OPERATOR_EMAIL"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
