package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadMap(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return load(context.Background(), envconfig.MapLookuper(env))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{"JWT_SECRET": "s"})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, BackendMemory, cfg.LedgerBackend)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 8, cfg.EventWorkers)
	assert.Equal(t, "escrow", cfg.Mongo.Database)
	assert.Equal(t, "./data/escrow.db", cfg.SQLite.Path)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{
		"JWT_SECRET":     "s",
		"ENV":            "Production",
		"STORE_BACKEND":  "SQLite",
		"LEDGER_BACKEND": "redis",
		"TOKEN_TTL":      "90m",
		"REDIS_DB":       "3",
		"EVENT_WORKERS":  "2",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 2, cfg.EventWorkers)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"unknown store":  {"JWT_SECRET": "s", "STORE_BACKEND": "postgres"},
		"unknown ledger": {"JWT_SECRET": "s", "LEDGER_BACKEND": "mongo"},
		"zero workers":   {"JWT_SECRET": "s", "EVENT_WORKERS": "0"},
		"bad duration":   {"JWT_SECRET": "s", "TOKEN_TTL": "soon"},
		"negative ttl":   {"JWT_SECRET": "s", "TOKEN_TTL": "-1h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMap(t, env)
			assert.Error(t, err)
		})
	}
}

func TestValidate_BackendSettings(t *testing.T) {
	base := func() Config {
		return Config{
			JWTSecret:     "s",
			TokenTTL:      time.Hour,
			EventWorkers:  1,
			StoreBackend:  BackendMemory,
			LedgerBackend: BackendMemory,
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.StoreBackend = BackendSQLite
	assert.Error(t, cfg.Validate(), "sqlite needs a path")

	cfg = base()
	cfg.StoreBackend = BackendMongo
	cfg.Mongo.URI = "mongodb://localhost:27017"
	assert.Error(t, cfg.Validate(), "mongo needs a database")
	cfg.Mongo.Database = "escrow"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BootstrapOperator(t *testing.T) {
	cfg, err := loadMap(t, map[string]string{
		"JWT_SECRET":        "s",
		"OPERATOR_EMAIL":    "ops@example.com",
		"OPERATOR_PASSWORD": "pw",
		"OPERATOR_IDENTITY": "acct-ops",
	})
	require.NoError(t, err)
	assert.True(t, cfg.Operator.Enabled())
	assert.Equal(t, "acct-ops", cfg.Operator.Identity)

	_, err = loadMap(t, map[string]string{
		"JWT_SECRET":     "s",
		"OPERATOR_EMAIL": "ops@example.com",
	})
	assert.Error(t, err, "an operator email needs a password and identity")
}
