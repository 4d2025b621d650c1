package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{SkipFlags: true, SkipFiles: true})
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/intake")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("INTAKE_AUTH_HMAC_SECRET", "secret")
	t.Setenv("PORT", "")

	cfg, err := loadTestConfig(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://u:p@localhost:5432/intake", cfg.Storage.DatabaseURL)
	assert.Equal(t, "intake:orders:last_id", cfg.Storage.RedisKey)
	assert.Equal(t, "sk_test_123", cfg.Payment.SecretKey)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, int64(99999999), cfg.Payment.MaxAmount)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.External)
	assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PrefixedEnvWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("INTAKE_STORAGE_DATABASE_URL", "postgres://explicit")
	t.Setenv("STRIPE_SECRET_KEY", "sk_platform")
	t.Setenv("INTAKE_PAYMENT_SECRET_KEY", "sk_explicit")
	t.Setenv("INTAKE_PAYMENT_CURRENCY", "EUR")
	t.Setenv("INTAKE_AUTH_HMAC_SECRET", "secret")
	t.Setenv("PORT", "9000")

	cfg, err := loadTestConfig(t)
	require.NoError(t, err)

	assert.Equal(t, "postgres://explicit", cfg.Storage.DatabaseURL)
	assert.Equal(t, "sk_explicit", cfg.Payment.SecretKey)
	assert.Equal(t, "eur", cfg.Payment.Currency)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_MemoryBackendNeedsNoDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("INTAKE_STORAGE_BACKEND", "memory")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("INTAKE_AUTH_HMAC_SECRET", "secret")

	cfg, err := loadTestConfig(t)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage: StorageConfig{Backend: BackendPostgres, DatabaseURL: "postgres://x"},
			Payment: PaymentConfig{SecretKey: "sk", Currency: "usd", MaxAmount: 100},
			Auth:    AuthConfig{HMACSecret: "s"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"ok", func(*Config) {}, ""},
		{"public key only", func(c *Config) { c.Auth = AuthConfig{PublicKeyFile: "key.pem"} }, ""},
		{"no database", func(c *Config) { c.Storage.DatabaseURL = "" }, "database URL is required"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, "unknown storage backend"},
		{"no stripe key", func(c *Config) { c.Payment.SecretKey = "" }, "stripe secret key is required"},
		{"bad currency", func(c *Config) { c.Payment.Currency = "dollars" }, "invalid currency"},
		{"negative max", func(c *Config) { c.Payment.MaxAmount = -1 }, "must not be negative"},
		{"no auth key", func(c *Config) { c.Auth = AuthConfig{} }, "token verification key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
