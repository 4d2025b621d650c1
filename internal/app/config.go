package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (INTAKE_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage  StorageConfig
	Payment  PaymentConfig
	Auth     AuthConfig
	Timeouts TimeoutsConfig
	CORS     CORSConfig
	Graceful GracefulConfig
}

// StorageConfig selects where products and orders live and how order ids
// are allocated.
type StorageConfig struct {
	Backend     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (INTAKE_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	// RedisURL moves order id allocation to a Redis counter when set.
	RedisURL string `usage:"Redis URL for the order id counter" flag:"redis-url"`
	RedisKey string `default:"intake:orders:last_id" usage:"Redis key of the order id counter"`
}

// PaymentConfig configures the Stripe provider.
type PaymentConfig struct {
	SecretKey string `usage:"Stripe secret key (INTAKE_PAYMENT_SECRET_KEY or STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	Currency  string `default:"usd" usage:"ISO currency of payment intents"`
	MaxAmount int64  `default:"99999999" usage:"Largest accepted order total in minor units"`
	BaseURL   string `usage:"Override of the Stripe API URL (stripe-mock)"`
}

// AuthConfig selects the bearer token verification keys.
type AuthConfig struct {
	HMACSecret    string        `usage:"HS256 secret for bearer tokens" flag:"auth-hmac-secret"`
	PublicKeyFile string        `usage:"PEM file with the RS256 public key for bearer tokens" flag:"auth-public-key-file"`
	Issuer        string        `usage:"Required token issuer"`
	Audience      string        `usage:"Required token audience"`
	Leeway        time.Duration `default:"30s" usage:"Tolerated clock skew for token times"`
}

// TimeoutsConfig bounds calls to external systems.
type TimeoutsConfig struct {
	External time.Duration `default:"10s" usage:"Timeout of each storage, payment or identity call"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and flags, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/intake/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	var cfg Config
	base.EnvPrefix = "INTAKE"
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's INTAKE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Payment.SecretKey == "" {
		c.Payment.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.Payment.Currency = strings.ToLower(c.Payment.Currency)
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set INTAKE_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case BackendMemory:
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Payment.SecretKey == "" {
		return errors.New("stripe secret key is required: set INTAKE_PAYMENT_SECRET_KEY or STRIPE_SECRET_KEY")
	}
	if len(c.Payment.Currency) != 3 {
		return errors.Errorf("invalid currency %q", c.Payment.Currency)
	}
	if c.Payment.MaxAmount < 0 {
		return errors.New("payment max amount must not be negative")
	}
	if c.Auth.HMACSecret == "" && c.Auth.PublicKeyFile == "" {
		return errors.New("token verification key is required: set INTAKE_AUTH_HMAC_SECRET or INTAKE_AUTH_PUBLIC_KEY_FILE")
	}
	return nil
}
