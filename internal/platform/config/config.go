package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName    string   `env:"SERVICE_NAME" envDefault:"commonpool"`
	HTTPPort       string   `env:"HTTP_PORT" envDefault:"8080"`
	StorageBackend string   `env:"STORAGE_BACKEND" envDefault:"memory"`
	PostgresDSN    string   `env:"POSTGRES_DSN"`
	AutoMigrate    bool     `env:"POSTGRES_AUTO_MIGRATE" envDefault:"true"`
	BusBrokers     []string `env:"EVENT_BUS_BROKERS" envSeparator:","`

	BootstrapAdmins     []string      `env:"BOOTSTRAP_ADMINS" envSeparator:","`
	DefaultQuorum       int           `env:"DEFAULT_VERIFIER_QUORUM" envDefault:"2"`
	RequireVerifierRole bool          `env:"REQUIRE_VERIFIER_ROLE" envDefault:"true"`
	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	CustodyGatewayURL       string        `env:"CUSTODY_GATEWAY_URL"`
	CustodyGatewayTimeout   time.Duration `env:"CUSTODY_GATEWAY_TIMEOUT" envDefault:"5s"`
	CustodyBreakerFailures  uint32        `env:"CUSTODY_BREAKER_FAILURES" envDefault:"5"`
	CustodyBreakerOpenDelay time.Duration `env:"CUSTODY_BREAKER_OPEN_DELAY" envDefault:"30s"`
	CustodyServiceToken     string        `env:"CUSTODY_SERVICE_TOKEN"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.BusBrokers = compact(cfg.BusBrokers)
	cfg.BootstrapAdmins = compact(cfg.BootstrapAdmins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the bootstrap cannot wire.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required for the postgres storage backend")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	if strings.TrimSpace(c.CustodyGatewayURL) != "" && strings.TrimSpace(c.CustodyServiceToken) == "" {
		return errors.New("CUSTODY_SERVICE_TOKEN is required when CUSTODY_GATEWAY_URL is set")
	}
	if c.DefaultQuorum < 1 {
		return errors.New("DEFAULT_VERIFIER_QUORUM must be at least 1")
	}
	if c.OutboxBatchSize < 1 {
		return errors.New("OUTBOX_BATCH_SIZE must be at least 1")
	}
	if c.OutboxPollInterval <= 0 || c.ReconcileInterval <= 0 {
		return errors.New("worker intervals must be positive")
	}
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
