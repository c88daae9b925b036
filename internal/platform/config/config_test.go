package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("BOOTSTRAP_ADMINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.ServiceName != "commonpool" || cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected service defaults: %+v", cfg)
	}
	if cfg.StorageBackend != StorageMemory {
		t.Fatalf("expected memory backend, got %q", cfg.StorageBackend)
	}
	if cfg.DefaultQuorum != 2 || !cfg.RequireVerifierRole {
		t.Fatalf("unexpected quorum defaults: quorum=%d require=%v", cfg.DefaultQuorum, cfg.RequireVerifierRole)
	}
	if cfg.OutboxPollInterval != 2*time.Second || cfg.ReconcileInterval != time.Minute {
		t.Fatalf("unexpected worker intervals: %s %s", cfg.OutboxPollInterval, cfg.ReconcileInterval)
	}
}

func TestLoadParsesListsAndDurations(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", " Memory ")
	t.Setenv("BOOTSTRAP_ADMINS", "admin-1, ,admin-2")
	t.Setenv("EVENT_BUS_BROKERS", "localhost:9092")
	t.Setenv("CUSTODY_GATEWAY_TIMEOUT", "750ms")
	t.Setenv("DEFAULT_VERIFIER_QUORUM", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.BootstrapAdmins) != 2 || cfg.BootstrapAdmins[1] != "admin-2" {
		t.Fatalf("unexpected admins: %#v", cfg.BootstrapAdmins)
	}
	if len(cfg.BusBrokers) != 1 {
		t.Fatalf("unexpected brokers: %#v", cfg.BusBrokers)
	}
	if cfg.CustodyGatewayTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected gateway timeout: %s", cfg.CustodyGatewayTimeout)
	}
	if cfg.DefaultQuorum != 3 {
		t.Fatalf("unexpected quorum: %d", cfg.DefaultQuorum)
	}
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without dsn":  {"STORAGE_BACKEND": "postgres", "POSTGRES_DSN": ""},
		"unknown backend":       {"STORAGE_BACKEND": "sqlite"},
		"zero quorum":           {"STORAGE_BACKEND": "memory", "DEFAULT_VERIFIER_QUORUM": "0"},
		"bad duration":          {"STORAGE_BACKEND": "memory", "RECONCILE_INTERVAL": "soon"},
		"gateway without token": {"STORAGE_BACKEND": "memory", "CUSTODY_GATEWAY_URL": "http://custody:8080", "CUSTODY_SERVICE_TOKEN": ""},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range vars {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected load to fail for %s", name)
			}
		})
	}
}
