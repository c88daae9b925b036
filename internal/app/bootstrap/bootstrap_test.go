package bootstrap

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commonpool/internal/platform/config"
)

func testConfig() config.Config {
	return config.Config{
		ServiceName:         "commonpool-test",
		HTTPPort:            "0",
		StorageBackend:      config.StorageMemory,
		BootstrapAdmins:     []string{"admin-1"},
		DefaultQuorum:       2,
		RequireVerifierRole: true,
		IdempotencyTTL:      time.Hour,
		OutboxPollInterval:  time.Hour,
		OutboxBatchSize:     10,
		ReconcileInterval:   time.Hour,
	}
}

func TestBuildAPIWiresMemoryRuntime(t *testing.T) {
	ctx := context.Background()
	app, err := buildAPI(ctx, testConfig(), slog.Default())
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer func() { _ = app.Close() }()

	if app.workers == nil {
		t.Fatal("expected in-process workers for the memory backend")
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/pools", bytes.NewReader(nil))
	req.Header.Set("X-User-Id", "admin-1")
	rr := httptest.NewRecorder()
	app.server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("seeded admin should create a pool, got %d body=%s", rr.Code, rr.Body.String())
	}

	pending, err := app.runtime.outbox.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending pool.created row, got %d", len(pending))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := app.workers.Run(cancelled); err != nil {
		t.Fatalf("worker run failed: %v", err)
	}
	pending, err = app.runtime.outbox.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected relay to drain the outbox, %d rows left", len(pending))
	}
}

func TestBuildAPIEnforcesVerifierRole(t *testing.T) {
	app, err := buildAPI(context.Background(), testConfig(), slog.Default())
	if err != nil {
		t.Fatalf("build api failed: %v", err)
	}
	defer func() { _ = app.Close() }()

	ok, err := app.runtime.insurance.Handler.VerifyClaim.Authorizer.HasRole(context.Background(), "admin-1", "verifier")
	if err != nil {
		t.Fatalf("role check failed: %v", err)
	}
	if ok {
		t.Fatal("admin must not pass a verifier check")
	}
	if !app.runtime.insurance.Handler.VerifyClaim.RequireVerifierRole {
		t.Fatal("expected verifier role gating from config")
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9090": ":9090", ":7070": ":7070", " 81 ": ":81"}
	for input, want := range cases {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", input, got, want)
		}
	}
}
