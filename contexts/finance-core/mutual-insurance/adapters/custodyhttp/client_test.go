package custodyhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domainerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	"commonpool/contexts/finance-core/mutual-insurance/ports"
)

func TestTransferPostsRequestWithReferenceKey(t *testing.T) {
	var received transferRequest
	var idempotencyKey, authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != transferPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		idempotencyKey = r.Header.Get("Idempotency-Key")
		authorization = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", ServiceToken: "s3cret"}, server.Client(), nil)
	err := client.Transfer(context.Background(), ports.TransferRequest{
		From:      "pool:pool-1",
		To:        "claimant-1",
		Amount:    250,
		Reference: "claim-settlement:claim-1",
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if received.From != "pool:pool-1" || received.To != "claimant-1" || received.Amount != 250 {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if idempotencyKey != "claim-settlement:claim-1" {
		t.Fatalf("expected reference as idempotency key, got %q", idempotencyKey)
	}
	if authorization != "Bearer s3cret" {
		t.Fatalf("expected bearer service token, got %q", authorization)
	}
}

func TestInsufficientFundsDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(errorResponse{Code: "insufficient_funds", Message: "balance too low"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, FailureThreshold: 2}, server.Client(), nil)
	for i := 0; i < 4; i++ {
		err := client.Transfer(context.Background(), ports.TransferRequest{From: "a", To: "b", Amount: 1, Reference: "ref"})
		if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
			t.Fatalf("attempt %d: expected insufficient funds, got %v", i, err)
		}
	}
	if calls.Load() != 4 {
		t.Fatalf("expected every call to reach the gateway, got %d", calls.Load())
	}
	if client.State() != "closed" {
		t.Fatalf("expected closed breaker, got %s", client.State())
	}
}

func TestGatewayFailuresOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, FailureThreshold: 2, OpenTimeout: time.Minute}, server.Client(), nil)
	for i := 0; i < 2; i++ {
		err := client.Transfer(context.Background(), ports.TransferRequest{From: "a", To: "b", Amount: 1, Reference: "ref"})
		if !errors.Is(err, ErrGatewayUnavailable) {
			t.Fatalf("attempt %d: expected gateway unavailable, got %v", i, err)
		}
	}
	if client.State() != "open" {
		t.Fatalf("expected open breaker, got %s", client.State())
	}

	err := client.Transfer(context.Background(), ports.TransferRequest{From: "a", To: "b", Amount: 1, Reference: "ref"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable while open, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected open breaker to short-circuit, got %d calls", calls.Load())
	}
}
