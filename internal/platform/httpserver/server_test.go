package httpserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	custodyledger "commonpool/contexts/finance-core/custody-ledger"
	mutualinsurance "commonpool/contexts/finance-core/mutual-insurance"
	authorization "commonpool/contexts/identity-access/authorization-service"
	authzentities "commonpool/contexts/identity-access/authorization-service/domain/entities"
	"commonpool/internal/app/bridge"
	"commonpool/internal/platform/metrics"
)

const testServiceToken = "custody-service-token"

func newTestServer(opts ...Option) *Server {
	logger := slog.Default()
	authz := authorization.NewInMemoryModule(logger)
	authz.Store.SetRole("admin-1", authzentities.RoleAdmin)
	authz.Store.SetRole("verifier-a", authzentities.RoleVerifier)
	authz.Store.SetRole("verifier-b", authzentities.RoleVerifier)
	custody := custodyledger.NewInMemoryModule(logger)
	insurance := mutualinsurance.NewInMemoryModule(
		bridge.RoleAuthorizer{Roles: authz.Roles},
		bridge.CustodyTransfers{Ledger: custody.Service},
		logger,
	)
	if len(opts) == 0 {
		opts = []Option{WithCustodyServiceToken(testServiceToken)}
	}
	return New(insurance, authz, custody, metrics.New("commonpool"), logger, ":0", opts...)
}

func doJSON(t *testing.T, handler http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func doTransfer(t *testing.T, handler http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/custody/v1/transfers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("decode body failed: %v body=%s", err, rr.Body.String())
	}
}

func TestCreatePolicyRequiresCaller(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPost, "/v1/policies", "", `{"owner":"owner-1","premium":100,"coverage":1000}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePolicyRequiresAdmin(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPost, "/v1/policies", "owner-1", `{"owner":"owner-1","premium":100,"coverage":1000}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePolicyRejectsUnknownFields(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPost, "/v1/policies", "admin-1", `{"owner":"owner-1","premium":100,"coverage":1000,"bonus":5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClaimSettlementEndToEnd(t *testing.T) {
	server := newTestServer()

	rr := doJSON(t, server.mux, http.MethodPost, "/v1/policies", "admin-1", `{"owner":"owner-1","premium":100,"coverage":1000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create policy: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var policy struct {
		PolicyID string `json:"policy_id"`
	}
	decodeBody(t, rr, &policy)

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/claims", "owner-1", `{"policy_id":"`+policy.PolicyID+`","amount":300}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create claim: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var claim struct {
		ClaimID  string `json:"claim_id"`
		Verified bool   `json:"verified"`
	}
	decodeBody(t, rr, &claim)

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/claims/"+claim.ClaimID+"/verifications", "owner-1", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("self verification: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	for _, verifier := range []string{"verifier-a", "verifier-b"} {
		rr = doJSON(t, server.mux, http.MethodPost, "/v1/claims/"+claim.ClaimID+"/verifications", verifier, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("verify by %s: expected 200, got %d body=%s", verifier, rr.Code, rr.Body.String())
		}
	}
	decodeBody(t, rr, &claim)
	if !claim.Verified {
		t.Fatalf("expected claim verified after quorum, body=%s", rr.Body.String())
	}

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/pools", "admin-1", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create pool: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var pool struct {
		PoolID string `json:"pool_id"`
	}
	decodeBody(t, rr, &pool)

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/pools/"+pool.PoolID+"/stake", "staker-1", `{"amount":500}`)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "insufficient_funds") {
		t.Fatalf("unfunded stake: expected 422 insufficient_funds, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/custody/accounts/staker-1/deposits", "staker-1", `{"amount":500}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodPost, "/v1/pools/"+pool.PoolID+"/stake", "staker-1", `{"amount":500}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("stake: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/claims/"+claim.ClaimID+"/settlement", "owner-1", `{"pool_id":"`+pool.PoolID+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("settle: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodPost, "/v1/claims/"+claim.ClaimID+"/settlement", "owner-1", `{"pool_id":"`+pool.PoolID+`"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("second settle: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server.mux, http.MethodGet, "/v1/custody/accounts/owner-1", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("custody account: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var account struct {
		Data struct {
			Balance int64 `json:"balance"`
		} `json:"data"`
	}
	decodeBody(t, rr, &account)
	if account.Data.Balance != 300 {
		t.Fatalf("expected claimant custody balance 300, got %d", account.Data.Balance)
	}

	rr = doJSON(t, server.mux, http.MethodGet, "/v1/pools/"+pool.PoolID+"/reconciliation", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"balanced":true`) {
		t.Fatalf("reconciliation: expected balanced pool, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestUnknownPoolReturnsNotFound(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodGet, "/v1/pools/missing", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCustodyDepositOnlyForOwnAccount(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPost, "/v1/custody/accounts/alice/deposits", "mallory", `{"amount":10}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCustodyTransferConflictAndOverdraft(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPost, "/v1/custody/accounts/alice/deposits", "alice", `{"amount":50}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doTransfer(t, server.mux, testServiceToken, `{"from":"alice","to":"bob","amount":80,"reference":"t-1"}`)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), `"code":"insufficient_funds"`) {
		t.Fatalf("overdraft: expected 422 insufficient_funds, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doTransfer(t, server.mux, testServiceToken, `{"from":"alice","to":"bob","amount":20,"reference":"t-2"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("transfer: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doTransfer(t, server.mux, testServiceToken, `{"from":"alice","to":"bob","amount":20,"reference":"t-2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doTransfer(t, server.mux, testServiceToken, `{"from":"alice","to":"bob","amount":25,"reference":"t-2"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("reference conflict: expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doTransfer(t, server.mux, testServiceToken, `{"from":"alice","to":"alice","amount":5,"reference":"t-3"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("self transfer: expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCustodyTransferCannotDrainPoolWithoutServiceToken(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPost, "/v1/pools", "admin-1", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create pool: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var pool struct {
		PoolID string `json:"pool_id"`
	}
	decodeBody(t, rr, &pool)
	rr = doJSON(t, server.mux, http.MethodPost, "/v1/custody/accounts/staker-1/deposits", "staker-1", `{"amount":500}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodPost, "/v1/pools/"+pool.PoolID+"/stake", "staker-1", `{"amount":500}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("stake: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	drain := `{"from":"pool:` + pool.PoolID + `","to":"mallory","amount":500,"reference":"drain-1"}`
	rr = doTransfer(t, server.mux, "", drain)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous transfer: expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doTransfer(t, server.mux, "guessed-token", drain)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong token: expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	// X-User-Id is not a service credential.
	req := httptest.NewRequest(http.MethodPost, "/internal/custody/v1/transfers", strings.NewReader(drain))
	req.Header.Set("X-User-Id", "staker-1")
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("user transfer: expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}

	rr = doJSON(t, server.mux, http.MethodPost, "/v1/pools/"+pool.PoolID+"/withdraw", "staker-1", `{"amount":500}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("withdraw after rejected drain: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodGet, "/v1/custody/accounts/mallory", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"balance":0`) {
		t.Fatalf("expected mallory to hold nothing, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCustodyTransferDisabledWithoutConfiguredToken(t *testing.T) {
	server := newTestServer(WithCustodyServiceToken(""))
	rr := doTransfer(t, server.mux, "anything", `{"from":"alice","to":"bob","amount":1,"reference":"t-1"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when no token is configured, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAssignRoleRequiresAdmin(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodPut, "/api/authz/v1/roles/user-9", "verifier-a", `{"role":"verifier"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodPut, "/api/authz/v1/roles/user-9", "admin-1", `{"role":"overlord"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown role, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodPut, "/api/authz/v1/roles/user-9", "admin-1", `{"role":"verifier","reason":"onboarded"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodGet, "/api/authz/v1/roles/user-9", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"role":"verifier"`) {
		t.Fatalf("expected verifier role, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, server.mux, http.MethodGet, "/api/authz/v1/roles/user-9/audit?limit=x", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMetricsRecordRoutePattern(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.Handler(), http.MethodGet, "/v1/pools/missing", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = doJSON(t, server.Handler(), http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `route="GET /v1/pools/{pool_id}"`) {
		t.Fatalf("expected route pattern label in metrics, body=%s", rr.Body.String())
	}
}

func TestSwaggerDocRegistered(t *testing.T) {
	server := newTestServer()
	rr := doJSON(t, server.mux, http.MethodGet, "/swagger/doc.json", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "/v1/claims/{claim_id}/settlement") {
		t.Fatalf("expected settlement route in swagger doc")
	}
}
