package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"commonpool/contexts/finance-core/mutual-insurance/adapters/custodyhttp"
	insuranceerrors "commonpool/contexts/finance-core/mutual-insurance/domain/errors"
	insurancehttp "commonpool/contexts/finance-core/mutual-insurance/transport/http"
)

func (s *Server) registerInsuranceRoutes() {
	s.mux.HandleFunc("POST /v1/policies", s.handleCreatePolicy)
	s.mux.HandleFunc("GET /v1/policies/{policy_id}", s.handleGetPolicy)
	s.mux.HandleFunc("POST /v1/policies/{policy_id}/premiums", s.handlePayPremium)
	s.mux.HandleFunc("POST /v1/policies/{policy_id}/deactivate", s.handleDeactivatePolicy)
	s.mux.HandleFunc("GET /v1/policies/{policy_id}/claims", s.handleListPolicyClaims)

	s.mux.HandleFunc("POST /v1/claims", s.handleCreateClaim)
	s.mux.HandleFunc("GET /v1/claims/{claim_id}", s.handleGetClaim)
	s.mux.HandleFunc("POST /v1/claims/{claim_id}/verifications", s.handleVerifyClaim)
	s.mux.HandleFunc("POST /v1/claims/{claim_id}/settlement", s.handleSettleClaim)

	s.mux.HandleFunc("POST /v1/pools", s.handleCreatePool)
	s.mux.HandleFunc("GET /v1/pools/{pool_id}", s.handleGetPool)
	s.mux.HandleFunc("POST /v1/pools/{pool_id}/stake", s.handleStake)
	s.mux.HandleFunc("POST /v1/pools/{pool_id}/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("GET /v1/pools/{pool_id}/accounts/{owner}", s.handleGetPoolAccount)
	s.mux.HandleFunc("GET /v1/pools/{pool_id}/reconciliation", s.handleReconcilePool)
	s.mux.HandleFunc("POST /v1/admin/pools/{pool_id}/withdraw", s.handleAdminWithdraw)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.CreatePolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.CreatePolicyHandler(r.Context(), callerID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	resp, err := s.insurance.Handler.GetPolicyHandler(r.Context(), r.PathValue("policy_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePayPremium(w http.ResponseWriter, r *http.Request) {
	payerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.PayPremiumRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.PayPremiumHandler(r.Context(), payerID, r.PathValue("policy_id"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeactivatePolicy(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	resp, err := s.insurance.Handler.DeactivatePolicyHandler(r.Context(), callerID, r.PathValue("policy_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListPolicyClaims(w http.ResponseWriter, r *http.Request) {
	resp, err := s.insurance.Handler.ListPolicyClaimsHandler(r.Context(), r.PathValue("policy_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.CreateClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.CreateClaimHandler(r.Context(), callerID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	resp, err := s.insurance.Handler.GetClaimHandler(r.Context(), r.PathValue("claim_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyClaim(w http.ResponseWriter, r *http.Request) {
	verifierID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	resp, err := s.insurance.Handler.VerifyClaimHandler(r.Context(), verifierID, r.PathValue("claim_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettleClaim(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.SettleClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.SettleClaimHandler(r.Context(), callerID, r.PathValue("claim_id"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	resp, err := s.insurance.Handler.CreatePoolHandler(r.Context(), callerID)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	resp, err := s.insurance.Handler.GetPoolHandler(r.Context(), r.PathValue("pool_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	stakerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.StakeHandler(r.Context(), stakerID, r.PathValue("pool_id"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.WithdrawHandler(r.Context(), callerID, r.PathValue("pool_id"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminWithdraw(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req insurancehttp.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.insurance.Handler.AdminWithdrawHandler(r.Context(), callerID, r.PathValue("pool_id"), req)
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPoolAccount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.insurance.Handler.GetAccountHandler(r.Context(), r.PathValue("pool_id"), r.PathValue("owner"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcilePool(w http.ResponseWriter, r *http.Request) {
	resp, err := s.insurance.Handler.ReconcilePoolHandler(r.Context(), r.PathValue("pool_id"))
	if err != nil {
		s.writeInsuranceDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeInsuranceDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch insuranceerrors.KindOf(err) {
	case insuranceerrors.KindValidation:
		writeInsuranceError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	case insuranceerrors.KindNotFound:
		writeInsuranceError(w, http.StatusNotFound, "not_found", err.Error())
		return
	case insuranceerrors.KindAuthorization:
		writeInsuranceError(w, http.StatusForbidden, "forbidden", err.Error())
		return
	case insuranceerrors.KindStateViolation:
		writeInsuranceError(w, http.StatusConflict, "state_violation", err.Error())
		return
	case insuranceerrors.KindConsensusViolation:
		writeInsuranceError(w, http.StatusConflict, "consensus_violation", err.Error())
		return
	case insuranceerrors.KindConflict:
		writeInsuranceError(w, http.StatusConflict, "conflict", err.Error())
		return
	case insuranceerrors.KindBalanceViolation:
		code := "insufficient_balance"
		switch {
		case errors.Is(err, insuranceerrors.ErrInsufficientFunds):
			code = "insufficient_funds"
		case errors.Is(err, insuranceerrors.ErrAmountOverflow):
			code = "amount_overflow"
		}
		writeInsuranceError(w, http.StatusUnprocessableEntity, code, err.Error())
		return
	}

	if errors.Is(err, custodyhttp.ErrGatewayUnavailable) {
		writeInsuranceError(w, http.StatusServiceUnavailable, "custody_unavailable", "custody gateway unavailable")
		return
	}
	s.logger.Error("insurance request failed",
		"event", "http_insurance_request_failed",
		"module", moduleName,
		"layer", "platform",
		"method", r.Method,
		"path", strings.TrimSpace(r.URL.Path),
		"error", err.Error(),
	)
	writeInsuranceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeInsuranceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, insurancehttp.ErrorResponse{Code: code, Message: message})
}
