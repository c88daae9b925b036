package httpserver

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	custodyerrors "commonpool/contexts/finance-core/custody-ledger/domain/errors"
	custodydto "commonpool/contexts/finance-core/custody-ledger/transport/http"
)

func (s *Server) registerCustodyRoutes() {
	s.mux.HandleFunc("POST /v1/custody/accounts/{account_id}/deposits", s.handleCustodyDeposit)
	s.mux.HandleFunc("GET /v1/custody/accounts/{account_id}", s.handleCustodyGetAccount)
	s.mux.HandleFunc("POST /internal/custody/v1/transfers", s.handleCustodyTransfer)
}

// handleCustodyDeposit only funds the caller's own account.
func (s *Server) handleCustodyDeposit(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	accountID := strings.TrimSpace(r.PathValue("account_id"))
	if accountID != callerID {
		writeCustodyError(w, http.StatusForbidden, "forbidden", "deposits are accepted for the caller's own account only")
		return
	}
	var req custodydto.DepositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reference == "" {
		req.Reference = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	resp, err := s.custody.Handler.DepositHandler(r.Context(), accountID, req)
	if err != nil {
		s.writeCustodyDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCustodyGetAccount(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.custody.Handler.GetAccountHandler(r.Context(), r.PathValue("account_id"), limit)
	if err != nil {
		s.writeCustodyDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCustodyTransfer can debit any account, pool custody included, so it
// only serves other services holding the custody service token.
func (s *Server) handleCustodyTransfer(w http.ResponseWriter, r *http.Request) {
	if !s.requireServiceToken(w, r) {
		return
	}
	var req custodydto.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Reference == "" {
		req.Reference = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	resp, err := s.custody.Handler.TransferHandler(r.Context(), req)
	if err != nil {
		s.writeCustodyDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) requireServiceToken(w http.ResponseWriter, r *http.Request) bool {
	if s.custodyServiceToken == "" {
		writeCustodyError(w, http.StatusForbidden, "forbidden", "internal transfers are disabled on this listener")
		return false
	}
	token, ok := strings.CutPrefix(strings.TrimSpace(r.Header.Get("Authorization")), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeCustodyError(w, http.StatusUnauthorized, "missing_service_token", "a bearer service token is required")
		return false
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.custodyServiceToken)) != 1 {
		writeCustodyError(w, http.StatusForbidden, "forbidden", "service token rejected")
		return false
	}
	return true
}

func (s *Server) writeCustodyDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, custodyerrors.ErrInvalidInput):
		writeCustodyError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, custodyerrors.ErrAccountNotFound):
		writeCustodyError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, custodyerrors.ErrInsufficientFunds):
		writeCustodyError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.Is(err, custodyerrors.ErrBalanceOverflow):
		writeCustodyError(w, http.StatusUnprocessableEntity, "balance_overflow", err.Error())
	case errors.Is(err, custodyerrors.ErrReferenceConflict):
		writeCustodyError(w, http.StatusConflict, "reference_conflict", err.Error())
	default:
		s.logger.Error("custody request failed",
			"event", "http_custody_request_failed",
			"module", moduleName,
			"layer", "platform",
			"error", err.Error(),
		)
		writeCustodyError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeCustodyError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, custodydto.ErrorResponse{Code: code, Message: message})
}
