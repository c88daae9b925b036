package httpserver

import (
	"errors"
	"net/http"

	authzerrors "commonpool/contexts/identity-access/authorization-service/domain/errors"
	authzhttp "commonpool/contexts/identity-access/authorization-service/transport/http"
)

func (s *Server) registerAuthorizationRoutes() {
	s.mux.HandleFunc("PUT /api/authz/v1/roles/{subject}", s.handleAssignRole)
	s.mux.HandleFunc("GET /api/authz/v1/roles/{subject}", s.handleGetRole)
	s.mux.HandleFunc("GET /api/authz/v1/roles/{subject}/audit", s.handleListRoleAudit)
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req authzhttp.AssignRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.authorization.Handler.AssignRoleHandler(r.Context(), actorID, r.PathValue("subject"), req)
	if err != nil {
		s.writeAuthzDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	resp, err := s.authorization.Handler.GetRoleHandler(r.Context(), r.PathValue("subject"))
	if err != nil {
		s.writeAuthzDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRoleAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	resp, err := s.authorization.Handler.ListAuditHandler(r.Context(), r.PathValue("subject"), limit)
	if err != nil {
		s.writeAuthzDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeAuthzDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authzerrors.ErrForbidden):
		writeAuthzError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, authzerrors.ErrInvalidRole):
		writeAuthzError(w, http.StatusUnprocessableEntity, "invalid_role", err.Error())
	case errors.Is(err, authzerrors.ErrInvalidSubject),
		errors.Is(err, authzerrors.ErrInvalidActorID):
		writeAuthzError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("authorization request failed",
			"event", "http_authz_request_failed",
			"module", moduleName,
			"layer", "platform",
			"error", err.Error(),
		)
		writeAuthzError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeAuthzError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, authzhttp.ErrorResponse{Code: code, Message: message})
}
