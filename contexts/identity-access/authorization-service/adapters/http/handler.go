package httpadapter

import (
	"context"
	"log/slog"

	application "commonpool/contexts/identity-access/authorization-service/application"
	"commonpool/contexts/identity-access/authorization-service/application/commands"
	"commonpool/contexts/identity-access/authorization-service/application/queries"
	"commonpool/contexts/identity-access/authorization-service/transport/http"
)

// Handler maps HTTP DTOs to application commands/queries.
type Handler struct {
	AssignRole commands.AssignRoleUseCase
	Roles      queries.RoleQueryUseCase
	Logger     *slog.Logger
}

// AssignRoleHandler godoc
// @Summary Assign a role
// @Description Overwrites the subject's role. Requires the admin role; role "none" clears the subject.
// @Tags authorization
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Admin address"
// @Param subject path string true "Subject address"
// @Param request body httptransport.AssignRoleRequest true "Role"
// @Success 200 {object} httptransport.AssignRoleResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 403 {object} httptransport.ErrorResponse
// @Router /api/authz/v1/roles/{subject} [put]
func (h Handler) AssignRoleHandler(
	ctx context.Context,
	actorID string,
	subject string,
	request httptransport.AssignRoleRequest,
) (httptransport.AssignRoleResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("http role assignment received",
		"event", "authz_http_assign_received",
		"module", application.ModuleName,
		"layer", "transport",
		"actor_id", actorID,
		"subject", subject,
		"role", request.Role,
	)

	result, err := h.AssignRole.Execute(ctx, commands.AssignRoleCommand{
		ActorID: actorID,
		Subject: subject,
		Role:    request.Role,
		Reason:  request.Reason,
	})
	if err != nil {
		return httptransport.AssignRoleResponse{}, err
	}
	return httptransport.AssignRoleResponse{
		Subject:      result.Assignment.Subject,
		Role:         string(result.Assignment.Role),
		PreviousRole: string(result.PreviousRole),
		AssignedBy:   result.Assignment.AssignedBy,
		AssignedAt:   result.Assignment.AssignedAt,
		AuditID:      result.AuditID,
	}, nil
}

// GetRoleHandler godoc
// @Summary Get a subject's role
// @Tags authorization
// @Produce json
// @Param subject path string true "Subject address"
// @Success 200 {object} httptransport.RoleResponse
// @Router /api/authz/v1/roles/{subject} [get]
func (h Handler) GetRoleHandler(ctx context.Context, subject string) (httptransport.RoleResponse, error) {
	assignment, err := h.Roles.GetRole(ctx, subject)
	if err != nil {
		return httptransport.RoleResponse{}, err
	}
	resp := httptransport.RoleResponse{
		Subject:    assignment.Subject,
		Role:       string(assignment.Role),
		AssignedBy: assignment.AssignedBy,
	}
	if !assignment.AssignedAt.IsZero() {
		at := assignment.AssignedAt
		resp.AssignedAt = &at
	}
	return resp, nil
}

// ListAuditHandler godoc
// @Summary List role changes for a subject
// @Tags authorization
// @Produce json
// @Param subject path string true "Subject address"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} httptransport.ListAuditResponse
// @Router /api/authz/v1/roles/{subject}/audit [get]
func (h Handler) ListAuditHandler(ctx context.Context, subject string, limit int) (httptransport.ListAuditResponse, error) {
	entries, err := h.Roles.ListAudit(ctx, subject, limit)
	if err != nil {
		return httptransport.ListAuditResponse{}, err
	}
	resp := httptransport.ListAuditResponse{
		Subject: subject,
		Items:   make([]httptransport.AuditEntryResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Items = append(resp.Items, httptransport.AuditEntryResponse{
			AuditID:      entry.AuditID,
			PreviousRole: string(entry.PreviousRole),
			NewRole:      string(entry.NewRole),
			AssignedBy:   entry.AssignedBy,
			Reason:       entry.Reason,
			AssignedAt:   entry.AssignedAt,
		})
	}
	return resp, nil
}
