package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "commonpool/contexts/identity-access/authorization-service/application"
	"commonpool/contexts/identity-access/authorization-service/domain/entities"
	domainerrors "commonpool/contexts/identity-access/authorization-service/domain/errors"
	"commonpool/contexts/identity-access/authorization-service/ports"
)

// AssignRoleCommand contains transport-agnostic input for a role change.
type AssignRoleCommand struct {
	ActorID string
	Subject string
	Role    string
	Reason  string
}

// AssignRoleResult carries the stored assignment and the role it replaced.
type AssignRoleResult struct {
	Assignment   entities.RoleAssignment
	PreviousRole entities.Role
	AuditID      string
}

// AssignRoleUseCase overwrites a subject's role. Only admins may assign,
// and assigning RoleNone clears the subject.
type AssignRoleUseCase struct {
	Repository  ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u AssignRoleUseCase) Execute(ctx context.Context, cmd AssignRoleCommand) (AssignRoleResult, error) {
	logger := application.ResolveLogger(u.Logger)
	actorID := strings.TrimSpace(cmd.ActorID)
	subject := strings.TrimSpace(cmd.Subject)
	if actorID == "" {
		return AssignRoleResult{}, domainerrors.ErrInvalidActorID
	}
	if subject == "" {
		return AssignRoleResult{}, domainerrors.ErrInvalidSubject
	}
	role, err := entities.ParseRole(cmd.Role)
	if err != nil {
		return AssignRoleResult{}, err
	}

	actor, found, err := u.Repository.GetAssignment(ctx, actorID)
	if err != nil {
		logger.Error("assign role actor lookup failed",
			"event", "authz_assign_role_actor_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"actor_id", actorID,
			"error", err.Error(),
		)
		return AssignRoleResult{}, err
	}
	if !found || actor.Role != entities.RoleAdmin {
		logger.Warn("assign role forbidden",
			"event", "authz_assign_role_forbidden",
			"module", application.ModuleName,
			"layer", "application",
			"actor_id", actorID,
			"subject", subject,
			"role", string(role),
		)
		return AssignRoleResult{}, domainerrors.ErrForbidden
	}

	auditID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return AssignRoleResult{}, err
	}
	now := u.now()
	assignment := entities.RoleAssignment{
		Subject:    subject,
		Role:       role,
		AssignedBy: actorID,
		Reason:     strings.TrimSpace(cmd.Reason),
		AssignedAt: now,
	}
	audit, err := u.Repository.SaveAssignment(ctx, assignment, entities.AuditEntry{
		AuditID:    auditID,
		Subject:    subject,
		NewRole:    role,
		AssignedBy: actorID,
		Reason:     assignment.Reason,
		AssignedAt: now,
	})
	if err != nil {
		logger.Error("assign role write failed",
			"event", "authz_assign_role_write_failed",
			"module", application.ModuleName,
			"layer", "application",
			"actor_id", actorID,
			"subject", subject,
			"role", string(role),
			"error", err.Error(),
		)
		return AssignRoleResult{}, err
	}

	logger.Info("role assigned",
		"event", "authz_role_assigned",
		"module", application.ModuleName,
		"layer", "application",
		"actor_id", actorID,
		"subject", subject,
		"previous_role", string(audit.PreviousRole),
		"role", string(role),
		"audit_id", audit.AuditID,
	)
	return AssignRoleResult{
		Assignment:   assignment,
		PreviousRole: audit.PreviousRole,
		AuditID:      audit.AuditID,
	}, nil
}

func (u AssignRoleUseCase) now() time.Time {
	if u.Clock != nil {
		return u.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
