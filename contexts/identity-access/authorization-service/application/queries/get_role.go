package queries

import (
	"context"
	"log/slog"
	"strings"

	application "commonpool/contexts/identity-access/authorization-service/application"
	"commonpool/contexts/identity-access/authorization-service/domain/entities"
	domainerrors "commonpool/contexts/identity-access/authorization-service/domain/errors"
	"commonpool/contexts/identity-access/authorization-service/ports"
)

// RoleQueryUseCase answers role lookups for the HTTP surface and for other
// modules through the runtime bridge.
type RoleQueryUseCase struct {
	Repository ports.Repository
	Logger     *slog.Logger
}

// GetRole returns RoleNone for subjects never assigned.
func (u RoleQueryUseCase) GetRole(ctx context.Context, subject string) (entities.RoleAssignment, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return entities.RoleAssignment{}, domainerrors.ErrInvalidSubject
	}
	assignment, found, err := u.Repository.GetAssignment(ctx, subject)
	if err != nil {
		application.ResolveLogger(u.Logger).Error("role lookup failed",
			"event", "authz_role_lookup_failed",
			"module", application.ModuleName,
			"layer", "application",
			"subject", subject,
			"error", err.Error(),
		)
		return entities.RoleAssignment{}, err
	}
	if !found {
		return entities.RoleAssignment{Subject: subject, Role: entities.RoleNone}, nil
	}
	return assignment, nil
}

// HasRole reports an exact match. Admin does not imply verifier.
func (u RoleQueryUseCase) HasRole(ctx context.Context, subject string, role entities.Role) (bool, error) {
	if strings.TrimSpace(subject) == "" {
		return false, nil
	}
	assignment, err := u.GetRole(ctx, subject)
	if err != nil {
		return false, err
	}
	return assignment.Role == role && role != entities.RoleNone, nil
}

func (u RoleQueryUseCase) ListAudit(ctx context.Context, subject string, limit int) ([]entities.AuditEntry, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, domainerrors.ErrInvalidSubject
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.Repository.ListAudit(ctx, subject, limit)
}
