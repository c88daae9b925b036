package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "commonpool/contexts/identity-access/authorization-service/application"
	"commonpool/contexts/identity-access/authorization-service/domain/entities"
	"commonpool/contexts/identity-access/authorization-service/ports"
)

const bootstrapActor = "system:bootstrap"

// SeedAdminsUseCase grants admin to configured subjects at start-up. A
// subject that already holds any role keeps it, so restarts never undo a
// later demotion.
type SeedAdminsUseCase struct {
	Repository  ports.Repository
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (u SeedAdminsUseCase) Execute(ctx context.Context, subjects []string) (int, error) {
	logger := application.ResolveLogger(u.Logger)
	now := time.Now().UTC()
	if u.Clock != nil {
		now = u.Clock.Now().UTC()
	}

	seeded := 0
	for _, raw := range subjects {
		subject := strings.TrimSpace(raw)
		if subject == "" {
			continue
		}
		auditID, err := u.IDGenerator.NewID(ctx)
		if err != nil {
			return seeded, err
		}
		created, err := u.Repository.SeedAssignment(ctx, entities.RoleAssignment{
			Subject:    subject,
			Role:       entities.RoleAdmin,
			AssignedBy: bootstrapActor,
			Reason:     "bootstrap admin",
			AssignedAt: now,
		}, entities.AuditEntry{
			AuditID:      auditID,
			Subject:      subject,
			PreviousRole: entities.RoleNone,
			NewRole:      entities.RoleAdmin,
			AssignedBy:   bootstrapActor,
			Reason:       "bootstrap admin",
			AssignedAt:   now,
		})
		if err != nil {
			logger.Error("bootstrap admin seed failed",
				"event", "authz_seed_admin_failed",
				"module", application.ModuleName,
				"layer", "application",
				"subject", subject,
				"error", err.Error(),
			)
			return seeded, err
		}
		if created {
			seeded++
		}
	}

	logger.Info("bootstrap admins seeded",
		"event", "authz_seed_admins_completed",
		"module", application.ModuleName,
		"layer", "application",
		"requested", len(subjects),
		"seeded", seeded,
	)
	return seeded, nil
}
