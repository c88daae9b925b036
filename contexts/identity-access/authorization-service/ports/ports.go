package ports

import (
	"context"
	"time"

	"commonpool/contexts/identity-access/authorization-service/domain/entities"
)

// Clock abstracts current time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID generation for audit rows.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// Repository stores the role table and its audit trail.
type Repository interface {
	// GetAssignment returns found=false for subjects never assigned.
	GetAssignment(ctx context.Context, subject string) (entities.RoleAssignment, bool, error)
	// SaveAssignment overwrites the subject's role and appends audit in one
	// atomic step. The returned entry carries the role that was replaced.
	SaveAssignment(ctx context.Context, assignment entities.RoleAssignment, audit entities.AuditEntry) (entities.AuditEntry, error)
	// SeedAssignment sets the role only when the subject was never assigned.
	SeedAssignment(ctx context.Context, assignment entities.RoleAssignment, audit entities.AuditEntry) (bool, error)
	ListAudit(ctx context.Context, subject string, limit int) ([]entities.AuditEntry, error)
}
