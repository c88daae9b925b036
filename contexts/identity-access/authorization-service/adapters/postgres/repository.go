package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"commonpool/contexts/identity-access/authorization-service/domain/entities"
	"commonpool/contexts/identity-access/authorization-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type roleAssignmentModel struct {
	Subject    string    `gorm:"column:subject;primaryKey"`
	Role       string    `gorm:"column:role;not null"`
	AssignedBy string    `gorm:"column:assigned_by;not null"`
	Reason     string    `gorm:"column:reason"`
	AssignedAt time.Time `gorm:"column:assigned_at;not null"`
}

func (roleAssignmentModel) TableName() string { return "authz_role_assignments" }

type roleAuditModel struct {
	AuditID      string    `gorm:"column:audit_id;primaryKey"`
	Subject      string    `gorm:"column:subject;not null;index"`
	PreviousRole string    `gorm:"column:previous_role;not null"`
	NewRole      string    `gorm:"column:new_role;not null"`
	AssignedBy   string    `gorm:"column:assigned_by;not null"`
	Reason       string    `gorm:"column:reason"`
	AssignedAt   time.Time `gorm:"column:assigned_at;not null;index"`
}

func (roleAuditModel) TableName() string { return "authz_role_audit" }

// Repository persists the role table in PostgreSQL. Writes lock the subject
// row so the recorded previous role matches the one actually replaced.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&roleAssignmentModel{}, &roleAuditModel{})
}

func (r *Repository) GetAssignment(ctx context.Context, subject string) (entities.RoleAssignment, bool, error) {
	var row roleAssignmentModel
	err := r.db.WithContext(ctx).
		Where("subject = ?", strings.TrimSpace(subject)).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.RoleAssignment{}, false, nil
	}
	if err != nil {
		return entities.RoleAssignment{}, false, r.logError("authz_repo_get_assignment_failed", err, "subject", subject)
	}
	return assignmentFromModel(row), true, nil
}

func (r *Repository) SaveAssignment(
	ctx context.Context,
	assignment entities.RoleAssignment,
	audit entities.AuditEntry,
) (entities.AuditEntry, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current roleAssignmentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("subject = ?", assignment.Subject).
			First(&current).
			Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			audit.PreviousRole = entities.RoleNone
		case err != nil:
			return err
		default:
			audit.PreviousRole = entities.Role(current.Role)
		}

		row := assignmentToModel(assignment)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "assigned_by", "reason", "assigned_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		auditRow := auditToModel(audit)
		return tx.Create(&auditRow).Error
	})
	if err != nil {
		return entities.AuditEntry{}, r.logError("authz_repo_save_assignment_failed", err, "subject", assignment.Subject)
	}
	return audit, nil
}

func (r *Repository) SeedAssignment(
	ctx context.Context,
	assignment entities.RoleAssignment,
	audit entities.AuditEntry,
) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := assignmentToModel(assignment)
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		created = true
		auditRow := auditToModel(audit)
		return tx.Create(&auditRow).Error
	})
	if err != nil {
		return false, r.logError("authz_repo_seed_assignment_failed", err, "subject", assignment.Subject)
	}
	return created, nil
}

func (r *Repository) ListAudit(ctx context.Context, subject string, limit int) ([]entities.AuditEntry, error) {
	var rows []roleAuditModel
	err := r.db.WithContext(ctx).
		Where("subject = ?", strings.TrimSpace(subject)).
		Order("assigned_at DESC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("authz_repo_list_audit_failed", err, "subject", subject)
	}
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.AuditEntry{
			AuditID:      row.AuditID,
			Subject:      row.Subject,
			PreviousRole: entities.Role(row.PreviousRole),
			NewRole:      entities.Role(row.NewRole),
			AssignedBy:   row.AssignedBy,
			Reason:       row.Reason,
			AssignedAt:   row.AssignedAt.UTC(),
		})
	}
	return items, nil
}

func assignmentToModel(assignment entities.RoleAssignment) roleAssignmentModel {
	return roleAssignmentModel{
		Subject:    assignment.Subject,
		Role:       string(assignment.Role),
		AssignedBy: assignment.AssignedBy,
		Reason:     assignment.Reason,
		AssignedAt: assignment.AssignedAt.UTC(),
	}
}

func assignmentFromModel(row roleAssignmentModel) entities.RoleAssignment {
	return entities.RoleAssignment{
		Subject:    row.Subject,
		Role:       entities.Role(row.Role),
		AssignedBy: row.AssignedBy,
		Reason:     row.Reason,
		AssignedAt: row.AssignedAt.UTC(),
	}
}

func auditToModel(audit entities.AuditEntry) roleAuditModel {
	return roleAuditModel{
		AuditID:      audit.AuditID,
		Subject:      audit.Subject,
		PreviousRole: string(audit.PreviousRole),
		NewRole:      string(audit.NewRole),
		AssignedBy:   audit.AssignedBy,
		Reason:       audit.Reason,
		AssignedAt:   audit.AssignedAt.UTC(),
	}
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "identity-access/authorization-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("authorization repository operation failed", fields...)
	return err
}

var _ ports.Repository = (*Repository)(nil)
