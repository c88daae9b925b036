package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"commonpool/contexts/identity-access/authorization-service/domain/entities"
	"commonpool/contexts/identity-access/authorization-service/ports"

	"github.com/google/uuid"
)

// Store is an in-memory adapter implementing the role table ports.
// It is intended for tests and local development wiring.
type Store struct {
	mu sync.RWMutex

	assignments map[string]entities.RoleAssignment
	audit       []entities.AuditEntry
}

func NewStore() *Store {
	return &Store{
		assignments: make(map[string]entities.RoleAssignment),
		audit:       make([]entities.AuditEntry, 0),
	}
}

// SetRole writes a role directly, bypassing the admin check. Test helper.
func (s *Store) SetRole(subject string, role entities.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[subject] = entities.RoleAssignment{
		Subject:    subject,
		Role:       role,
		AssignedBy: "test",
		AssignedAt: time.Now().UTC(),
	}
}

func (s *Store) GetAssignment(_ context.Context, subject string) (entities.RoleAssignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignment, ok := s.assignments[strings.TrimSpace(subject)]
	return assignment, ok, nil
}

func (s *Store) SaveAssignment(
	_ context.Context,
	assignment entities.RoleAssignment,
	audit entities.AuditEntry,
) (entities.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	audit.PreviousRole = entities.RoleNone
	if current, ok := s.assignments[assignment.Subject]; ok {
		audit.PreviousRole = current.Role
	}
	s.assignments[assignment.Subject] = assignment
	s.audit = append(s.audit, audit)
	return audit, nil
}

func (s *Store) SeedAssignment(
	_ context.Context,
	assignment entities.RoleAssignment,
	audit entities.AuditEntry,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[assignment.Subject]; ok {
		return false, nil
	}
	s.assignments[assignment.Subject] = assignment
	s.audit = append(s.audit, audit)
	return true, nil
}

// ListAudit returns the newest entries for subject first.
func (s *Store) ListAudit(_ context.Context, subject string, limit int) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject = strings.TrimSpace(subject)
	items := make([]entities.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0 && len(items) < limit; i-- {
		if s.audit[i].Subject == subject {
			items = append(items, s.audit[i])
		}
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.Repository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
