package entities

import "time"

// RoleAssignment is the current role of one subject. Subjects that were
// never assigned read as RoleNone with a zero AssignedAt.
type RoleAssignment struct {
	Subject    string    `json:"subject"`
	Role       Role      `json:"role"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AuditEntry records one role change, including changes to RoleNone.
type AuditEntry struct {
	AuditID      string    `json:"audit_id"`
	Subject      string    `json:"subject"`
	PreviousRole Role      `json:"previous_role"`
	NewRole      Role      `json:"new_role"`
	AssignedBy   string    `json:"assigned_by"`
	Reason       string    `json:"reason,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
}
