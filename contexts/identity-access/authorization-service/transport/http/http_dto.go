package httptransport

import "time"

// ErrorResponse is the JSON body for every authorization error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AssignRoleRequest is the body for PUT /api/authz/v1/roles/{subject}.
// Role is one of admin, verifier or none.
type AssignRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason,omitempty"`
}

type AssignRoleResponse struct {
	Subject      string    `json:"subject"`
	Role         string    `json:"role"`
	PreviousRole string    `json:"previous_role"`
	AssignedBy   string    `json:"assigned_by"`
	AssignedAt   time.Time `json:"assigned_at"`
	AuditID      string    `json:"audit_id"`
}

type RoleResponse struct {
	Subject    string     `json:"subject"`
	Role       string     `json:"role"`
	AssignedBy string     `json:"assigned_by,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
}

type AuditEntryResponse struct {
	AuditID      string    `json:"audit_id"`
	PreviousRole string    `json:"previous_role"`
	NewRole      string    `json:"new_role"`
	AssignedBy   string    `json:"assigned_by"`
	Reason       string    `json:"reason,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
}

type ListAuditResponse struct {
	Subject string               `json:"subject"`
	Items   []AuditEntryResponse `json:"items"`
}
