package entities

import (
	"strings"

	domainerrors "commonpool/contexts/identity-access/authorization-service/domain/errors"
)

// Role is the single privilege a subject holds.
type Role string

const (
	RoleNone     Role = "none"
	RoleVerifier Role = "verifier"
	RoleAdmin    Role = "admin"
)

// ParseRole accepts the wire spelling of a role. An empty value reads as none.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RoleNone:
		return RoleNone, nil
	case RoleVerifier:
		return RoleVerifier, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", domainerrors.ErrInvalidRole
	}
}
