// Package principal models user accounts and resolves them from Postgres.
package principal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role is the permission tier of a principal.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalises s into a known Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("principal: unknown role %q", s)
	}
}

// HasAccess reports whether role may pass a check that allows the given
// roles. ADMIN passes every check.
func HasAccess(role Role, allowed []Role) bool {
	if role == RoleAdmin {
		return true
	}
	return slices.Contains(allowed, role)
}

// Principal is an account. Accounts are never hard-deleted; DeletedAt marks
// deactivation.
type Principal struct {
	ID           int64
	LoginName    string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	DeletedAt    *time.Time
}

// IsActive reports whether the principal has not been deactivated.
func (p *Principal) IsActive() bool {
	return p != nil && p.DeletedAt == nil
}

// IsActive is the function form of (*Principal).IsActive.
func IsActive(p *Principal) bool {
	return p.IsActive()
}
