package domain

import (
	"strings"
	"time"
)

// SuperAdminRoleName is the reserved role name that grants unconditional access.
const SuperAdminRoleName = "super_admin"

// Role is a named bundle of permissions. A nil OrganizationID marks a
// system-wide role; otherwise the role belongs to a single organization.
type Role struct {
	ID             string
	Name           string
	Description    *string
	OrganizationID *string
	IsSystemRole   bool
	Active         bool
}

// IsSuperAdmin reports whether the role is the reserved system super-admin role.
func (r Role) IsSuperAdmin() bool {
	return r.IsSystemRole && r.Name == SuperAdminRoleName
}

// IsAdministrative reports whether the role name denotes an administrative role.
func (r Role) IsAdministrative() bool {
	return strings.Contains(strings.ToLower(r.Name), "admin")
}

// Organization is a node in the tenancy tree. The hierarchy must stay acyclic;
// a child's accessible set is itself plus its descendants.
type Organization struct {
	ID       string
	Name     string
	ParentID *string
	Active   bool
}

// UserOrganization is a membership edge between a user and an organization.
type UserOrganization struct {
	UserID         string
	OrganizationID string
	Active         bool
	JoinedAt       time.Time
}

// UserRole is a role grant. A grant carrying an organization id applies only
// within that organization's context; without one it is global for the user.
type UserRole struct {
	UserID         string
	RoleID         string
	OrganizationID *string
	GrantedBy      *string
	GrantedAt      time.Time
	ExpiresAt      *time.Time
	Active         bool
}

// Expired reports whether the grant lapsed before the supplied instant.
func (g UserRole) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}
