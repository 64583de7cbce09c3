package domain

import "time"

// RoleGrant pairs a resolved role with the organization (if any) scoping the grant.
type RoleGrant struct {
	Role           Role
	OrganizationID *string
	ExpiresAt      *time.Time
}

// Expired reports whether the grant lapsed before the supplied instant.
func (g RoleGrant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// UserContext is the materialized snapshot used for every authorization
// decision. Contexts are immutable once built and never shared across
// requests; a context is either fully built or the request fails closed.
type UserContext struct {
	UserID                  string
	CurrentOrganizationID   *string
	Organizations           []string
	AccessibleOrganizations []string
	Grants                  []RoleGrant
	Permissions             PermissionSet
	IsSuperAdmin            bool
	OrganizationAdminFor    []string
	BuiltAt                 time.Time
}

// CanAccessOrganization reports whether the organization is in the caller's accessible set.
func (c *UserContext) CanAccessOrganization(organizationID string) bool {
	for _, id := range c.AccessibleOrganizations {
		if id == organizationID {
			return true
		}
	}
	return false
}

// AdministersOrganization reports whether the caller holds an administrative role for the organization.
func (c *UserContext) AdministersOrganization(organizationID string) bool {
	for _, id := range c.OrganizationAdminFor {
		if id == organizationID {
			return true
		}
	}
	return false
}

// DecisionReason classifies the outcome of a permission check.
type DecisionReason string

const (
	// ReasonSuperAdmin marks grants short-circuited by the reserved super-admin role.
	ReasonSuperAdmin DecisionReason = "super_admin"
	// ReasonGranted marks grants justified by an explicit catalog permission.
	ReasonGranted DecisionReason = "granted"
	// ReasonPermissionDenied is the single denial reason. Denials never reveal
	// which sub-check failed.
	ReasonPermissionDenied DecisionReason = "permission_denied"
)

// AccessDecision is the structured result of a permission check. Denial is an
// ordinary outcome, not an error.
type AccessDecision struct {
	Granted    bool
	Permission string
	Scope      Scope
	Reason     DecisionReason
}

// Deny is the uniform denial decision for the evaluated permission.
func Deny(permission string) AccessDecision {
	return AccessDecision{Granted: false, Permission: permission, Reason: ReasonPermissionDenied}
}

// AccessScope pre-resolves the data scope a caller qualifies for on a
// resource/action pair, for use when shaping list queries.
type AccessScope struct {
	Scope           Scope
	UserID          string
	OrganizationIDs []string
	Denied          bool
}

// Filter translates the resolved scope into a data-access predicate.
func (s AccessScope) Filter() QueryFilter {
	switch {
	case s.Denied:
		return QueryFilter{DenyAll: true}
	case s.Scope == ScopeAll:
		return QueryFilter{}
	case s.Scope == ScopeOrganization:
		if len(s.OrganizationIDs) == 0 {
			return QueryFilter{DenyAll: true}
		}
		return QueryFilter{OrganizationIDs: s.OrganizationIDs}
	case s.Scope == ScopeOwn:
		return QueryFilter{OwnerID: s.UserID}
	default:
		return QueryFilter{DenyAll: true}
	}
}

// QueryFilter is the predicate resource services apply to list and read
// queries. The zero value is unrestricted.
type QueryFilter struct {
	DenyAll         bool
	OwnerID         string
	OrganizationIDs []string
}

// Unrestricted reports whether the filter imposes no constraint.
func (f QueryFilter) Unrestricted() bool {
	return !f.DenyAll && f.OwnerID == "" && len(f.OrganizationIDs) == 0
}

// IntersectOrganizations narrows the filter to the requested organizations.
// An explicit caller filter is intersected with the scope-derived predicate,
// never substituted for it: requesting organizations outside the scope yields
// an empty result, not widened access.
func (f QueryFilter) IntersectOrganizations(requested []string) QueryFilter {
	if f.DenyAll || len(requested) == 0 {
		return f
	}

	if len(f.OrganizationIDs) == 0 {
		// Unrestricted or owner-scoped filters accept the caller's narrowing as-is.
		f.OrganizationIDs = append([]string(nil), requested...)
		return f
	}

	allowed := make(map[string]struct{}, len(f.OrganizationIDs))
	for _, id := range f.OrganizationIDs {
		allowed[id] = struct{}{}
	}

	intersection := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := allowed[id]; ok {
			intersection = append(intersection, id)
		}
	}

	if len(intersection) == 0 {
		return QueryFilter{DenyAll: true}
	}

	f.OrganizationIDs = intersection
	return f
}
