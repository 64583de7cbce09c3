package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// CheckRequest defines the payload for a permission check.
type CheckRequest struct {
	Permission     string   `json:"permission"`
	Permissions    []string `json:"permissions,omitempty"`
	ResourceID     *string  `json:"resource_id,omitempty"`
	OrganizationID *string  `json:"organization_id,omitempty"`
}

// CheckResponse describes the outcome of a permission check.
type CheckResponse struct {
	Granted    bool   `json:"granted"`
	Permission string `json:"permission"`
	Scope      string `json:"scope,omitempty"`
	Reason     string `json:"reason"`
}

// ScopeResponse describes the widest data scope a caller holds for a resource/action pair.
type ScopeResponse struct {
	Denied          bool     `json:"denied"`
	Scope           string   `json:"scope,omitempty"`
	UserID          string   `json:"user_id,omitempty"`
	OrganizationIDs []string `json:"organization_ids,omitempty"`
}

// ContextResponse is the caller's materialized authorization context.
type ContextResponse struct {
	UserID                  string    `json:"user_id"`
	CurrentOrganizationID   *string   `json:"current_organization_id,omitempty"`
	Organizations           []string  `json:"organizations"`
	AccessibleOrganizations []string  `json:"accessible_organizations"`
	Permissions             []string  `json:"permissions"`
	IsSuperAdmin            bool      `json:"is_super_admin"`
	BuiltAt                 time.Time `json:"built_at"`
}

// RolePayload describes a role returned by the API.
type RolePayload struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	OrganizationID *string `json:"organization_id,omitempty"`
	IsSystemRole   bool    `json:"is_system_role"`
	Active         bool    `json:"active"`
}

// NewRolePayload maps a domain role onto its API representation.
func NewRolePayload(role domain.Role) RolePayload {
	return RolePayload{
		ID:             role.ID,
		Name:           role.Name,
		Description:    role.Description,
		OrganizationID: role.OrganizationID,
		IsSystemRole:   role.IsSystemRole,
		Active:         role.Active,
	}
}

// RoleCreateRequest defines the payload for creating a role.
type RoleCreateRequest struct {
	Name           string   `json:"name" binding:"required"`
	Description    *string  `json:"description,omitempty"`
	OrganizationID *string  `json:"organization_id,omitempty"`
	PermissionIDs  []string `json:"permission_ids,omitempty"`
}

// RolePermissionsRequest lists permission IDs to attach to or detach from a role.
type RolePermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

// AffectedResponse reports how many rows a mutation touched.
type AffectedResponse struct {
	Affected int `json:"affected"`
}

// RoleGrantRequest defines the payload for granting a role to a user.
type RoleGrantRequest struct {
	UserID         string     `json:"user_id" binding:"required"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// RoleRevokeRequest defines the payload for revoking a user's role grant.
type RoleRevokeRequest struct {
	UserID         string  `json:"user_id" binding:"required"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// PermissionPayload describes a catalog permission returned by the API.
type PermissionPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Resource    string  `json:"resource"`
	Action      string  `json:"action"`
	Scope       string  `json:"scope"`
	Description *string `json:"description,omitempty"`
	Active      bool    `json:"active"`
}

// NewPermissionPayload maps a domain permission onto its API representation.
func NewPermissionPayload(permission domain.Permission) PermissionPayload {
	return PermissionPayload{
		ID:          permission.ID,
		Name:        permission.Name,
		Resource:    permission.Resource,
		Action:      string(permission.Action),
		Scope:       string(permission.Scope),
		Description: permission.Description,
		Active:      permission.Active,
	}
}

// CatalogEntryPayload describes one permission to seed.
type CatalogEntryPayload struct {
	Resource    string  `json:"resource" binding:"required"`
	Action      string  `json:"action" binding:"required"`
	Scope       string  `json:"scope" binding:"required"`
	Description *string `json:"description,omitempty"`
}

// CatalogSeedRequest defines the payload for seeding the permission catalog.
type CatalogSeedRequest struct {
	Entries []CatalogEntryPayload `json:"entries" binding:"required"`
}

// CatalogSeedResponse reports the number of catalog rows written.
type CatalogSeedResponse struct {
	Written int `json:"written"`
}

// OrganizationPayload describes an organization returned by the API.
type OrganizationPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	Active   bool    `json:"active"`
}

// NewOrganizationPayload maps a domain organization onto its API representation.
func NewOrganizationPayload(organization domain.Organization) OrganizationPayload {
	return OrganizationPayload{
		ID:       organization.ID,
		Name:     organization.Name,
		ParentID: organization.ParentID,
		Active:   organization.Active,
	}
}

// OrganizationCreateRequest defines the payload for creating an organization.
type OrganizationCreateRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id,omitempty"`
}

// DescendantsResponse lists the IDs in an organization's subtree.
type DescendantsResponse struct {
	OrganizationID string   `json:"organization_id"`
	Descendants    []string `json:"descendants"`
}
