package domain

import "time"

// RoleChange enumerates the mutations that require cache invalidation for a role.
type RoleChange string

const (
	RoleChangePermissionsAssigned RoleChange = "permissions_assigned"
	RoleChangePermissionsRevoked  RoleChange = "permissions_revoked"
	RoleChangeDeleted             RoleChange = "deleted"
	RoleChangeDeactivated         RoleChange = "deactivated"
	RoleChangeCatalogSeeded       RoleChange = "catalog_seeded"
)

// RoleChangedEvent notifies peer instances that a role's permission set
// changed so their local caches converge.
type RoleChangedEvent struct {
	EventID    string            `json:"event_id"`
	RoleID     string            `json:"role_id"`
	Change     RoleChange        `json:"change"`
	ChangedBy  string            `json:"changed_by,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AccessChange enumerates mutations to a user's role or organization membership.
type AccessChange string

const (
	AccessChangeRoleGranted    AccessChange = "role_granted"
	AccessChangeRoleRevoked    AccessChange = "role_revoked"
	AccessChangeMembershipEdit AccessChange = "membership_edit"
)

// UserAccessChangedEvent invalidates cached user contexts across instances.
type UserAccessChangedEvent struct {
	EventID        string       `json:"event_id"`
	UserID         string       `json:"user_id"`
	RoleID         string       `json:"role_id,omitempty"`
	OrganizationID *string      `json:"organization_id,omitempty"`
	Change         AccessChange `json:"change"`
	ChangedBy      string       `json:"changed_by,omitempty"`
	OccurredAt     time.Time    `json:"occurred_at"`
}

// AuditRecord captures one permission decision for forensic review.
type AuditRecord struct {
	Actor          string         `json:"actor"`
	Permission     string         `json:"permission"`
	ResourceID     *string        `json:"resource_id,omitempty"`
	OrganizationID *string        `json:"organization_id,omitempty"`
	Granted        bool           `json:"granted"`
	Scope          Scope          `json:"scope,omitempty"`
	Reason         DecisionReason `json:"reason,omitempty"`
	DecidedAt      time.Time      `json:"decided_at"`
}
