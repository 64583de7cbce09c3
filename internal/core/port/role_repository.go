package port

import (
	"context"
	"time"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// RoleRepository handles role storage and role grant edges.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	// List returns roles restricted by the supplied data-scope filter; the
	// zero filter is unrestricted.
	List(ctx context.Context, filter domain.QueryFilter) ([]domain.Role, error)
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error

	AssignPermissions(ctx context.Context, roleID string, permissionIDs []string) (int, error)
	RevokePermissions(ctx context.Context, roleID string, permissionIDs []string) (int, error)

	GrantToUser(ctx context.Context, grant domain.UserRole) error
	RevokeFromUser(ctx context.Context, userID, roleID string, organizationID *string) error
	// ListActiveGrantsByUser returns active, non-expired grants joined to their
	// roles and scoping organizations.
	ListActiveGrantsByUser(ctx context.Context, userID string, now time.Time) ([]domain.RoleGrant, error)
}
