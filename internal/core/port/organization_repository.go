package port

import (
	"context"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// OrganizationRepository owns the tenancy tree. Hierarchy traversal happens at
// the store boundary; the engine only consumes resolved accessible sets and
// never walks raw parent pointers itself.
type OrganizationRepository interface {
	Create(ctx context.Context, organization domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	Deactivate(ctx context.Context, id string) error

	ListActiveMembershipsByUser(ctx context.Context, userID string) ([]domain.UserOrganization, error)
	// AccessibleSet resolves the given root organizations plus all of their
	// active descendants. A cycle in the tree is a data-integrity violation and
	// is reported as repository.ErrHierarchyCycle, never silently tolerated.
	AccessibleSet(ctx context.Context, rootIDs []string) ([]string, error)
	// Descendants resolves a single organization's subtree, excluding the root.
	Descendants(ctx context.Context, organizationID string) ([]string, error)
}
