package port

import (
	"context"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// PermissionRepository manages the seeded permission catalog.
type PermissionRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Permission, error)
	List(ctx context.Context) ([]domain.Permission, error)
	// ListByRole returns the active permissions attached to a role; this is the
	// authoritative read the role-permission cache falls back to.
	ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error)
	// Seed upserts catalog entries idempotently and returns the number of rows written.
	Seed(ctx context.Context, permissions []domain.Permission) (int, error)
}
