package port

import "context"

// OwnershipResolver is implemented by resource services, which own the
// concrete notion of resource ownership used by own-scope checks. The engine
// itself stays resource-type-agnostic.
type OwnershipResolver interface {
	ResolveOwner(ctx context.Context, resource, resourceID string) (string, error)
}
