package port

import (
	"context"
	"time"

	"github.com/caldora/practice-authz/internal/core/domain"
)

// CacheStats summarizes cache efficiency for operational monitoring.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// HitRate returns the fraction of lookups served from cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// RolePermissionCache maps role id to its flattened permission set. The cache
// is strictly read-through: a miss is reported as repository.ErrNotFound and
// the caller repopulates from the authoritative store. Implementations must be
// safe for concurrent readers and writers, and a completed invalidation must
// be visible to every subsequent Get.
type RolePermissionCache interface {
	Get(ctx context.Context, roleID string) (domain.PermissionSet, error)
	Set(ctx context.Context, roleID string, permissions domain.PermissionSet, ttl time.Duration) error
	Invalidate(ctx context.Context, roleID string) error
	InvalidateAll(ctx context.Context) error
	Stats() CacheStats
}

// UserContextCache holds built user contexts keyed by user and current
// organization. Entries are invalidated whenever the user's grants or
// memberships change; role-level permission changes purge the whole cache
// because the affected user set is not tracked.
type UserContextCache interface {
	Get(ctx context.Context, userID string, organizationID *string) (*domain.UserContext, error)
	Set(ctx context.Context, userContext *domain.UserContext, ttl time.Duration) error
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
}
