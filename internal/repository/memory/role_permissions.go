package memory

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

const defaultRolePermissionEntries = 4096

// RolePermissionCache keeps flattened role permission sets in an in-process
// expirable LRU. It backs single-node deployments where Redis is not
// configured; the read-through contract is identical.
type RolePermissionCache struct {
	cache  *lru.LRU[string, domain.PermissionSet]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRolePermissionCache builds an LRU-backed cache. Entries expire after ttl
// regardless of the per-call TTL hint, which an in-process store cannot honor
// per entry.
func NewRolePermissionCache(maxEntries int, ttl time.Duration) *RolePermissionCache {
	if maxEntries <= 0 {
		maxEntries = defaultRolePermissionEntries
	}

	return &RolePermissionCache{
		cache: lru.NewLRU[string, domain.PermissionSet](maxEntries, nil, ttl),
	}
}

// Get retrieves the cached permission set for a role.
func (c *RolePermissionCache) Get(_ context.Context, roleID string) (domain.PermissionSet, error) {
	set, ok := c.cache.Get(roleID)
	if !ok {
		c.misses.Add(1)
		return domain.PermissionSet{}, repository.ErrNotFound
	}

	c.hits.Add(1)
	return set, nil
}

// Set stores the permission set for a role.
func (c *RolePermissionCache) Set(_ context.Context, roleID string, permissions domain.PermissionSet, _ time.Duration) error {
	c.cache.Add(roleID, permissions)
	return nil
}

// Invalidate drops the cached entry for a role. Removing an absent key is a
// no-op, so invalidation is idempotent.
func (c *RolePermissionCache) Invalidate(_ context.Context, roleID string) error {
	c.cache.Remove(roleID)
	return nil
}

// InvalidateAll drops every cached entry.
func (c *RolePermissionCache) InvalidateAll(_ context.Context) error {
	c.cache.Purge()
	return nil
}

// Stats reports lookup counters and the current entry count.
func (c *RolePermissionCache) Stats() port.CacheStats {
	return port.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.cache.Len(),
	}
}

var _ port.RolePermissionCache = (*RolePermissionCache)(nil)
