package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

const defaultRolePermissionPrefix = "authz:role_permissions"

// RolePermissionCache stores flattened role permission sets in Redis. A miss
// is reported as repository.ErrNotFound; the caller falls back to the
// authoritative store and repopulates. Size is not tracked for a remote
// cache, only hit and miss counters.
type RolePermissionCache struct {
	client *red.Client
	prefix string
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRolePermissionCache wires Redis storage for role permission sets.
func NewRolePermissionCache(client *red.Client, prefix string) *RolePermissionCache {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = defaultRolePermissionPrefix
	}

	return &RolePermissionCache{client: client, prefix: trimmed}
}

func (c *RolePermissionCache) key(roleID string) string {
	return c.prefix + ":" + roleID
}

// Get retrieves the cached permission set for a role.
func (c *RolePermissionCache) Get(ctx context.Context, roleID string) (domain.PermissionSet, error) {
	data, err := c.client.Get(ctx, c.key(roleID)).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			c.misses.Add(1)
			return domain.PermissionSet{}, repository.ErrNotFound
		}
		return domain.PermissionSet{}, fmt.Errorf("redis get role permissions: %w", err)
	}

	var set domain.PermissionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.PermissionSet{}, fmt.Errorf("decode role permissions: %w", err)
	}

	c.hits.Add(1)
	return set, nil
}

// Set stores the permission set for a role with the supplied TTL.
func (c *RolePermissionCache) Set(ctx context.Context, roleID string, permissions domain.PermissionSet, ttl time.Duration) error {
	data, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("encode role permissions: %w", err)
	}

	if ttl < 0 {
		ttl = 0
	}

	if err := c.client.Set(ctx, c.key(roleID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set role permissions: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry for a role. Deleting an absent key is a
// no-op, so invalidation is idempotent.
func (c *RolePermissionCache) Invalidate(ctx context.Context, roleID string) error {
	if err := c.client.Del(ctx, c.key(roleID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate role permissions: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached role permission set.
func (c *RolePermissionCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis invalidate role permission key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan role permission keys: %w", err)
	}
	return nil
}

// Stats reports lookup counters accumulated by this process.
func (c *RolePermissionCache) Stats() port.CacheStats {
	return port.CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

var _ port.RolePermissionCache = (*RolePermissionCache)(nil)
