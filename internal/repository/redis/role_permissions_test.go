package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRolePermissionCache_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewRolePermissionCache(client, "authz:role_permissions")

	ctx := context.Background()
	ttl := 5 * time.Minute
	set := domain.NewPermissionSet("dashboards:read:own", "dashboards:update:own")

	if err := cache.Set(ctx, "role-1", set, ttl); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := cache.Get(ctx, "role-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.Equal(set) {
		t.Fatalf("expected %v, got %v", set.Names(), got.Names())
	}

	remaining := server.TTL("authz:role_permissions:role-1")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestRolePermissionCache_MissIsNotFound(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewRolePermissionCache(client, "")

	if _, err := cache.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stats := cache.Stats()
	if stats.Misses != 1 || stats.Hits != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRolePermissionCache_InvalidateIsIdempotent(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewRolePermissionCache(client, "authz:role_permissions")

	ctx := context.Background()
	if err := cache.Set(ctx, "role-1", domain.NewPermissionSet("dashboards:read:own"), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if err := cache.Invalidate(ctx, "role-1"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}
	if err := cache.Invalidate(ctx, "role-1"); err != nil {
		t.Fatalf("second Invalidate returned error: %v", err)
	}

	if _, err := cache.Get(ctx, "role-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after invalidation, got %v", err)
	}
}

func TestRolePermissionCache_InvalidateAll(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewRolePermissionCache(client, "authz:role_permissions")

	ctx := context.Background()
	for _, roleID := range []string{"role-1", "role-2", "role-3"} {
		if err := cache.Set(ctx, roleID, domain.NewPermissionSet("dashboards:read:own"), time.Minute); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
	}
	// An unrelated key must survive the purge.
	_ = server.Set("other:key", "value")

	if err := cache.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}

	for _, roleID := range []string{"role-1", "role-2", "role-3"} {
		if _, err := cache.Get(ctx, roleID); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected %s to be purged, got %v", roleID, err)
		}
	}
	if !server.Exists("other:key") {
		t.Fatalf("unrelated key must not be purged")
	}
}

func TestRolePermissionCache_Stats(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewRolePermissionCache(client, "")

	ctx := context.Background()
	if err := cache.Set(ctx, "role-1", domain.NewPermissionSet("dashboards:read:own"), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if _, err := cache.Get(ctx, "role-1"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	_, _ = cache.Get(ctx, "missing")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.HitRate() != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %f", stats.HitRate())
	}
}
