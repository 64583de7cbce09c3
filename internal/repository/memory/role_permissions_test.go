package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/repository"
)

func TestRolePermissionCache_SetAndGet(t *testing.T) {
	cache := NewRolePermissionCache(16, time.Minute)

	ctx := context.Background()
	set := domain.NewPermissionSet("dashboards:read:own", "dashboards:update:own")

	if err := cache.Set(ctx, "role-1", set, time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, err := cache.Get(ctx, "role-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !got.Equal(set) {
		t.Fatalf("expected %v, got %v", set.Names(), got.Names())
	}
}

func TestRolePermissionCache_MissIsNotFound(t *testing.T) {
	cache := NewRolePermissionCache(16, time.Minute)

	if _, err := cache.Get(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRolePermissionCache_InvalidateIsIdempotent(t *testing.T) {
	cache := NewRolePermissionCache(16, time.Minute)

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
	cache := NewRolePermissionCache(16, time.Minute)

	ctx := context.Background()
	for _, roleID := range []string{"role-1", "role-2"} {
		if err := cache.Set(ctx, roleID, domain.NewPermissionSet("dashboards:read:own"), time.Minute); err != nil {
			t.Fatalf("Set returned error: %v", err)
		}
	}

	if err := cache.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll returned error: %v", err)
	}

	if cache.Stats().Size != 0 {
		t.Fatalf("expected empty cache, got size %d", cache.Stats().Size)
	}
}

func TestRolePermissionCache_Stats(t *testing.T) {
	cache := NewRolePermissionCache(16, time.Minute)

	ctx := context.Background()
	if err := cache.Set(ctx, "role-1", domain.NewPermissionSet("dashboards:read:own"), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if _, err := cache.Get(ctx, "role-1"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	_, _ = cache.Get(ctx, "missing")

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.HitRate() != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %f", stats.HitRate())
	}
}
