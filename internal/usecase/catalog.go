package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
)

// CatalogEntry describes one permission to seed.
type CatalogEntry struct {
	Resource    string
	Action      string
	Scope       string
	Description *string
}

// CatalogService seeds the permission catalog. Catalog entries are immutable
// at runtime; seeding is the only write path and is idempotent.
type CatalogService struct {
	perms  port.PermissionRepository
	cache  port.RolePermissionCache
	events port.EventPublisher
	logger *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(perms port.PermissionRepository, cache port.RolePermissionCache, events port.EventPublisher, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{perms: perms, cache: cache, events: events, logger: logger}
}

// Seed upserts catalog entries and bulk-invalidates the role-permission cache
// afterwards, since a seed can change any role's effective set.
func (s *CatalogService) Seed(ctx context.Context, entries []CatalogEntry) (int, error) {
	permissions := make([]domain.Permission, 0, len(entries))
	for _, entry := range entries {
		action, err := domain.ParseAction(entry.Action)
		if err != nil {
			return 0, err
		}
		scope, err := domain.ParseScope(entry.Scope)
		if err != nil {
			return 0, err
		}
		if _, err := domain.ParsePermissionName(fmt.Sprintf("%s:%s:%s", entry.Resource, action, scope)); err != nil {
			return 0, err
		}

		permission := domain.NewPermission(uuid.NewString(), entry.Resource, action, scope)
		if entry.Description != nil {
			permission.Description = entry.Description
		}
		permissions = append(permissions, permission)
	}

	written, err := s.perms.Seed(ctx, permissions)
	if err != nil {
		return 0, fmt.Errorf("seed permission catalog: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			return written, fmt.Errorf("invalidate role permission cache: %w", err)
		}
	}

	if s.events != nil {
		event := domain.RoleChangedEvent{
			EventID:    uuid.NewString(),
			Change:     domain.RoleChangeCatalogSeeded,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.events.PublishRoleChanged(ctx, event); err != nil {
			s.logger.Warn("publish catalog seeded event failed", zap.Error(err))
		}
	}

	s.logger.Info("permission catalog seeded", zap.Int("written", written), zap.Int("entries", len(entries)))
	return written, nil
}

// ListCatalog returns every catalog entry.
func (s *CatalogService) ListCatalog(ctx context.Context) ([]domain.Permission, error) {
	permissions, err := s.perms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permission catalog: %w", err)
	}
	return permissions, nil
}
