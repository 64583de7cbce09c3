package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

var (
	// ErrRoleExists indicates a role with the provided name already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleNotFound indicates the role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrReservedRoleName indicates an attempt to create or rename a role to a reserved name.
	ErrReservedRoleName = errors.New("role name is reserved")
	// ErrGrantExpiryInPast indicates the requested grant expiry is not in the future.
	ErrGrantExpiryInPast = errors.New("grant expiry must be in the future")
)

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name           string
	Description    *string
	OrganizationID *string
	PermissionIDs  []string
}

// GrantRoleInput captures the payload for granting a role to a user.
type GrantRoleInput struct {
	UserID         string
	RoleID         string
	OrganizationID *string
	GrantedBy      string
	ExpiresAt      *time.Time
}

// RoleService manages roles, their permission sets, and user grants. Every
// mutation invalidates the affected cache entries synchronously before it is
// reported complete, so a revoked permission is never honored from cache.
type RoleService struct {
	roles    port.RoleRepository
	perms    port.PermissionRepository
	users    port.UserRepository
	cache    port.RolePermissionCache
	contexts *ContextService
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(
	roles port.RoleRepository,
	perms port.PermissionRepository,
	users port.UserRepository,
	cache port.RolePermissionCache,
	contexts *ContextService,
	events port.EventPublisher,
	logger *zap.Logger,
) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		roles:    roles,
		perms:    perms,
		users:    users,
		cache:    cache,
		contexts: contexts,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock for deterministic testing.
func (s *RoleService) WithClock(clock func() time.Time) *RoleService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// ListRoles returns the roles visible under the caller's data scope. Roles
// are not owned resources, so an owner-scoped filter exposes nothing.
func (s *RoleService) ListRoles(ctx context.Context, filter domain.QueryFilter) ([]domain.Role, error) {
	if filter.DenyAll || filter.OwnerID != "" {
		return []domain.Role{}, nil
	}
	return s.roles.List(ctx, filter)
}

// CreateRole provisions a new role and optionally seeds its permission set.
func (s *RoleService) CreateRole(ctx context.Context, actorID string, input CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if name == domain.SuperAdminRoleName {
		return nil, ErrReservedRoleName
	}

	if existing, err := s.roles.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrRoleExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup role by name: %w", err)
	}

	role := domain.Role{
		ID:             uuid.NewString(),
		Name:           name,
		OrganizationID: input.OrganizationID,
		Active:         true,
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed != "" {
			role.Description = &trimmed
		}
	}

	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	if len(input.PermissionIDs) > 0 {
		if _, err := s.roles.AssignPermissions(ctx, role.ID, input.PermissionIDs); err != nil {
			return nil, fmt.Errorf("seed role permissions: %w", err)
		}
	}

	return &role, nil
}

// AssignPermissions attaches permissions to a role and invalidates its cache
// entry before returning.
func (s *RoleService) AssignPermissions(ctx context.Context, actorID, roleID string, permissionIDs []string) (int, error) {
	if err := s.ensureRole(ctx, roleID); err != nil {
		return 0, err
	}

	assigned, err := s.roles.AssignPermissions(ctx, roleID, permissionIDs)
	if err != nil {
		return 0, fmt.Errorf("assign permissions: %w", err)
	}

	if err := s.invalidateRole(ctx, roleID); err != nil {
		return assigned, err
	}

	s.publishRoleChanged(ctx, roleID, domain.RoleChangePermissionsAssigned, actorID)
	return assigned, nil
}

// RevokePermissions detaches permissions from a role and invalidates its cache
// entry before returning, closing the stale-grant window.
func (s *RoleService) RevokePermissions(ctx context.Context, actorID, roleID string, permissionIDs []string) (int, error) {
	if err := s.ensureRole(ctx, roleID); err != nil {
		return 0, err
	}

	revoked, err := s.roles.RevokePermissions(ctx, roleID, permissionIDs)
	if err != nil {
		return 0, fmt.Errorf("revoke permissions: %w", err)
	}

	if err := s.invalidateRole(ctx, roleID); err != nil {
		return revoked, err
	}

	s.publishRoleChanged(ctx, roleID, domain.RoleChangePermissionsRevoked, actorID)
	return revoked, nil
}

// DeleteRole removes a role entirely, invalidating its cache entry.
func (s *RoleService) DeleteRole(ctx context.Context, actorID, roleID string) error {
	if err := s.roles.Delete(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}

	if err := s.invalidateRole(ctx, roleID); err != nil {
		return err
	}

	s.publishRoleChanged(ctx, roleID, domain.RoleChangeDeleted, actorID)
	return nil
}

// DeactivateRole disables a role without deleting its grants.
func (s *RoleService) DeactivateRole(ctx context.Context, actorID, roleID string) error {
	if err := s.roles.Deactivate(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("deactivate role: %w", err)
	}

	if err := s.invalidateRole(ctx, roleID); err != nil {
		return err
	}

	s.publishRoleChanged(ctx, roleID, domain.RoleChangeDeactivated, actorID)
	return nil
}

// GrantRole grants a role to a user, optionally scoped to an organization,
// and invalidates the user's cached context before returning.
func (s *RoleService) GrantRole(ctx context.Context, input GrantRoleInput) error {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := s.ensureRole(ctx, input.RoleID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	now := s.now()
	grant := domain.UserRole{
		UserID:         userID,
		RoleID:         input.RoleID,
		OrganizationID: input.OrganizationID,
		GrantedAt:      now,
		ExpiresAt:      input.ExpiresAt,
		Active:         true,
	}
	if granter := strings.TrimSpace(input.GrantedBy); granter != "" {
		grant.GrantedBy = &granter
	}
	if grant.Expired(now) {
		return ErrGrantExpiryInPast
	}

	if err := s.roles.GrantToUser(ctx, grant); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}

	if err := s.invalidateUser(ctx, userID); err != nil {
		return err
	}

	s.publishAccessChanged(ctx, userID, input.RoleID, input.OrganizationID, domain.AccessChangeRoleGranted, input.GrantedBy)
	return nil
}

// RevokeRole removes a user's role grant and invalidates the user's cached
// context before returning.
func (s *RoleService) RevokeRole(ctx context.Context, actorID, userID, roleID string, organizationID *string) error {
	if err := s.roles.RevokeFromUser(ctx, userID, roleID, organizationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("revoke role: %w", err)
	}

	if err := s.invalidateUser(ctx, userID); err != nil {
		return err
	}

	s.publishAccessChanged(ctx, userID, roleID, organizationID, domain.AccessChangeRoleRevoked, actorID)
	return nil
}

func (s *RoleService) ensureRole(ctx context.Context, roleID string) error {
	if strings.TrimSpace(roleID) == "" {
		return fmt.Errorf("role id is required")
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("load role: %w", err)
	}
	return nil
}

func (s *RoleService) invalidateRole(ctx context.Context, roleID string) error {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, roleID); err != nil {
			return fmt.Errorf("invalidate role cache: %w", err)
		}
	}
	if s.contexts != nil {
		if err := s.contexts.InvalidateAllUsers(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *RoleService) invalidateUser(ctx context.Context, userID string) error {
	if s.contexts == nil {
		return nil
	}
	return s.contexts.InvalidateUser(ctx, userID)
}

func (s *RoleService) publishRoleChanged(ctx context.Context, roleID string, change domain.RoleChange, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.RoleChangedEvent{
		EventID:    uuid.NewString(),
		RoleID:     roleID,
		Change:     change,
		ChangedBy:  actorID,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishRoleChanged(ctx, event); err != nil {
		s.logger.Warn("publish role changed event failed",
			zap.String("role_id", roleID),
			zap.String("change", string(change)),
			zap.Error(err),
		)
	}
}

func (s *RoleService) publishAccessChanged(ctx context.Context, userID, roleID string, organizationID *string, change domain.AccessChange, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.UserAccessChangedEvent{
		EventID:        uuid.NewString(),
		UserID:         userID,
		RoleID:         roleID,
		OrganizationID: organizationID,
		Change:         change,
		ChangedBy:      actorID,
		OccurredAt:     s.now(),
	}
	if err := s.events.PublishUserAccessChanged(ctx, event); err != nil {
		s.logger.Warn("publish user access changed event failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
