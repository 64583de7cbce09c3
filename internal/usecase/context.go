package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive indicates the account is deactivated.
	ErrUserInactive = errors.New("user is not active")
)

const defaultRolePermissionTTL = 5 * time.Minute

// ContextService assembles the materialized UserContext consumed by every
// authorization decision. Construction honors the caller's deadline and fails
// closed: a context is either fully built or an error is returned.
type ContextService struct {
	users     port.UserRepository
	orgs      port.OrganizationRepository
	roles     port.RoleRepository
	perms     port.PermissionRepository
	cache     port.RolePermissionCache
	ctxCache  port.UserContextCache
	metrics   port.DecisionMetrics
	logger    *zap.Logger
	cacheTTL  time.Duration
	ctxTTL    time.Duration
	now       func() time.Time
}

// NewContextService constructs a ContextService.
func NewContextService(
	users port.UserRepository,
	orgs port.OrganizationRepository,
	roles port.RoleRepository,
	perms port.PermissionRepository,
	cache port.RolePermissionCache,
	logger *zap.Logger,
) *ContextService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextService{
		users:    users,
		orgs:     orgs,
		roles:    roles,
		perms:    perms,
		cache:    cache,
		logger:   logger,
		cacheTTL: defaultRolePermissionTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithRolePermissionTTL overrides the cache TTL for role permission sets.
func (s *ContextService) WithRolePermissionTTL(ttl time.Duration) *ContextService {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
	return s
}

// WithUserContextCache enables caching of fully built contexts.
func (s *ContextService) WithUserContextCache(cache port.UserContextCache, ttl time.Duration) *ContextService {
	s.ctxCache = cache
	if ttl > 0 {
		s.ctxTTL = ttl
	}
	return s
}

// WithMetrics attaches decision metrics for degraded-mode accounting.
func (s *ContextService) WithMetrics(metrics port.DecisionMetrics) *ContextService {
	s.metrics = metrics
	return s
}

// WithClock overrides the clock for deterministic testing.
func (s *ContextService) WithClock(clock func() time.Time) *ContextService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// BuildUserContext materializes the authorization snapshot for one user.
// Returns ErrUserNotFound or ErrUserInactive when the account cannot be
// authorized at all.
func (s *ContextService) BuildUserContext(ctx context.Context, userID string, currentOrganizationID *string) (*domain.UserContext, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	if s.ctxCache != nil {
		if cached, err := s.ctxCache.Get(ctx, userID, currentOrganizationID); err == nil && cached != nil {
			return cached, nil
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("user context cache read failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive() {
		return nil, ErrUserInactive
	}

	now := s.now()

	memberships, err := s.orgs.ListActiveMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	grants, err := s.roles.ListActiveGrantsByUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load role grants: %w", err)
	}

	active := make([]domain.RoleGrant, 0, len(grants))
	for _, grant := range grants {
		if grant.Expired(now) {
			continue
		}
		if !grant.Role.Active {
			continue
		}
		active = append(active, grant)
	}

	permissions, err := s.flattenPermissions(ctx, active)
	if err != nil {
		return nil, err
	}

	orgIDs := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		orgIDs = append(orgIDs, membership.OrganizationID)
	}

	accessible, err := s.orgs.AccessibleSet(ctx, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve accessible organizations: %w", err)
	}

	uctx := &domain.UserContext{
		UserID:                  userID,
		CurrentOrganizationID:   currentOrganizationID,
		Organizations:           orgIDs,
		AccessibleOrganizations: accessible,
		Grants:                  active,
		Permissions:             permissions,
		IsSuperAdmin:            isSuperAdmin(active),
		OrganizationAdminFor:    adminOrganizations(active, orgIDs),
		BuiltAt:                 now,
	}

	if s.ctxCache != nil && s.ctxTTL > 0 {
		if err := s.ctxCache.Set(ctx, uctx, s.ctxTTL); err != nil {
			s.logger.Warn("user context cache write failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	return uctx, nil
}

// InvalidateUser drops any cached contexts for the user. Called after grant or
// membership mutations, before the mutation is reported complete.
func (s *ContextService) InvalidateUser(ctx context.Context, userID string) error {
	if s.ctxCache == nil {
		return nil
	}
	if err := s.ctxCache.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("invalidate user context: %w", err)
	}
	return nil
}

// InvalidateAllUsers drops every cached user context. Used after role-level
// permission changes, where the set of affected users is unknown.
func (s *ContextService) InvalidateAllUsers(ctx context.Context) error {
	if s.ctxCache == nil {
		return nil
	}
	if err := s.ctxCache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate user contexts: %w", err)
	}
	return nil
}

// flattenPermissions resolves each distinct role's permission set through the
// cache and merges them, deduplicated by permission name.
func (s *ContextService) flattenPermissions(ctx context.Context, grants []domain.RoleGrant) (domain.PermissionSet, error) {
	flattened := domain.NewPermissionSet()
	seen := make(map[string]struct{}, len(grants))

	for _, grant := range grants {
		roleID := grant.Role.ID
		if _, done := seen[roleID]; done {
			continue
		}
		seen[roleID] = struct{}{}

		set, err := s.resolveRolePermissions(ctx, roleID)
		if err != nil {
			return domain.PermissionSet{}, err
		}
		for _, name := range set.Names() {
			flattened.Add(name)
		}
	}

	return flattened, nil
}

// resolveRolePermissions reads through the cache to the permission repository.
// A cache outage degrades to the authoritative store with an operational
// warning; it never fails the build and never fabricates a grant.
func (s *ContextService) resolveRolePermissions(ctx context.Context, roleID string) (domain.PermissionSet, error) {
	if s.cache != nil {
		set, err := s.cache.Get(ctx, roleID)
		switch {
		case err == nil:
			return set, nil
		case errors.Is(err, repository.ErrNotFound):
			// miss: fall through to the authoritative store
		default:
			s.logger.Warn("role permission cache unavailable, reading through",
				zap.String("role_id", roleID),
				zap.Error(err),
			)
			if s.metrics != nil {
				s.metrics.ObserveCacheFallback()
			}
		}
	}

	permissions, err := s.perms.ListByRole(ctx, roleID)
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("list role permissions: %w", err)
	}

	set := domain.NewPermissionSet()
	for _, permission := range permissions {
		if !permission.Active {
			continue
		}
		set.Add(permission.Name)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, roleID, set, s.cacheTTL); err != nil {
			s.logger.Warn("role permission cache write failed",
				zap.String("role_id", roleID),
				zap.Error(err),
			)
		}
	}

	return set, nil
}

func isSuperAdmin(grants []domain.RoleGrant) bool {
	for _, grant := range grants {
		if grant.Role.IsSuperAdmin() {
			return true
		}
	}
	return false
}

// adminOrganizations collects organization ids the user administers: the
// scoping organization of each administrative grant, or every membership
// organization when the administrative grant is global.
func adminOrganizations(grants []domain.RoleGrant, memberships []string) []string {
	adminSet := make(map[string]struct{})
	for _, grant := range grants {
		if !grant.Role.IsAdministrative() {
			continue
		}
		if grant.OrganizationID != nil {
			adminSet[*grant.OrganizationID] = struct{}{}
			continue
		}
		for _, orgID := range memberships {
			adminSet[orgID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(adminSet))
	for id := range adminSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
