package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/caldora/practice-authz/internal/core/domain"
)

type roleFixture struct {
	roles    *roleRepoStub
	perms    *permRepoStub
	users    *userRepoStub
	cache    *cacheStub
	ctxCache *ctxCacheStub
	events   *eventPublisherStub
	contexts *ContextService
	service  *RoleService
}

func newRoleFixture(t *testing.T) *roleFixture {
	t.Helper()

	users := &userRepoStub{users: map[string]domain.User{
		"user-1": {ID: "user-1", Status: domain.UserStatusActive},
	}}
	orgs := &orgRepoStub{memberships: map[string][]domain.UserOrganization{}, descendants: map[string][]string{}}
	roles := &roleRepoStub{grants: map[string][]domain.RoleGrant{}}
	perms := &permRepoStub{byRole: map[string][]domain.Permission{}}
	cache := &cacheStub{}
	ctxCache := &ctxCacheStub{}
	events := &eventPublisherStub{}

	logger := zaptest.NewLogger(t)
	contexts := NewContextService(users, orgs, roles, perms, cache, logger).
		WithUserContextCache(ctxCache, time.Minute)
	service := NewRoleService(roles, perms, users, cache, contexts, events, logger)

	return &roleFixture{
		roles: roles, perms: perms, users: users,
		cache: cache, ctxCache: ctxCache, events: events,
		contexts: contexts, service: service,
	}
}

func seedRole(f *roleFixture, role domain.Role) {
	_ = f.roles.Create(context.Background(), role)
}

func TestCreateRole(t *testing.T) {
	f := newRoleFixture(t)

	role, err := f.service.CreateRole(context.Background(), "admin-1", CreateRoleInput{Name: "editor"})
	if err != nil {
		t.Fatalf("CreateRole returned error: %v", err)
	}
	if role.Name != "editor" || !role.Active {
		t.Fatalf("unexpected role: %+v", role)
	}
}

func TestCreateRole_DuplicateName(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-1", Name: "editor", Active: true})

	if _, err := f.service.CreateRole(context.Background(), "admin-1", CreateRoleInput{Name: "editor"}); !errors.Is(err, ErrRoleExists) {
		t.Fatalf("expected ErrRoleExists, got %v", err)
	}
}

func TestCreateRole_ReservedName(t *testing.T) {
	f := newRoleFixture(t)

	if _, err := f.service.CreateRole(context.Background(), "admin-1", CreateRoleInput{Name: domain.SuperAdminRoleName}); !errors.Is(err, ErrReservedRoleName) {
		t.Fatalf("expected ErrReservedRoleName, got %v", err)
	}
}

// Revoking a permission must make the very next check see the change: the
// cache entry is dropped before the revoke returns, so there is no stale
// grant window.
func TestRevokePermissions_NoStaleGrantWindow(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	f.roles.grants["user-1"] = []domain.RoleGrant{{Role: domain.Role{ID: "role-editor", Name: "editor", Active: true}}}
	f.perms.byRole["role-editor"] = []domain.Permission{
		domain.NewPermission("perm-1", "dashboards", domain.ActionUpdate, domain.ScopeOwn),
	}

	authz := NewAuthorizationService(nil, zaptest.NewLogger(t))

	uctx, err := f.contexts.BuildUserContext(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("BuildUserContext returned error: %v", err)
	}
	decision, err := authz.CheckPermission(context.Background(), uctx, "dashboards:update:own", nil, nil)
	if err != nil || !decision.Granted {
		t.Fatalf("expected initial grant, got %+v err=%v", decision, err)
	}

	// Revoke the permission from the authoritative store and through the service.
	f.perms.byRole["role-editor"] = nil
	if _, err := f.service.RevokePermissions(context.Background(), "admin-1", "role-editor", []string{"perm-1"}); err != nil {
		t.Fatalf("RevokePermissions returned error: %v", err)
	}

	if len(f.cache.invalidated) == 0 || f.cache.invalidated[0] != "role-editor" {
		t.Fatalf("expected synchronous cache invalidation for role-editor, got %v", f.cache.invalidated)
	}

	uctx, err = f.contexts.BuildUserContext(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("rebuild returned error: %v", err)
	}
	decision, err = authz.CheckPermission(context.Background(), uctx, "dashboards:update:own", nil, nil)
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if decision.Granted {
		t.Fatalf("revoked permission must be denied immediately after invalidation")
	}
}

func TestAssignPermissions_InvalidatesAndPublishes(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	if _, err := f.service.AssignPermissions(context.Background(), "admin-1", "role-editor", []string{"perm-1"}); err != nil {
		t.Fatalf("AssignPermissions returned error: %v", err)
	}

	if len(f.cache.invalidated) != 1 {
		t.Fatalf("expected one cache invalidation, got %d", len(f.cache.invalidated))
	}
	if len(f.events.roleEvents) != 1 || f.events.roleEvents[0].Change != domain.RoleChangePermissionsAssigned {
		t.Fatalf("expected a permissions_assigned event, got %+v", f.events.roleEvents)
	}
}

func TestAssignPermissions_PurgesContextsWithoutRoleCache(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	service := NewRoleService(f.roles, f.perms, f.users, nil, f.contexts, f.events, zaptest.NewLogger(t))

	if _, err := service.AssignPermissions(context.Background(), "admin-1", "role-editor", []string{"perm-1"}); err != nil {
		t.Fatalf("AssignPermissions returned error: %v", err)
	}

	if f.ctxCache.purged != 1 {
		t.Fatalf("expected user context purge without a role cache, got %d", f.ctxCache.purged)
	}
}

func TestDeleteRole_InvalidatesCache(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	if err := f.service.DeleteRole(context.Background(), "admin-1", "role-editor"); err != nil {
		t.Fatalf("DeleteRole returned error: %v", err)
	}
	if len(f.cache.invalidated) != 1 {
		t.Fatalf("expected cache invalidation on delete")
	}

	if err := f.service.DeleteRole(context.Background(), "admin-1", "role-editor"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound for second delete, got %v", err)
	}
}

func TestGrantRole_InvalidatesUserContext(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	// Prime the context cache, then grant.
	if _, err := f.contexts.BuildUserContext(context.Background(), "user-1", nil); err != nil {
		t.Fatalf("BuildUserContext returned error: %v", err)
	}

	err := f.service.GrantRole(context.Background(), GrantRoleInput{
		UserID:    "user-1",
		RoleID:    "role-editor",
		GrantedBy: "admin-1",
	})
	if err != nil {
		t.Fatalf("GrantRole returned error: %v", err)
	}

	if len(f.ctxCache.invalidated) != 1 || f.ctxCache.invalidated[0] != "user-1" {
		t.Fatalf("expected user context invalidation, got %v", f.ctxCache.invalidated)
	}
	if len(f.events.accessEvents) != 1 || f.events.accessEvents[0].Change != domain.AccessChangeRoleGranted {
		t.Fatalf("expected a role_granted event, got %+v", f.events.accessEvents)
	}
	if len(f.roles.userRoles) != 1 || f.roles.userRoles[0].GrantedBy == nil {
		t.Fatalf("expected a persisted grant with granted_by, got %+v", f.roles.userRoles)
	}
}

func TestGrantRole_ExpiryInPast(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	past := time.Now().UTC().Add(-time.Minute)
	err := f.service.GrantRole(context.Background(), GrantRoleInput{
		UserID:    "user-1",
		RoleID:    "role-editor",
		ExpiresAt: &past,
	})
	if !errors.Is(err, ErrGrantExpiryInPast) {
		t.Fatalf("expected ErrGrantExpiryInPast, got %v", err)
	}
}

func TestGrantRole_UnknownUser(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	err := f.service.GrantRole(context.Background(), GrantRoleInput{UserID: "ghost", RoleID: "role-editor"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRevokeRole_InvalidatesUserContext(t *testing.T) {
	f := newRoleFixture(t)
	seedRole(f, domain.Role{ID: "role-editor", Name: "editor", Active: true})

	if err := f.service.GrantRole(context.Background(), GrantRoleInput{UserID: "user-1", RoleID: "role-editor"}); err != nil {
		t.Fatalf("GrantRole returned error: %v", err)
	}

	if err := f.service.RevokeRole(context.Background(), "admin-1", "user-1", "role-editor", nil); err != nil {
		t.Fatalf("RevokeRole returned error: %v", err)
	}
	if len(f.ctxCache.invalidated) < 2 {
		t.Fatalf("expected user context invalidation on revoke, got %v", f.ctxCache.invalidated)
	}
}

func TestCatalogSeed_BulkInvalidation(t *testing.T) {
	f := newRoleFixture(t)

	catalog := NewCatalogService(f.perms, f.cache, f.events, zaptest.NewLogger(t))

	written, err := catalog.Seed(context.Background(), []CatalogEntry{
		{Resource: "dashboards", Action: "read", Scope: "own"},
		{Resource: "dashboards", Action: "read", Scope: "organization"},
	})
	if err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 entries written, got %d", written)
	}
	if f.cache.purged != 1 {
		t.Fatalf("expected bulk cache invalidation after seed")
	}
}

func TestCatalogSeed_RejectsUnknownScope(t *testing.T) {
	f := newRoleFixture(t)
	catalog := NewCatalogService(f.perms, f.cache, nil, zaptest.NewLogger(t))

	if _, err := catalog.Seed(context.Background(), []CatalogEntry{
		{Resource: "dashboards", Action: "read", Scope: "global"},
	}); !errors.Is(err, domain.ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
}
