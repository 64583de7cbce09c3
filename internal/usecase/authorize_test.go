package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/caldora/practice-authz/internal/core/domain"
)

func emptyContext(userID string) *domain.UserContext {
	return &domain.UserContext{UserID: userID, Permissions: domain.NewPermissionSet()}
}

func contextWith(userID string, accessible []string, permissions ...string) *domain.UserContext {
	return &domain.UserContext{
		UserID:                  userID,
		AccessibleOrganizations: accessible,
		Permissions:             domain.NewPermissionSet(permissions...),
	}
}

func newAuthorizer(t *testing.T, audit *auditSinkStub) *AuthorizationService {
	t.Helper()
	if audit == nil {
		return NewAuthorizationService(nil, zaptest.NewLogger(t))
	}
	return NewAuthorizationService(audit, zaptest.NewLogger(t))
}

func TestCheckPermission_NoRolesDeniesEverything(t *testing.T) {
	svc := newAuthorizer(t, nil)
	uctx := emptyContext("user-1")

	names := []string{
		"dashboards:read:own",
		"dashboards:read:organization",
		"dashboards:read:all",
		"patients:manage:all",
		"appointments:export:organization",
	}

	for _, name := range names {
		decision, err := svc.CheckPermission(context.Background(), uctx, name, nil, nil)
		if err != nil {
			t.Fatalf("CheckPermission(%s) returned error: %v", name, err)
		}
		if decision.Granted {
			t.Fatalf("user with no roles must be denied %s", name)
		}
		if decision.Reason != domain.ReasonPermissionDenied {
			t.Fatalf("expected permission_denied reason, got %s", decision.Reason)
		}
	}
}

func TestCheckPermission_SuperAdminGrantsEverything(t *testing.T) {
	svc := newAuthorizer(t, nil)
	uctx := emptyContext("root-1")
	uctx.IsSuperAdmin = true

	// Grants regardless of catalog contents, always at scope all.
	for _, name := range []string{"dashboards:delete:all", "patients:read:own", "anything:manage:organization"} {
		decision, err := svc.CheckPermission(context.Background(), uctx, name, nil, nil)
		if err != nil {
			t.Fatalf("CheckPermission(%s) returned error: %v", name, err)
		}
		if !decision.Granted {
			t.Fatalf("super admin must be granted %s", name)
		}
		if decision.Scope != domain.ScopeAll {
			t.Fatalf("super admin grants must carry scope all, got %s", decision.Scope)
		}
		if decision.Reason != domain.ReasonSuperAdmin {
			t.Fatalf("expected super_admin reason, got %s", decision.Reason)
		}
	}
}

func TestCheckPermission_MalformedName(t *testing.T) {
	svc := newAuthorizer(t, nil)

	if _, err := svc.CheckPermission(context.Background(), emptyContext("user-1"), "dashboards:update", nil, nil); !errors.Is(err, domain.ErrInvalidPermissionName) {
		t.Fatalf("expected ErrInvalidPermissionName, got %v", err)
	}
	if _, err := svc.CheckPermission(context.Background(), emptyContext("user-1"), "dashboards:update:everywhere", nil, nil); !errors.Is(err, domain.ErrUnknownScope) {
		t.Fatalf("expected ErrUnknownScope, got %v", err)
	}
}

func TestCheckPermission_ScopesAreIndependent(t *testing.T) {
	svc := newAuthorizer(t, nil)

	// Holding the organization-scoped permission implies nothing about all or own.
	uctx := contextWith("user-1", []string{"org-x"}, "dashboards:update:organization")

	decision, err := svc.CheckPermission(context.Background(), uctx, "dashboards:update:all", nil, nil)
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if decision.Granted {
		t.Fatalf("organization grant must not satisfy an all-scope check")
	}

	decision, err = svc.CheckPermission(context.Background(), uctx, "dashboards:update:own", nil, nil)
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if decision.Granted {
		t.Fatalf("organization grant must not satisfy an own-scope check")
	}
}

// Scenario: editor with an own-scope grant touching someone else's resource.
func TestCheckPermission_OwnScopeDeniesForeignResource(t *testing.T) {
	svc := newAuthorizer(t, nil).WithOwnershipResolver(&ownershipResolverStub{
		owners: map[string]string{"dash-1": "user-2"},
	})

	uctx := contextWith("user-1", nil, "dashboards:update:own")

	decision, err := svc.CheckPermission(context.Background(), uctx, "dashboards:update:own", strPtr("dash-1"), nil)
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if decision.Granted {
		t.Fatalf("own-scope check against a foreign resource must be denied")
	}
	if decision.Reason != domain.ReasonPermissionDenied {
		t.Fatalf("denial reason must stay generic, got %s", decision.Reason)
	}
}

func TestCheckPermission_OwnScopeGrantsOwnResource(t *testing.T) {
	svc := newAuthorizer(t, nil).WithOwnershipResolver(&ownershipResolverStub{
		owners: map[string]string{"dash-1": "user-1"},
	})

	uctx := contextWith("user-1", nil, "dashboards:update:own")

	decision, err := svc.CheckPermission(context.Background(), uctx, "dashboards:update:own", strPtr("dash-1"), nil)
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if !decision.Granted || decision.Scope != domain.ScopeOwn {
		t.Fatalf("expected own-scope grant, got %+v", decision)
	}
}

func TestCheckPermission_OwnershipResolverFailureFailsClosed(t *testing.T) {
	svc := newAuthorizer(t, nil).WithOwnershipResolver(&ownershipResolverStub{
		resolveErr: errors.New("resource service unavailable"),
	})

	uctx := contextWith("user-1", nil, "dashboards:update:own")

	decision, err := svc.CheckPermission(context.Background(), uctx, "dashboards:update:own", strPtr("dash-1"), nil)
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if decision.Granted {
		t.Fatalf("ownership resolution failure must fail closed")
	}
}

// Scenario: org_admin scoped to org X updating within X, then within an
// inaccessible org Y.
func TestCheckPermission_OrganizationScope(t *testing.T) {
	svc := newAuthorizer(t, nil)
	uctx := contextWith("user-2", []string{"org-x"}, "dashboards:update:organization")

	decision, err := svc.CheckPermission(context.Background(), uctx, "dashboards:update:organization", nil, strPtr("org-x"))
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if !decision.Granted || decision.Scope != domain.ScopeOrganization {
		t.Fatalf("expected organization-scope grant for org-x, got %+v", decision)
	}

	decision, err = svc.CheckPermission(context.Background(), uctx, "dashboards:update:organization", nil, strPtr("org-y"))
	if err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if decision.Granted {
		t.Fatalf("inaccessible organization must be denied, not widened")
	}
}

func TestCheckAny_FirstSuccessWins(t *testing.T) {
	svc := newAuthorizer(t, nil)
	uctx := contextWith("user-1", []string{"org-x"}, "dashboards:read:organization")

	candidates := []string{
		"dashboards:read:own",
		"dashboards:read:organization",
		"dashboards:read:all",
	}

	decision, err := svc.CheckAny(context.Background(), uctx, candidates, nil, nil)
	if err != nil {
		t.Fatalf("CheckAny returned error: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("expected a grant from the candidate list")
	}
	if decision.Scope != domain.ScopeOrganization {
		t.Fatalf("expected the justifying scope to be organization, got %s", decision.Scope)
	}
	if decision.Permission != "dashboards:read:organization" {
		t.Fatalf("expected the matching candidate to be recorded, got %s", decision.Permission)
	}
}

func TestGetAccessScope_BroadestWins(t *testing.T) {
	svc := newAuthorizer(t, nil)
	uctx := contextWith("user-1", []string{"org-x", "org-y"},
		"dashboards:read:own", "dashboards:read:organization")

	scope, err := svc.GetAccessScope(context.Background(), uctx, "dashboards", domain.ActionRead)
	if err != nil {
		t.Fatalf("GetAccessScope returned error: %v", err)
	}
	if scope.Denied {
		t.Fatalf("expected a resolved scope")
	}
	if scope.Scope != domain.ScopeOrganization {
		t.Fatalf("expected organization to win over own, got %s", scope.Scope)
	}

	filter := scope.Filter()
	if len(filter.OrganizationIDs) != 2 {
		t.Fatalf("expected the accessible set in the filter, got %v", filter.OrganizationIDs)
	}
}

func TestGetAccessScope_DeniedYieldsDenyAllFilter(t *testing.T) {
	svc := newAuthorizer(t, nil)

	scope, err := svc.GetAccessScope(context.Background(), emptyContext("user-1"), "dashboards", domain.ActionRead)
	if err != nil {
		t.Fatalf("GetAccessScope returned error: %v", err)
	}
	if !scope.Denied {
		t.Fatalf("expected denial for user with no grants")
	}
	if !scope.Filter().DenyAll {
		t.Fatalf("denied scope must translate to a deny-all filter")
	}
}

func TestCheckPermission_AuditRecorded(t *testing.T) {
	audit := &auditSinkStub{}
	svc := newAuthorizer(t, audit)

	uctx := contextWith("user-1", nil, "dashboards:read:own")
	if _, err := svc.CheckPermission(context.Background(), uctx, "dashboards:read:own", nil, nil); err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}
	if _, err := svc.CheckPermission(context.Background(), uctx, "patients:read:all", nil, nil); err != nil {
		t.Fatalf("CheckPermission returned error: %v", err)
	}

	if len(audit.records) != 2 {
		t.Fatalf("expected both decisions audited, got %d records", len(audit.records))
	}
	if !audit.records[0].Granted || audit.records[1].Granted {
		t.Fatalf("expected one grant and one denial in the audit trail")
	}
	if audit.records[0].Actor != "user-1" {
		t.Fatalf("expected actor user-1, got %s", audit.records[0].Actor)
	}
}

func TestCheckPermission_AuditFailureDoesNotBlock(t *testing.T) {
	audit := &auditSinkStub{recordErr: errors.New("broker unavailable")}
	svc := newAuthorizer(t, audit)

	uctx := contextWith("user-1", nil, "dashboards:read:own")
	decision, err := svc.CheckPermission(context.Background(), uctx, "dashboards:read:own", nil, nil)
	if err != nil {
		t.Fatalf("audit failure must not fail the check: %v", err)
	}
	if !decision.Granted {
		t.Fatalf("audit failure must not change the decision")
	}
}
