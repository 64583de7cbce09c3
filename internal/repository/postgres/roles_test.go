package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/repository"
)

func newRoleMock(t *testing.T) (pgxmock.PgxPoolIface, *RoleRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewRoleRepository(mock)
}

func TestRoleRepository_Create(t *testing.T) {
	mock, repo := newRoleMock(t)

	role := domain.Role{ID: "role-1", Name: "editor", Active: true}

	mock.ExpectExec(`INSERT INTO authz\.roles`).
		WithArgs(role.ID, role.Name, (*string)(nil), (*string)(nil), false, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), role); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_GetByID(t *testing.T) {
	mock, repo := newRoleMock(t)

	rows := pgxmock.NewRows([]string{"id", "name", "description", "organization_id", "is_system_role", "active"}).
		AddRow("role-1", "editor", nil, nil, false, true)

	mock.ExpectQuery(`SELECT .+ FROM authz\.roles WHERE id = \$1`).
		WithArgs("role-1").
		WillReturnRows(rows)

	role, err := repo.GetByID(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if role.Name != "editor" || !role.Active {
		t.Fatalf("unexpected role: %+v", role)
	}
}

func TestRoleRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := newRoleMock(t)

	mock.ExpectQuery(`SELECT .+ FROM authz\.roles WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "organization_id", "is_system_role", "active"}))

	if _, err := repo.GetByID(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleRepository_AssignPermissions(t *testing.T) {
	mock, repo := newRoleMock(t)

	mock.ExpectExec(`INSERT INTO authz\.role_permissions`).
		WithArgs("role-1", "perm-1", "role-1", "perm-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	inserted, err := repo.AssignPermissions(context.Background(), "role-1", []string{"perm-1", "perm-2"})
	if err != nil {
		t.Fatalf("AssignPermissions returned error: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("expected 2 inserted rows, got %d", inserted)
	}
}

func TestRoleRepository_RevokePermissions_Empty(t *testing.T) {
	_, repo := newRoleMock(t)

	deleted, err := repo.RevokePermissions(context.Background(), "role-1", nil)
	if err != nil {
		t.Fatalf("RevokePermissions returned error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected no rows deleted, got %d", deleted)
	}
}

func TestRoleRepository_RevokeFromUser_NotFound(t *testing.T) {
	mock, repo := newRoleMock(t)

	mock.ExpectExec(`DELETE FROM authz\.user_roles`).
		WithArgs("user-1", "role-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.RevokeFromUser(context.Background(), "user-1", "role-1", nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleRepository_ListFiltersByOrganization(t *testing.T) {
	mock, repo := newRoleMock(t)

	rows := pgxmock.NewRows([]string{"id", "name", "description", "organization_id", "is_system_role", "active"}).
		AddRow("role-1", "editor", nil, "org-1", false, true)

	mock.ExpectQuery(`SELECT .+ FROM authz\.roles WHERE organization_id IN \(\$1,\$2\) ORDER BY name ASC`).
		WithArgs("org-1", "org-2").
		WillReturnRows(rows)

	roles, err := repo.List(context.Background(), domain.QueryFilter{OrganizationIDs: []string{"org-1", "org-2"}})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(roles) != 1 || roles[0].ID != "role-1" {
		t.Fatalf("unexpected roles: %+v", roles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_ListDenyAllSkipsQuery(t *testing.T) {
	mock, repo := newRoleMock(t)

	roles, err := repo.List(context.Background(), domain.QueryFilter{DenyAll: true})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no roles for deny-all filter, got %+v", roles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_ListActiveGrantsByUser(t *testing.T) {
	mock, repo := newRoleMock(t)

	now := time.Now().UTC()
	expiresAt := now.Add(time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "name", "description", "organization_id", "is_system_role", "active",
		"organization_id", "expires_at",
	}).
		AddRow("role-1", "editor", nil, nil, false, true, "org-x", expiresAt).
		AddRow("role-2", "viewer", nil, nil, false, true, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM authz\.user_roles ur JOIN authz\.roles r ON r\.id = ur\.role_id`).
		WithArgs("user-1", true, now).
		WillReturnRows(rows)

	grants, err := repo.ListActiveGrantsByUser(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("ListActiveGrantsByUser returned error: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	if grants[0].OrganizationID == nil || *grants[0].OrganizationID != "org-x" {
		t.Fatalf("expected scoped grant, got %+v", grants[0])
	}
	if grants[1].OrganizationID != nil || grants[1].ExpiresAt != nil {
		t.Fatalf("expected global non-expiring grant, got %+v", grants[1])
	}
}
