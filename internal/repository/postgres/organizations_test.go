package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/repository"
)

func newOrganizationMock(t *testing.T) (pgxmock.PgxPoolIface, *OrganizationRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)

	return mock, NewOrganizationRepository(mock)
}

func TestOrganizationRepository_Create(t *testing.T) {
	mock, repo := newOrganizationMock(t)

	parent := "org-x"
	organization := domain.Organization{ID: "org-y", Name: "clinic-east", ParentID: &parent, Active: true}

	mock.ExpectExec(`INSERT INTO authz\.organizations`).
		WithArgs(organization.ID, organization.Name, &parent, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), organization); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrganizationRepository_AccessibleSet(t *testing.T) {
	mock, repo := newOrganizationMock(t)

	rows := pgxmock.NewRows([]string{"id", "any_cycle"}).
		AddRow("org-x", false).
		AddRow("org-y", false).
		AddRow("org-z", false)

	mock.ExpectQuery(`WITH RECURSIVE subtree AS`).
		WithArgs([]string{"org-x"}).
		WillReturnRows(rows)

	ids, err := repo.AccessibleSet(context.Background(), []string{"org-x"})
	if err != nil {
		t.Fatalf("AccessibleSet returned error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 organizations, got %v", ids)
	}
}

func TestOrganizationRepository_AccessibleSet_Empty(t *testing.T) {
	_, repo := newOrganizationMock(t)

	ids, err := repo.AccessibleSet(context.Background(), nil)
	if err != nil {
		t.Fatalf("AccessibleSet returned error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty result, got %v", ids)
	}
}

func TestOrganizationRepository_AccessibleSet_Cycle(t *testing.T) {
	mock, repo := newOrganizationMock(t)

	rows := pgxmock.NewRows([]string{"id", "any_cycle"}).
		AddRow("org-x", true)

	mock.ExpectQuery(`WITH RECURSIVE subtree AS`).
		WithArgs([]string{"org-x"}).
		WillReturnRows(rows)

	if _, err := repo.AccessibleSet(context.Background(), []string{"org-x"}); !errors.Is(err, repository.ErrHierarchyCycle) {
		t.Fatalf("expected ErrHierarchyCycle, got %v", err)
	}
}

func TestOrganizationRepository_Descendants(t *testing.T) {
	mock, repo := newOrganizationMock(t)

	rows := pgxmock.NewRows([]string{"id", "any_cycle"}).
		AddRow("org-y", false)

	mock.ExpectQuery(`WITH RECURSIVE subtree AS`).
		WithArgs("org-x").
		WillReturnRows(rows)

	descendants, err := repo.Descendants(context.Background(), "org-x")
	if err != nil {
		t.Fatalf("Descendants returned error: %v", err)
	}
	if len(descendants) != 1 || descendants[0] != "org-y" {
		t.Fatalf("unexpected descendants: %v", descendants)
	}
}

func TestOrganizationRepository_Deactivate_NotFound(t *testing.T) {
	mock, repo := newOrganizationMock(t)

	mock.ExpectExec(`UPDATE authz\.organizations SET active = \$1`).
		WithArgs(false, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Deactivate(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
