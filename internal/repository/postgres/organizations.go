package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

// OrganizationRepository implements port.OrganizationRepository over
// PostgreSQL. Subtree traversal runs inside the database as a recursive
// query; callers only ever see resolved id sets.
type OrganizationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOrganizationRepository constructs an organization repository instance.
func NewOrganizationRepository(exec pgExecutor) *OrganizationRepository {
	return &OrganizationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new organization node.
func (r *OrganizationRepository) Create(ctx context.Context, organization domain.Organization) error {
	stmt, args, err := r.builder.Insert("authz.organizations").
		Columns("id", "name", "parent_id", "active").
		Values(organization.ID, organization.Name, organization.ParentID, organization.Active).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert organization sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}

	return nil
}

// GetByID retrieves an organization by its identifier.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	stmt, args, err := r.builder.Select("id", "name", "parent_id", "active").
		From("authz.organizations").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select organization sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		organization domain.Organization
		parentID     sql.NullString
	)

	if err := row.Scan(&organization.ID, &organization.Name, &parentID, &organization.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}

	if parentID.Valid {
		organization.ParentID = &parentID.String
	}

	return &organization, nil
}

// Deactivate marks an organization inactive. The node then drops out of
// accessible-set traversal along with its subtree.
func (r *OrganizationRepository) Deactivate(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("authz.organizations").
		Set("active", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate organization sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("deactivate organization: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListActiveMembershipsByUser returns the user's active membership edges,
// restricted to active organizations.
func (r *OrganizationRepository) ListActiveMembershipsByUser(ctx context.Context, userID string) ([]domain.UserOrganization, error) {
	stmt, args, err := r.builder.Select("uo.user_id", "uo.organization_id", "uo.active", "uo.joined_at").
		From("authz.user_organizations uo").
		Join("authz.organizations o ON o.id = uo.organization_id").
		Where(squirrel.Eq{"uo.user_id": userID}).
		Where(squirrel.Eq{"uo.active": true}).
		Where(squirrel.Eq{"o.active": true}).
		OrderBy("uo.joined_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build memberships by user sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships by user: %w", err)
	}
	defer rows.Close()

	memberships := make([]domain.UserOrganization, 0)
	for rows.Next() {
		var membership domain.UserOrganization
		if err := rows.Scan(&membership.UserID, &membership.OrganizationID, &membership.Active, &membership.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, membership)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return memberships, nil
}

// accessibleSetSQL walks the tree downward from a set of roots. The path
// array guards against revisiting a node so a corrupted tree cannot recurse
// forever; the cycle flag surfaces the corruption to the caller.
const accessibleSetSQL = `
WITH RECURSIVE subtree AS (
	SELECT o.id, ARRAY[o.id] AS path, FALSE AS cycle
	FROM authz.organizations o
	WHERE o.id = ANY($1) AND o.active
	UNION ALL
	SELECT o.id, s.path || o.id, o.id = ANY(s.path)
	FROM authz.organizations o
	JOIN subtree s ON o.parent_id = s.id
	WHERE o.active AND NOT s.cycle
)
SELECT DISTINCT id, bool_or(cycle) OVER () AS any_cycle FROM subtree`

// AccessibleSet resolves the given roots plus all active descendants. A cycle
// in the hierarchy is reported as repository.ErrHierarchyCycle so callers
// fail closed instead of authorizing against a corrupted tree.
func (r *OrganizationRepository) AccessibleSet(ctx context.Context, rootIDs []string) ([]string, error) {
	if len(rootIDs) == 0 {
		return []string{}, nil
	}

	rows, err := r.exec.Query(ctx, accessibleSetSQL, rootIDs)
	if err != nil {
		return nil, fmt.Errorf("query accessible set: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, len(rootIDs))
	for rows.Next() {
		var (
			id       string
			anyCycle bool
		)
		if err := rows.Scan(&id, &anyCycle); err != nil {
			return nil, fmt.Errorf("scan accessible organization: %w", err)
		}
		if anyCycle {
			return nil, repository.ErrHierarchyCycle
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accessible set: %w", err)
	}

	return ids, nil
}

const descendantsSQL = `
WITH RECURSIVE subtree AS (
	SELECT o.id, ARRAY[o.id] AS path, FALSE AS cycle
	FROM authz.organizations o
	WHERE o.id = $1 AND o.active
	UNION ALL
	SELECT o.id, s.path || o.id, o.id = ANY(s.path)
	FROM authz.organizations o
	JOIN subtree s ON o.parent_id = s.id
	WHERE o.active AND NOT s.cycle
)
SELECT DISTINCT id, bool_or(cycle) OVER () AS any_cycle FROM subtree WHERE id <> $1`

// Descendants resolves a single organization's active subtree, excluding the
// root itself.
func (r *OrganizationRepository) Descendants(ctx context.Context, organizationID string) ([]string, error) {
	rows, err := r.exec.Query(ctx, descendantsSQL, organizationID)
	if err != nil {
		return nil, fmt.Errorf("query descendants: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var (
			id       string
			anyCycle bool
		)
		if err := rows.Scan(&id, &anyCycle); err != nil {
			return nil, fmt.Errorf("scan descendant: %w", err)
		}
		if anyCycle {
			return nil, repository.ErrHierarchyCycle
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descendants: %w", err)
	}

	return ids, nil
}

var _ port.OrganizationRepository = (*OrganizationRepository)(nil)
