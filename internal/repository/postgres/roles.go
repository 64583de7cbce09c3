package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/caldora/practice-authz/internal/core/domain"
	"github.com/caldora/practice-authz/internal/core/port"
	"github.com/caldora/practice-authz/internal/repository"
)

// RoleRepository implements role persistence and role grant edges.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *RoleRepository) WithTx(tx pgx.Tx) *RoleRepository {
	if tx == nil {
		return r
	}
	return &RoleRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new role.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Insert("authz.roles").
		Columns("id", "name", "description", "organization_id", "is_system_role", "active").
		Values(role.ID, role.Name, role.Description, role.OrganizationID, role.IsSystemRole, role.Active).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by its ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id}, "by id")
}

// GetByName retrieves a role by its unique name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getBy(ctx, squirrel.Eq{"name": name}, "by name")
}

func (r *RoleRepository) getBy(ctx context.Context, predicate squirrel.Eq, detail string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select("id", "name", "description", "organization_id", "is_system_role", "active").
		From("authz.roles").
		Where(predicate).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role %s sql: %w", detail, err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	role, err := scanRole(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role %s: %w", detail, err)
	}

	return role, nil
}

func scanRole(scan func(dest ...any) error) (*domain.Role, error) {
	var (
		role           domain.Role
		description    sql.NullString
		organizationID sql.NullString
	)

	if err := scan(&role.ID, &role.Name, &description, &organizationID, &role.IsSystemRole, &role.Active); err != nil {
		return nil, err
	}

	if description.Valid {
		role.Description = &description.String
	}
	if organizationID.Valid {
		role.OrganizationID = &organizationID.String
	}

	return &role, nil
}

// List retrieves roles sorted by name, restricted by the data-scope filter.
func (r *RoleRepository) List(ctx context.Context, filter domain.QueryFilter) ([]domain.Role, error) {
	if filter.DenyAll {
		return []domain.Role{}, nil
	}

	query := r.builder.Select("id", "name", "description", "organization_id", "is_system_role", "active").
		From("authz.roles")
	if len(filter.OrganizationIDs) > 0 {
		query = query.Where(squirrel.Eq{"organization_id": filter.OrganizationIDs})
	}

	stmt, args, err := query.OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, *role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

// Update modifies an existing role.
func (r *RoleRepository) Update(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Update("authz.roles").
		Set("name", role.Name).
		Set("description", role.Description).
		Set("active", role.Active).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a role by ID (cascades to user_roles and role_permissions via FK).
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("authz.roles").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Deactivate marks a role inactive without removing its grant edges.
func (r *RoleRepository) Deactivate(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("authz.roles").
		Set("active", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("deactivate role: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// AssignPermissions links the provided permissions to the role and returns the number of rows inserted.
func (r *RoleRepository) AssignPermissions(ctx context.Context, roleID string, permissionIDs []string) (int, error) {
	if len(permissionIDs) == 0 {
		return 0, nil
	}

	query := r.builder.Insert("authz.role_permissions").
		Columns("role_id", "permission_id")

	for _, permissionID := range permissionIDs {
		query = query.Values(roleID, permissionID)
	}

	stmt, args, err := query.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build assign role permissions sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("assign role permissions: %w", err)
	}

	return int(res.RowsAffected()), nil
}

// RevokePermissions removes the provided permissions from the role and returns the number of rows deleted.
func (r *RoleRepository) RevokePermissions(ctx context.Context, roleID string, permissionIDs []string) (int, error) {
	if len(permissionIDs) == 0 {
		return 0, nil
	}

	stmt, args, err := r.builder.Delete("authz.role_permissions").
		Where(squirrel.Eq{"role_id": roleID}).
		Where(squirrel.Eq{"permission_id": permissionIDs}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke role permissions sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke role permissions: %w", err)
	}

	return int(res.RowsAffected()), nil
}

// GrantToUser persists a user role grant, reactivating a previous identical grant.
func (r *RoleRepository) GrantToUser(ctx context.Context, grant domain.UserRole) error {
	stmt, args, err := r.builder.Insert("authz.user_roles").
		Columns("user_id", "role_id", "organization_id", "granted_by", "granted_at", "expires_at", "active").
		Values(grant.UserID, grant.RoleID, grant.OrganizationID, grant.GrantedBy, grant.GrantedAt, grant.ExpiresAt, grant.Active).
		Suffix("ON CONFLICT (user_id, role_id, organization_id) DO UPDATE SET granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at, active = EXCLUDED.active").
		ToSql()
	if err != nil {
		return fmt.Errorf("build grant role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}

	return nil
}

// RevokeFromUser removes a user's role grant, optionally narrowed to an organization.
func (r *RoleRepository) RevokeFromUser(ctx context.Context, userID, roleID string, organizationID *string) error {
	query := r.builder.Delete("authz.user_roles").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"role_id": roleID})

	if organizationID != nil {
		query = query.Where(squirrel.Eq{"organization_id": *organizationID})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build revoke role grant sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke role grant: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListActiveGrantsByUser returns active, unexpired grants joined to their roles.
func (r *RoleRepository) ListActiveGrantsByUser(ctx context.Context, userID string, now time.Time) ([]domain.RoleGrant, error) {
	stmt, args, err := r.builder.Select(
		"r.id",
		"r.name",
		"r.description",
		"r.organization_id",
		"r.is_system_role",
		"r.active",
		"ur.organization_id",
		"ur.expires_at",
	).
		From("authz.user_roles ur").
		Join("authz.roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		Where(squirrel.Eq{"ur.active": true}).
		Where(squirrel.Or{
			squirrel.Eq{"ur.expires_at": nil},
			squirrel.Gt{"ur.expires_at": now},
		}).
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build grants by user sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants by user: %w", err)
	}
	defer rows.Close()

	grants := make([]domain.RoleGrant, 0)
	for rows.Next() {
		var (
			grant           domain.RoleGrant
			description     sql.NullString
			roleOrgID       sql.NullString
			grantOrgID      sql.NullString
			grantExpiration sql.NullTime
		)
		if err := rows.Scan(
			&grant.Role.ID,
			&grant.Role.Name,
			&description,
			&roleOrgID,
			&grant.Role.IsSystemRole,
			&grant.Role.Active,
			&grantOrgID,
			&grantExpiration,
		); err != nil {
			return nil, fmt.Errorf("scan grant by user: %w", err)
		}
		if description.Valid {
			grant.Role.Description = &description.String
		}
		if roleOrgID.Valid {
			grant.Role.OrganizationID = &roleOrgID.String
		}
		if grantOrgID.Valid {
			grant.OrganizationID = &grantOrgID.String
		}
		if grantExpiration.Valid {
			expiresAt := grantExpiration.Time
			grant.ExpiresAt = &expiresAt
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants by user: %w", err)
	}

	return grants, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
