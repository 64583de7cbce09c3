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

// PermissionRepository implements port.PermissionRepository over PostgreSQL.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func permissionColumns(prefix string) []string {
	columns := []string{"id", "name", "resource", "action", "scope", "description", "active", "created_at"}
	if prefix == "" {
		return columns
	}
	qualified := make([]string, len(columns))
	for i, column := range columns {
		qualified[i] = prefix + "." + column
	}
	return qualified
}

func scanPermission(scan func(dest ...any) error) (*domain.Permission, error) {
	var (
		permission  domain.Permission
		description sql.NullString
	)

	if err := scan(
		&permission.ID,
		&permission.Name,
		&permission.Resource,
		&permission.Action,
		&permission.Scope,
		&description,
		&permission.Active,
		&permission.CreatedAt,
	); err != nil {
		return nil, err
	}

	if description.Valid {
		permission.Description = &description.String
	}

	return &permission, nil
}

// GetByName retrieves a permission by its unique canonical name.
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns("")...).
		From("authz.permissions").
		Where(squirrel.Eq{"name": name}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission by name sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	permission, err := scanPermission(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan permission by name: %w", err)
	}

	return permission, nil
}

// List retrieves the full catalog sorted by canonical name.
func (r *PermissionRepository) List(ctx context.Context) ([]domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns("")...).
		From("authz.permissions").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	return r.queryPermissions(ctx, stmt, args)
}

// ListByRole returns the permissions currently attached to the role. This is
// the authoritative read behind the role-permission cache.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns("p")...).
		From("authz.permissions p").
		Join("authz.role_permissions rp ON rp.permission_id = p.id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		OrderBy("p.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by role sql: %w", err)
	}

	return r.queryPermissions(ctx, stmt, args)
}

func (r *PermissionRepository) queryPermissions(ctx context.Context, stmt string, args []any) ([]domain.Permission, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		permission, err := scanPermission(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		permissions = append(permissions, *permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return permissions, nil
}

// Seed upserts catalog entries keyed by canonical name and returns the number
// of rows written. Re-seeding the same catalog is a no-op.
func (r *PermissionRepository) Seed(ctx context.Context, permissions []domain.Permission) (int, error) {
	if len(permissions) == 0 {
		return 0, nil
	}

	query := r.builder.Insert("authz.permissions").
		Columns("id", "name", "resource", "action", "scope", "description", "active", "created_at")

	for _, permission := range permissions {
		query = query.Values(
			permission.ID,
			permission.Name,
			permission.Resource,
			permission.Action,
			permission.Scope,
			permission.Description,
			permission.Active,
			squirrel.Expr("NOW()"),
		)
	}

	stmt, args, err := query.
		Suffix("ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, active = EXCLUDED.active WHERE authz.permissions.description IS DISTINCT FROM EXCLUDED.description OR authz.permissions.active IS DISTINCT FROM EXCLUDED.active").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build seed permissions sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("seed permissions: %w", err)
	}

	return int(res.RowsAffected()), nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
