package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencolegio/opencolegio/internal/platform/httpx"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PGRepository provides PostgreSQL backed persistence for the access control
// store. Cascade removal of relation rows is delegated to the ON DELETE
// CASCADE foreign keys declared in the schema, so a role or permission delete
// is a single statement and never observable half-done.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const catalogColumns = `id, name, guard_name, created_at, updated_at`

// ListRoles returns all roles.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+catalogColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, name, guard string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, guard_name) VALUES ($1, $2) RETURNING `+catalogColumns,
		name, guard,
	).Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt)
	if isUniqueViolation(err) {
		return Role{}, fmt.Errorf("rbac: role %q: %w", name, httpx.ErrDuplicate)
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role; user_roles and role_permissions rows go with it.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rbac: role %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// RoleExists reports whether a role row exists.
func (r *PGRepository) RoleExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, id)
}

// ListPermissions returns all permissions.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.queryPermissions(ctx, `SELECT `+catalogColumns+` FROM permissions ORDER BY id`)
}

// CreatePermission inserts a new permission.
func (r *PGRepository) CreatePermission(ctx context.Context, name, guard string) (Permission, error) {
	var perm Permission
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (name, guard_name) VALUES ($1, $2) RETURNING `+catalogColumns,
		name, guard,
	).Scan(&perm.ID, &perm.Name, &perm.GuardName, &perm.CreatedAt, &perm.UpdatedAt)
	if isUniqueViolation(err) {
		return Permission{}, fmt.Errorf("rbac: permission %q: %w", name, httpx.ErrDuplicate)
	}
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// DeletePermission removes a permission; role_permissions and user_permissions
// rows go with it.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rbac: permission %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// PermissionExists reports whether a permission row exists.
func (r *PGRepository) PermissionExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE id = $1)`, id)
}

// UserExists reports whether a user row exists.
func (r *PGRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id)
}

// AttachPermissionToRole links a permission to a role. Re-attaching is a no-op.
func (r *PGRepository) AttachPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT (role_id, permission_id) DO NOTHING`,
		roleID, permissionID,
	)
	return relationError(err)
}

// DetachPermissionFromRole unlinks a permission from a role. A missing link is
// success: the operation is defined by the desired end state.
func (r *PGRepository) DetachPermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID,
	)
	return err
}

// AssignRoleToUser links a role to a user. Re-assigning is a no-op.
func (r *PGRepository) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID,
	)
	return relationError(err)
}

// RemoveRoleFromUser unlinks a role from a user.
func (r *PGRepository) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`,
		userID, roleID,
	)
	return err
}

// GrantPermissionToUser links a permission directly to a user.
func (r *PGRepository) GrantPermissionToUser(ctx context.Context, userID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, permission_id) DO NOTHING`,
		userID, permissionID,
	)
	return relationError(err)
}

// RevokePermissionFromUser unlinks a directly granted permission from a user.
func (r *PGRepository) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`,
		userID, permissionID,
	)
	return err
}

// UserRoleNames returns the names of all roles assigned to the user.
func (r *PGRepository) UserRoleNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 ORDER BY r.name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RolePermissionsOfUser returns the permissions reachable through the user's
// assigned roles. Duplicates across roles may appear; the service deduplicates.
func (r *PGRepository) RolePermissionsOfUser(ctx context.Context, userID int64) ([]Permission, error) {
	return r.queryPermissions(ctx,
		`SELECT p.id, p.name, p.guard_name, p.created_at, p.updated_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = $1
		 ORDER BY p.name`,
		userID,
	)
}

// DirectPermissionsOfUser returns permissions granted to the user directly.
func (r *PGRepository) DirectPermissionsOfUser(ctx context.Context, userID int64) ([]Permission, error) {
	return r.queryPermissions(ctx,
		`SELECT p.id, p.name, p.guard_name, p.created_at, p.updated_at
		 FROM permissions p
		 JOIN user_permissions up ON up.permission_id = p.id
		 WHERE up.user_id = $1
		 ORDER BY p.name`,
		userID,
	)
}

func (r *PGRepository) queryPermissions(ctx context.Context, sql string, args ...any) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.GuardName, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (r *PGRepository) exists(ctx context.Context, sql string, id int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, sql, id).Scan(&ok); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// relationError maps a foreign key violation on a relation insert to
// NotFound. The service checks both parents before inserting, but the check
// and the insert are separate statements, so a concurrent parent delete can
// still surface here; the vanished parent is a 404, not a server fault.
func relationError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return fmt.Errorf("rbac: relation target vanished: %w", httpx.ErrNotFound)
	}
	return err
}
