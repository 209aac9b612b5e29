package rbac

import "context"

// Repository is the persistence port for the access control store. It exposes
// row and relation level operations only; set semantics (effective permission
// union, membership checks) live in the Service so they stay testable against
// an in-memory implementation.
//
// Contracts the implementations must honor:
//   - Create* return an error wrapping httpx.ErrDuplicate when (name, guard)
//     already exists; the race is resolved by the store's unique constraint.
//   - Delete* return an error wrapping httpx.ErrNotFound when no row was
//     removed.
//     Relation rows referencing the deleted record disappear atomically with
//     it (store-level cascade).
//   - Attach/Assign/Grant are idempotent upserts; Detach/Remove/Revoke are
//     unconditional deletes where a missing row is success.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name, guard string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	RoleExists(ctx context.Context, id int64) (bool, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, name, guard string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	PermissionExists(ctx context.Context, id int64) (bool, error)

	UserExists(ctx context.Context, id int64) (bool, error)

	AttachPermissionToRole(ctx context.Context, roleID, permissionID int64) error
	DetachPermissionFromRole(ctx context.Context, roleID, permissionID int64) error

	AssignRoleToUser(ctx context.Context, userID, roleID int64) error
	RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error

	GrantPermissionToUser(ctx context.Context, userID, permissionID int64) error
	RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) error

	UserRoleNames(ctx context.Context, userID int64) ([]string, error)
	RolePermissionsOfUser(ctx context.Context, userID int64) ([]Permission, error)
	DirectPermissionsOfUser(ctx context.Context, userID int64) ([]Permission, error)
}
