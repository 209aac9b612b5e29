package rbac

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/opencolegio/opencolegio/internal/platform/httpx"
)

// Service orchestrates the access control store: role and permission catalogs,
// their relations to users, and effective permission resolution.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// normalizeName trims and NFC-normalizes a role or permission name so that
// accented names compare byte-wise regardless of the client's encoding form.
// Case is preserved: names are case-sensitive.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// CreateRole inserts a new role under the default guard.
func (s *Service) CreateRole(ctx context.Context, name string) (Role, error) {
	name = normalizeName(name)
	if name == "" {
		return Role{}, fmt.Errorf("rbac: role name required: %w", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, DefaultGuard)
}

// DeleteRole removes a role and, atomically with it, every user assignment
// and permission attachment referencing it.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission inserts a new permission under the default guard.
func (s *Service) CreatePermission(ctx context.Context, name string) (Permission, error) {
	name = normalizeName(name)
	if name == "" {
		return Permission{}, fmt.Errorf("rbac: permission name required: %w", httpx.ErrValidation)
	}
	return s.repo.CreatePermission(ctx, name, DefaultGuard)
}

// DeletePermission removes a permission and every role attachment and direct
// user grant referencing it.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.repo.DeletePermission(ctx, id)
}

// AssignPermissionToRole attaches a permission to a role. Attaching an
// already-held permission succeeds without creating a duplicate row.
func (s *Service) AssignPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.requirePermission(ctx, permissionID); err != nil {
		return err
	}
	return s.repo.AttachPermissionToRole(ctx, roleID, permissionID)
}

// RevokePermissionFromRole detaches a permission from a role. Revoking a
// permission the role does not hold succeeds: the contract is the end state.
func (s *Service) RevokePermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.requirePermission(ctx, permissionID); err != nil {
		return err
	}
	return s.repo.DetachPermissionFromRole(ctx, roleID, permissionID)
}

// AssignRoleToUser assigns a role to a user, idempotently.
func (s *Service) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.AssignRoleToUser(ctx, userID, roleID)
}

// RevokeRoleFromUser removes a role from a user, idempotently.
func (s *Service) RevokeRoleFromUser(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.requireRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.RemoveRoleFromUser(ctx, userID, roleID)
}

// GrantPermissionToUser grants a permission directly to a user, bypassing
// roles, idempotently.
func (s *Service) GrantPermissionToUser(ctx context.Context, userID, permissionID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.requirePermission(ctx, permissionID); err != nil {
		return err
	}
	return s.repo.GrantPermissionToUser(ctx, userID, permissionID)
}

// RevokePermissionFromUser removes a direct permission grant, idempotently.
func (s *Service) RevokePermissionFromUser(ctx context.Context, userID, permissionID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.requirePermission(ctx, permissionID); err != nil {
		return err
	}
	return s.repo.RevokePermissionFromUser(ctx, userID, permissionID)
}

// UserRoles returns the names of every role assigned to the user.
func (s *Service) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	names, err := s.repo.UserRoleNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// UserPermissions resolves the user's effective permission set: the union of
// permissions carried by the user's roles and permissions granted directly,
// deduplicated by name. Computed fresh on every call, never cached.
func (s *Service) UserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	viaRoles, err := s.repo.RolePermissionsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	direct, err := s.repo.DirectPermissionsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(viaRoles)+len(direct))
	effective := make([]Permission, 0, len(viaRoles)+len(direct))
	for _, perm := range append(viaRoles, direct...) {
		if _, ok := seen[perm.Name]; ok {
			continue
		}
		seen[perm.Name] = struct{}{}
		effective = append(effective, perm)
	}
	sort.Slice(effective, func(i, j int) bool { return effective[i].Name < effective[j].Name })
	return effective, nil
}

// HasRole reports whether roleName is among the user's assigned roles. A name
// matching no assigned role yields false even when no such role exists at all;
// only an unknown user is an error.
func (s *Service) HasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	names, err := s.UserRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	roleName = normalizeName(roleName)
	for _, name := range names {
		if name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission reports whether permissionName is in the user's effective
// permission set.
func (s *Service) HasPermission(ctx context.Context, userID int64, permissionName string) (bool, error) {
	perms, err := s.UserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	permissionName = normalizeName(permissionName)
	for _, perm := range perms {
		if perm.Name == permissionName {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) requireUser(ctx context.Context, id int64) error {
	ok, err := s.repo.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rbac: user %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (s *Service) requireRole(ctx context.Context, id int64) error {
	ok, err := s.repo.RoleExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rbac: role %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (s *Service) requirePermission(ctx context.Context, id int64) error {
	ok, err := s.repo.PermissionExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rbac: permission %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}
