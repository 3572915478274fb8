package rbac

import "context"

// Store is the persistence contract for roles, permissions, and assignments.
//
// Grant and assignment operations address roles and permissions by name; the
// surrounding ids are storage detail. All operations are safe to retry:
// duplicate grants and assignments are absorbed, not errors.
type Store interface {
	CreateRole(ctx context.Context, name, description string) (Role, error)
	CreatePermission(ctx context.Context, name string) (Permission, error)

	GrantPermission(ctx context.Context, roleName, permissionName string) error
	AssignRole(ctx context.Context, principalID, roleName string) error
	UnassignRole(ctx context.Context, principalID, roleName string) error

	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	RolesForPrincipal(ctx context.Context, principalID string) ([]Role, error)

	// PermissionsForPrincipal returns the deduplicated, sorted union of
	// permission names over every role assigned to the principal.
	PermissionsForPrincipal(ctx context.Context, principalID string) ([]string, error)
}
