package rbac

import (
	"regexp"
	"strings"
	"time"
)

// Role groups permissions under a unique name.
type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Permission is a named capability in "resource:action" form, e.g.
// "articles:write".
type Permission struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

var (
	roleNameRe       = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,63}$`)
	permissionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*:[a-z][a-z0-9_-]*$`)
)

// ValidateRoleName rejects names outside the lowercase slug form.
func ValidateRoleName(name string) error {
	if !roleNameRe.MatchString(strings.TrimSpace(name)) {
		return OpError{Op: "rbac.ValidateRoleName", Kind: ErrInvalidInput, Msg: "role name must be a lowercase slug"}
	}
	return nil
}

// ValidatePermissionName rejects names that are not "resource:action".
func ValidatePermissionName(name string) error {
	if !permissionNameRe.MatchString(strings.TrimSpace(name)) {
		return OpError{Op: "rbac.ValidatePermissionName", Kind: ErrInvalidInput, Msg: "permission name must be resource:action"}
	}
	return nil
}
