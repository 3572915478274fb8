// Package rbac implements role-based access control: roles, named
// permissions, role-permission grants, principal-role assignments, and the
// aggregation of a principal's effective permission set.
//
// Permissions are named "resource:action" strings. A principal's effective
// permissions are the deduplicated union over all assigned roles; aggregation
// is a set, so assigning overlapping roles never produces duplicates.
package rbac
