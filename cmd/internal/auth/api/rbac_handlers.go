package authapi

import (
	"net/http"
	"strings"

	"gatehouse/cmd/internal/auth/rbac"
)

// manage is the permission gating rbac mutations.
const managePermission = "rbac:manage"

func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleRolesList(w, r)
	case http.MethodPost:
		h.handleRoleCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handlePermissionsList(w, r)
	case http.MethodPost:
		h.handlePermissionCreate(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRolesList(w http.ResponseWriter, r *http.Request) {
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	roles, err := h.rbac.ListRoles(r.Context())
	if err != nil {
		h.log.Error("rbac.roles.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{Name: role.Name, Description: role.Description})
	}
	writeJSON(w, http.StatusOK, rolesResponse{Roles: out})
}

func (h *Handler) handlePermissionsList(w http.ResponseWriter, r *http.Request) {
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}
	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	perms, err := h.rbac.ListPermissions(r.Context())
	if err != nil {
		h.log.Error("rbac.permissions.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	writeJSON(w, http.StatusOK, permissionsResponse{Permissions: names})
}

func (h *Handler) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireManage(w, r) {
		return
	}

	var req createRoleRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	role, err := h.rbac.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeRBACError(w, "rbac.roles.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, roleResponse{Name: role.Name, Description: role.Description})
}

func (h *Handler) handlePermissionCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireManage(w, r) {
		return
	}

	var req createPermissionRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	p, err := h.rbac.CreatePermission(r.Context(), req.Name)
	if err != nil {
		h.writeRBACError(w, "rbac.permissions.create", err)
		return
	}
	writeJSON(w, http.StatusCreated, createPermissionResponse{Name: p.Name})
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireManage(w, r) {
		return
	}

	var req grantRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Role) == "" || strings.TrimSpace(req.Permission) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "role and permission are required")
		return
	}

	if err := h.rbac.GrantPermission(r.Context(), req.Role, req.Permission); err != nil {
		h.writeRBACError(w, "rbac.grant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireManage(w, r) {
		return
	}

	var req assignRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.PrincipalID) == "" || strings.TrimSpace(req.Role) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "principal_id and role are required")
		return
	}

	if err := h.rbac.AssignRole(r.Context(), req.PrincipalID, req.Role); err != nil {
		h.writeRBACError(w, "rbac.assign", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.requireManage(w, r) {
		return
	}

	var req assignRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.PrincipalID) == "" || strings.TrimSpace(req.Role) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "principal_id and role are required")
		return
	}

	if err := h.rbac.UnassignRole(r.Context(), req.PrincipalID, req.Role); err != nil {
		h.writeRBACError(w, "rbac.unassign", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireManage authenticates the caller and checks the rbac management
// permission.
func (h *Handler) requireManage(w http.ResponseWriter, r *http.Request) bool {
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return false
	}
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return false
	}
	if err := h.core.RequirePermission(r.Context(), claims.PrincipalID, managePermission); err != nil {
		writeError(w, http.StatusForbidden, "forbidden", "missing permission")
		return false
	}
	return true
}

func (h *Handler) writeRBACError(w http.ResponseWriter, op string, err error) {
	switch {
	case rbac.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
	case rbac.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", "name already exists")
	case rbac.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "role, permission, or principal not found")
	default:
		h.log.Error(op+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
