package authapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
)

func (h *Handler) auditRegister(ctx context.Context, principalID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.register", &principalID, ip, ua, nil)
}

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua string, identifier string) {
	h.insertAudit(ctx, "auth.login.failed", nil, ip, ua, map[string]any{
		"identifier": identifier,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, principalID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.login.success", &principalID, ip, ua, nil)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, principalID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", &principalID, ip, ua, nil)
}

func (h *Handler) auditRefreshRejected(ctx context.Context, ip net.IP, ua string, reason string) {
	h.insertAudit(ctx, "auth.refresh.rejected", nil, ip, ua, map[string]any{
		"reason": reason,
	})
}

func (h *Handler) auditLogout(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout", nil, ip, ua, nil)
}

func (h *Handler) auditLogoutAll(ctx context.Context, principalID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout_all", &principalID, ip, ua, nil)
}

// insertAudit writes a best-effort audit row. Failures are logged, never
// surfaced: the audit trail must not break the auth path.
func (h *Handler) insertAudit(ctx context.Context, action string, principalID *string, ip net.IP, ua string, meta map[string]any) {
	if h == nil || h.pool == nil || !h.dbEnabled {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	var ipVal any
	if ip != nil {
		ipVal = ip.String()
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO gatehouse.auth_audit (
			principal_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, now(), $3, $4, $5::jsonb)
	`, principalID, action, ipVal, trimOrNil(ua), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
