package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gatehouse/cmd/identity"
	"gatehouse/cmd/internal/auth"
	"gatehouse/cmd/internal/auth/rbac"
	"gatehouse/cmd/internal/auth/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler wires HTTP auth endpoints to the auth core.
type Handler struct {
	log *slog.Logger
	cfg Config

	dbEnabled bool
	pool      *pgxpool.Pool

	core *auth.Service
	rbac rbac.Store
}

// NewHandler constructs an auth Handler. If dbEnabled is false, handlers
// return 503.
func NewHandler(log *slog.Logger, pool *pgxpool.Pool, cfg Config, sessCfg session.Config, dbEnabled bool) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		dbEnabled: dbEnabled,
		pool:      pool,
	}

	if !dbEnabled {
		return h, nil
	}
	if pool == nil {
		return nil, errors.New("auth: nil db pool")
	}

	principals, err := identity.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}

	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		return nil, err
	}
	sessStore := session.NewPostgresStore(pool)
	sessions := session.NewService(sessCfg, pool, sessStore, tokens, log)

	rbacStore, err := rbac.NewPostgresStore(pool)
	if err != nil {
		return nil, err
	}
	h.rbac = rbacStore

	core, err := auth.NewService(principals, sessions, rbacStore, log)
	if err != nil {
		return nil, err
	}
	h.core = core

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout_all", h.handleLogoutAll)
	mux.HandleFunc("/me", h.handleMe)
	mux.HandleFunc("/me/permissions", h.handleMyPermissions)
	mux.HandleFunc("/roles", h.handleRoles)
	mux.HandleFunc("/roles/grant", h.handleGrant)
	mux.HandleFunc("/roles/assign", h.handleAssign)
	mux.HandleFunc("/roles/unassign", h.handleUnassign)
	mux.HandleFunc("/permissions", h.handlePermissions)
}

// Core returns the underlying auth service (nil when DB is disabled).
func (h *Handler) Core() *auth.Service {
	if h == nil {
		return nil
	}
	return h.core
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	p, issued, err := h.core.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrConflict):
			writeError(w, http.StatusConflict, "conflict", "email already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditRegister(ctx, p.ID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))

	respSession := toSessionResponse(issued)
	if h.shouldUseWebCookieTransport(req.Platform) {
		if _, err := h.setWebSessionCookies(w, issued.RefreshToken, issued.RefreshExp); err != nil {
			h.log.Error("auth.register.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		respSession.RefreshToken = ""
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Principal: toPrincipalResponse(p),
		Session:   respSession,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	issued, err := h.core.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			h.auditLoginFailed(ctx, ip, ua, identity.NormalizeEmail(req.Email))
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	p, err := h.core.GetPrincipal(ctx, issued.PrincipalID)
	if err != nil {
		h.log.Error("auth.login.principal.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLoginSuccess(ctx, issued.PrincipalID, ip, ua)

	respSession := toSessionResponse(issued)
	if h.shouldUseWebCookieTransport(req.Platform) {
		if _, err := h.setWebSessionCookies(w, issued.RefreshToken, issued.RefreshExp); err != nil {
			h.log.Error("auth.login.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		respSession.RefreshToken = ""
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Principal: toPrincipalResponse(p),
		Session:   respSession,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if refreshToken == "" {
			refreshToken = cookieToken
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	issued, err := h.core.Refresh(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			h.auditRefreshRejected(ctx, ip, ua, "expired")
			writeError(w, http.StatusUnauthorized, "token_expired", "refresh token expired")
		case errors.Is(err, auth.ErrForbidden):
			h.auditRefreshRejected(ctx, ip, ua, "forbidden")
			writeError(w, http.StatusForbidden, "forbidden", "principal deactivated")
		case errors.Is(err, auth.ErrUnauthenticated):
			h.auditRefreshRejected(ctx, ip, ua, "invalid")
			writeError(w, http.StatusUnauthorized, "token_invalid", "refresh token invalid")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditRefreshSuccess(ctx, issued.PrincipalID, ip, ua)

	respSession := toSessionResponse(issued)
	if fromCookie || h.shouldUseWebCookieTransport(req.Platform) {
		if _, err := h.setWebSessionCookies(w, issued.RefreshToken, issued.RefreshExp); err != nil {
			h.log.Error("auth.refresh.web_cookie.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		respSession.RefreshToken = ""
	}

	writeJSON(w, http.StatusOK, refreshResponse{Session: respSession})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if cookieToken, ok := h.refreshTokenFromCookie(r); ok {
		fromCookie = true
		if refreshToken == "" {
			refreshToken = cookieToken
		}
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	// Logout is idempotent: absent or already revoked tokens still succeed.
	if refreshToken != "" {
		if err := h.core.Logout(ctx, refreshToken); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
	}

	h.auditLogout(ctx, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.core.LogoutAll(ctx, claims.PrincipalID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogoutAll(ctx, claims.PrincipalID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.clearWebSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	p, err := h.core.GetPrincipal(r.Context(), claims.PrincipalID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "not_found", "principal not found")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{Principal: toPrincipalResponse(p)})
}

func (h *Handler) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.dbEnabled {
		writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured")
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	perms, err := h.core.EffectivePermissions(r.Context(), claims.PrincipalID)
	if err != nil {
		h.log.Error("auth.me.permissions.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if perms == nil {
		perms = []string{}
	}

	writeJSON(w, http.StatusOK, permissionsResponse{Permissions: perms})
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return session.AccessClaims{}, false
	}
	claims, err := h.core.VerifyAccessToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return session.AccessClaims{}, false
	}
	return claims, true
}

func toPrincipalResponse(p identity.Principal) principalResponse {
	return principalResponse{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
	}
}

func toSessionResponse(issued session.Issued) sessionResponse {
	return sessionResponse{
		AccessToken:      issued.AccessToken,
		AccessExpiresAt:  issued.AccessExp,
		RefreshToken:     issued.RefreshToken,
		RefreshExpiresAt: issued.RefreshExp,
	}
}
