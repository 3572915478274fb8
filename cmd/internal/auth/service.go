package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gatehouse/cmd/identity"
	"gatehouse/cmd/internal/auth/rbac"
	"gatehouse/cmd/internal/auth/session"
	"gatehouse/cmd/internal/metrics"
)

// Sessions is the slice of the session service the core needs.
type Sessions interface {
	Issue(ctx context.Context, now time.Time, principalID, email string) (session.Issued, error)
	Rotate(ctx context.Context, now time.Time, refreshPlain string) (session.Issued, error)
	VerifyAccessToken(token string, now time.Time) (session.AccessClaims, error)
	Revoke(ctx context.Context, refreshPlain string) error
	RevokeAll(ctx context.Context, principalID string) error
}

// Permissions is the slice of the rbac store the core needs.
type Permissions interface {
	PermissionsForPrincipal(ctx context.Context, principalID string) ([]string, error)
	RolesForPrincipal(ctx context.Context, principalID string) ([]rbac.Role, error)
}

// Service is the authentication core.
type Service struct {
	principals identity.Store
	sessions   Sessions
	perms      Permissions
	log        *slog.Logger

	// dummyHash is verified against when the login identifier is unknown, so
	// both failure cases pay the Argon2id cost.
	dummyHash string

	now func() time.Time
}

// NewService constructs the core. The dummy credential hash is computed here
// so the first failed login is as slow as every later one.
func NewService(principals identity.Store, sessions Sessions, perms Permissions, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	dummy, err := identity.DummyHash()
	if err != nil {
		return nil, err
	}
	return &Service{
		principals: principals,
		sessions:   sessions,
		perms:      perms,
		log:        log,
		dummyHash:  dummy,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// RegisterInput describes a registration request.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Register creates a principal and issues its first token pair. A duplicate
// login identifier fails with ErrConflict; credential policy violations fail
// with ErrInvalidInput.
func (s *Service) Register(ctx context.Context, in RegisterInput) (identity.Principal, session.Issued, error) {
	now := s.now()

	p, err := s.principals.CreatePrincipal(ctx, identity.CreatePrincipalInput{
		Email:    in.Email,
		Name:     in.Name,
		Password: in.Password,
		Now:      now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			s.log.Info("auth.register.conflict")
			return identity.Principal{}, session.Issued{}, ErrConflict
		case identity.IsInvalidInput(err):
			return identity.Principal{}, session.Issued{}, ErrInvalidInput
		default:
			return identity.Principal{}, session.Issued{}, err
		}
	}

	issued, err := s.sessions.Issue(ctx, now, p.ID, p.Email)
	if err != nil {
		return identity.Principal{}, session.Issued{}, err
	}

	s.log.Info("auth.register.ok", "principal_id", p.ID)
	return p, issued, nil
}

// Login verifies credentials and issues a fresh token pair.
//
// Unknown identifier and wrong secret return the identical
// ErrInvalidCredentials; when the identifier is unknown a dummy hash is
// verified so the two cases also cost the same wall time. Lookup is already
// restricted to live principals, so a tombstoned account fails the same way.
func (s *Service) Login(ctx context.Context, email, password string) (session.Issued, error) {
	now := s.now()

	a, err := s.principals.GetAuthByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			// Burn the same verification cost as the found path.
			_, _ = identity.VerifyPassword(password, s.dummyHash)
			metrics.Logins.WithLabelValues("unauthenticated").Inc()
			s.log.Info("auth.login.fail")
			return session.Issued{}, ErrInvalidCredentials
		}
		metrics.Logins.WithLabelValues("error").Inc()
		return session.Issued{}, err
	}

	ok, err := identity.VerifyPassword(password, a.PasswordHash)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return session.Issued{}, err
	}
	if !ok {
		metrics.Logins.WithLabelValues("unauthenticated").Inc()
		s.log.Info("auth.login.fail")
		return session.Issued{}, ErrInvalidCredentials
	}

	issued, err := s.sessions.Issue(ctx, now, a.Principal.ID, a.Principal.Email)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return session.Issued{}, err
	}

	metrics.Logins.WithLabelValues("ok").Inc()
	s.log.Info("auth.login.ok", "principal_id", a.Principal.ID)
	return issued, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued atomically. A replayed or unknown token fails with
// ErrTokenInvalid, a stale one with ErrTokenExpired.
func (s *Service) Refresh(ctx context.Context, refreshPlain string) (session.Issued, error) {
	issued, err := s.sessions.Rotate(ctx, s.now(), refreshPlain)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenExpired):
			metrics.Refreshes.WithLabelValues("expired").Inc()
			return session.Issued{}, ErrTokenExpired
		case errors.Is(err, session.ErrTokenInvalid):
			metrics.Refreshes.WithLabelValues("invalid").Inc()
			return session.Issued{}, ErrTokenInvalid
		case errors.Is(err, session.ErrPrincipalInactive):
			metrics.Refreshes.WithLabelValues("forbidden").Inc()
			return session.Issued{}, ErrForbidden
		default:
			metrics.Refreshes.WithLabelValues("error").Inc()
			return session.Issued{}, err
		}
	}

	metrics.Refreshes.WithLabelValues("ok").Inc()
	s.log.Info("auth.refresh.ok", "principal_id", issued.PrincipalID)
	return issued, nil
}

// Logout revokes the session behind a refresh token. Idempotent: revoking an
// absent or already revoked token succeeds.
func (s *Service) Logout(ctx context.Context, refreshPlain string) error {
	return s.sessions.Revoke(ctx, refreshPlain)
}

// LogoutAll revokes every session of a principal.
func (s *Service) LogoutAll(ctx context.Context, principalID string) error {
	if strings.TrimSpace(principalID) == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.RevokeAll(ctx, principalID); err != nil {
		return err
	}
	s.log.Info("auth.logout_all.ok", "principal_id", principalID)
	return nil
}

// VerifyAccessToken checks signature and expiry of an access token and
// returns its claims. Stateless: revocation cuts off at refresh time, not
// mid-lifetime.
func (s *Service) VerifyAccessToken(token string) (session.AccessClaims, error) {
	claims, err := s.sessions.VerifyAccessToken(token, s.now())
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) {
			return session.AccessClaims{}, ErrTokenExpired
		}
		return session.AccessClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// GetPrincipal loads a principal by id.
func (s *Service) GetPrincipal(ctx context.Context, id string) (identity.Principal, error) {
	p, err := s.principals.GetByID(ctx, id)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Principal{}, ErrNotFound
		}
		return identity.Principal{}, err
	}
	return p, nil
}

// EffectivePermissions returns the deduplicated union of permission names
// over the principal's roles. A principal with no roles gets an empty set,
// not an error.
func (s *Service) EffectivePermissions(ctx context.Context, principalID string) ([]string, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, ErrInvalidInput
	}
	return s.perms.PermissionsForPrincipal(ctx, principalID)
}

// Roles returns the roles assigned to a principal.
func (s *Service) Roles(ctx context.Context, principalID string) ([]rbac.Role, error) {
	if strings.TrimSpace(principalID) == "" {
		return nil, ErrInvalidInput
	}
	return s.perms.RolesForPrincipal(ctx, principalID)
}

// RequirePermission reports whether the principal's effective set contains
// the named permission, failing with ErrForbidden when it does not.
func (s *Service) RequirePermission(ctx context.Context, principalID, permission string) error {
	perms, err := s.perms.PermissionsForPrincipal(ctx, principalID)
	if err != nil {
		return err
	}
	for _, p := range perms {
		if p == permission {
			return nil
		}
	}
	return ErrForbidden
}

// Deactivate tombstones a principal and revokes all of its sessions. The
// tombstone wins even if session cleanup fails; live lookups already exclude
// the principal.
func (s *Service) Deactivate(ctx context.Context, principalID string) error {
	if err := s.principals.Deactivate(ctx, principalID, s.now()); err != nil {
		if identity.IsNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	if err := s.sessions.RevokeAll(ctx, principalID); err != nil {
		s.log.Error("auth.deactivate.revoke_all", "principal_id", principalID, "err", err)
	}
	s.log.Info("auth.deactivate.ok", "principal_id", principalID)
	return nil
}
