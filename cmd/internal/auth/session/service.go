package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gatehouse/cmd/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service implements the high-level session operations: issuing an
// access/refresh pair under the device cap, single-use rotation, and
// revocation.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store
	log    *slog.Logger

	// pool creates the explicit transactions that make cap enforcement and
	// rotation atomic.
	pool *pgxpool.Pool
}

// Issued is the result of issuing or rotating a session.
// It includes a short-lived access token and an opaque refresh token.
type Issued struct {
	PrincipalID  string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service with the provided configuration, store, and
// token manager. The pool is required for issuance and rotation.
func NewService(cfg Config, pool *pgxpool.Pool, store Store, tokens AccessTokenManager, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, pool: pool, store: store, tokens: tokens, log: log}
}

// VerifyAccessToken verifies signature and expiry of an access token.
// Stateless: no store lookup.
func (s *Service) VerifyAccessToken(token string, now time.Time) (AccessClaims, error) {
	return s.tokens.Verify(token, now)
}

// Issue creates a new session for a principal and returns fresh tokens.
//
// Count, cap eviction, and insert run inside one transaction holding the
// per-principal lock, so two concurrent issuances cannot jointly exceed
// MaxDevices. Refresh tokens are opaque random strings; only their keyed
// hash is persisted.
func (s *Service) Issue(ctx context.Context, now time.Time, principalID, email string) (Issued, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Issued{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	refreshPlain, refreshHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}
	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	if err := s.issueLocked(ctx, tx, now, principalID, refreshHash, refreshExp); err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(principalID, email, now)
	if err != nil {
		return Issued{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Issued{}, err
	}

	return Issued{
		PrincipalID:  principalID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// issueLocked runs the cap-enforcing insert: lock principal, count, evict
// overflow oldest-first in one bounded query, insert. After the insert at
// most MaxDevices rows remain.
func (s *Service) issueLocked(ctx context.Context, tx pgx.Tx, now time.Time, principalID, refreshHash string, refreshExp time.Time) error {
	if err := lockPrincipalTx(ctx, tx, principalID); err != nil {
		return err
	}

	n, err := countByPrincipalTx(ctx, tx, principalID)
	if err != nil {
		return err
	}

	if n >= s.cfg.MaxDevices {
		overflow := n - (s.cfg.MaxDevices - 1)
		evicted, err := evictOldestTx(ctx, tx, principalID, overflow)
		if err != nil {
			return err
		}
		if evicted > 0 {
			metrics.SessionsEvicted.Add(float64(evicted))
			s.log.Info("session.cap.evicted", "principal_id", principalID, "evicted", evicted)
		}
	}

	return insertTx(ctx, tx, principalID, refreshHash, refreshExp, now)
}

// Rotate performs single-use refresh rotation.
//
// The presented token's row is claimed (deleted) under the per-principal
// lock; exactly one of two concurrent rotations wins and the loser gets
// ErrTokenInvalid. An expired row is deleted and reported as
// ErrTokenExpired. The replacement pair is created in the same transaction,
// so a cancelled caller can never leave the old and new sessions live
// together.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshPlain string) (Issued, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	// Sanity bounds to avoid hashing pathological inputs.
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return Issued{}, ErrTokenInvalid
	}

	refreshHash := hashRefreshTokenHex(refreshPlain)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Issued{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Peek to learn the owning principal, then serialize on it. The claim
	// below re-checks under the lock, so the unlocked read cannot double-spend.
	peek, err := findByTokenHashTx(ctx, tx, refreshHash)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			// Absent from the store: rotated, revoked, or never issued.
			// Possible replay of a stolen token; loggably distinct from an
			// ordinary auth miss.
			metrics.RefreshReplays.Inc()
			s.log.Warn("session.refresh.replay", "reason", "unknown_token")
		}
		return Issued{}, err
	}

	if err := lockPrincipalTx(ctx, tx, peek.PrincipalID); err != nil {
		return Issued{}, err
	}

	old, err := claimByTokenHashTx(ctx, tx, refreshHash)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			metrics.RefreshReplays.Inc()
			s.log.Warn("session.refresh.replay", "reason", "lost_race", "principal_id", peek.PrincipalID)
		}
		return Issued{}, err
	}

	if !old.ExpiresAt.After(now) {
		// Lazy expiry: keep the delete, fail the rotation.
		if err := tx.Commit(ctx); err != nil {
			return Issued{}, err
		}
		return Issued{}, ErrTokenExpired
	}

	email, live, err := principalEmailTx(ctx, tx, old.PrincipalID)
	if err != nil {
		return Issued{}, err
	}
	if !live {
		// Deactivated since issuance: drop the session, refuse the refresh.
		if err := tx.Commit(ctx); err != nil {
			return Issued{}, err
		}
		return Issued{}, ErrPrincipalInactive
	}

	newPlain, newHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}
	newExp := now.Add(s.cfg.RefreshTokenTTL)

	if err := s.issueLocked(ctx, tx, now, old.PrincipalID, newHash, newExp); err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(old.PrincipalID, email, now)
	if err != nil {
		return Issued{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Issued{}, err
	}

	return Issued{
		PrincipalID:  old.PrincipalID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: newPlain,
		RefreshExp:   newExp,
	}, nil
}

// Owner resolves the principal that owns a live refresh token without
// consuming it.
func (s *Service) Owner(ctx context.Context, refreshPlain string) (Row, error) {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return Row{}, ErrTokenInvalid
	}
	return s.store.FindByTokenHash(ctx, hashRefreshTokenHex(refreshPlain))
}

// Revoke deletes the session behind a refresh token (logout from one
// device). Idempotent: an absent token is not an error.
func (s *Service) Revoke(ctx context.Context, refreshPlain string) error {
	refreshPlain = strings.TrimSpace(refreshPlain)
	if refreshPlain == "" || len(refreshPlain) > 4096 {
		return nil
	}
	_, err := s.store.DeleteByTokenHash(ctx, hashRefreshTokenHex(refreshPlain))
	return err
}

// RevokeAll deletes every session for a principal (logout everywhere).
func (s *Service) RevokeAll(ctx context.Context, principalID string) error {
	_, err := s.store.DeleteAllByPrincipal(ctx, principalID)
	return err
}

// CountByPrincipal reports the live session count for a principal.
func (s *Service) CountByPrincipal(ctx context.Context, principalID string) (int, error) {
	return s.store.CountByPrincipal(ctx, principalID)
}
