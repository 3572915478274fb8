package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"gatehouse/cmd/identity/ids"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require GATEHOUSE_DATABASE_URL with the
// gatehouse schema applied (db/schema.sql).

func TestSessionService_Rotate_ExpiredTokenConsumed(t *testing.T) {
	pool := mustOpenSessionTestPool(t)
	defer pool.Close()

	svc, store := newSessionTestService(t, pool)
	pid := seedSessionPrincipal(t, pool, true)

	ctx := context.Background()
	now := time.Now().UTC()

	plain, hash, err := newOpaqueRefreshToken(svc.cfg.RefreshTokenBytes)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	// A stale row: issued an hour ago, expired a minute ago.
	if err := store.Create(ctx, pid, hash, now.Add(-time.Minute), now.Add(-time.Hour)); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := svc.Rotate(ctx, now, plain); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// The failed rotation must still commit the delete of the stale row.
	if _, err := store.FindByTokenHash(ctx, hash); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected stale row consumed, got %v", err)
	}
	// A second presentation is an ordinary replay, not expired again.
	if _, err := svc.Rotate(ctx, now, plain); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on replay, got %v", err)
	}
}

func TestSessionService_Rotate_DeactivatedPrincipalConsumed(t *testing.T) {
	pool := mustOpenSessionTestPool(t)
	defer pool.Close()

	svc, store := newSessionTestService(t, pool)
	pid := seedSessionPrincipal(t, pool, false)

	ctx := context.Background()
	now := time.Now().UTC()

	plain, hash, err := newOpaqueRefreshToken(svc.cfg.RefreshTokenBytes)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	// The session itself is still within its lifetime.
	if err := store.Create(ctx, pid, hash, now.Add(time.Hour), now); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := svc.Rotate(ctx, now, plain); !errors.Is(err, ErrPrincipalInactive) {
		t.Fatalf("expected ErrPrincipalInactive, got %v", err)
	}

	// The refusal commits the delete: the token is dead either way.
	if _, err := store.FindByTokenHash(ctx, hash); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected session consumed, got %v", err)
	}
}

// ---- helpers ----

func newSessionTestService(t *testing.T, pool *pgxpool.Pool) (*Service, *PostgresStore) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.JWTSecret = []byte("integration-test-secret-0123456789ab")

	tokens, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	store := NewPostgresStore(pool)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(cfg, pool, store, tokens, log), store
}

// seedSessionPrincipal inserts a principal row directly and registers its
// cleanup. The live flag controls the lifecycle columns.
func seedSessionPrincipal(t *testing.T, pool *pgxpool.Pool, live bool) string {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()

	id, err := ids.NewULID(now)
	if err != nil {
		t.Fatalf("ids.NewULID: %v", err)
	}
	email := strings.ToLower(id) + "@example.test"

	var deactivatedAt *time.Time
	if !live {
		deactivatedAt = &now
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO gatehouse.principals (
		    id, email, email_norm, name, password_hash, active, deactivated_at, created_at
		) VALUES ($1, $2, $2, '', 'not-a-real-hash', $3, $4, $5)
	`, id, email, live, deactivatedAt, now)
	if err != nil {
		t.Fatalf("seed principal: %v", err)
	}

	t.Cleanup(func() {
		cleanupCtx := context.Background()
		_, _ = pool.Exec(cleanupCtx, `DELETE FROM gatehouse.sessions WHERE principal_id = $1`, id)
		_, _ = pool.Exec(cleanupCtx, `DELETE FROM gatehouse.principals WHERE id = $1`, id)
	})
	return id
}

func mustOpenSessionTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("GATEHOUSE_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: GATEHOUSE_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse GATEHOUSE_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}
