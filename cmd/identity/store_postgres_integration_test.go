package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"gatehouse/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require GATEHOUSE_DATABASE_URL. Each test
// works in its own throwaway schema so parallel runs cannot collide.

func TestPostgresStore_CreatePrincipal_ConflictEmail_CaseInsensitive(t *testing.T) {
	t.Parallel()

	pool := mustOpenIdentityTestPool(t)
	defer pool.Close()

	s := mustNewScratchStore(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.CreatePrincipal(ctx, CreatePrincipalInput{
		Email:    "User@Example.test",
		Password: "very-strong-password-1",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create principal 1: %v", err)
	}

	// Same email, different case: must conflict on email_norm.
	_, err = s.CreatePrincipal(ctx, CreatePrincipalInput{
		Email:    "user@example.TEST",
		Password: "very-strong-password-2",
		Now:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected conflict, got nil")
	}
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got: %v", err)
	}
}

func TestPostgresStore_GetAuthByEmail_LiveFilter(t *testing.T) {
	t.Parallel()

	pool := mustOpenIdentityTestPool(t)
	defer pool.Close()

	s := mustNewScratchStore(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	now := time.Now().UTC()
	p, err := s.CreatePrincipal(ctx, CreatePrincipalInput{
		Email:    "Live@Example.test",
		Name:     "Live Principal",
		Password: "very-strong-password-3",
		Now:      now,
	})
	if err != nil {
		t.Fatalf("create principal: %v", err)
	}

	// Lookup normalizes the identifier.
	a, err := s.GetAuthByEmail(ctx, "live@EXAMPLE.test")
	if err != nil {
		t.Fatalf("get auth: %v", err)
	}
	if a.Principal.ID != p.ID {
		t.Fatalf("expected principal %q, got %q", p.ID, a.Principal.ID)
	}
	ok, err := VerifyPassword("very-strong-password-3", a.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify the credential: ok=%v err=%v", ok, err)
	}

	if err := s.Deactivate(ctx, p.ID, time.Now().UTC()); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// Tombstoned principals are invisible to credential lookups.
	if _, err := s.GetAuthByEmail(ctx, p.Email); !IsNotFound(err) {
		t.Fatalf("expected not-found after deactivation, got: %v", err)
	}

	// GetByID ignores lifecycle state and shows the tombstone.
	got, err := s.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Active || got.DeactivatedAt == nil {
		t.Fatalf("expected tombstoned principal, got active=%v deactivated_at=%v", got.Active, got.DeactivatedAt)
	}

	active, err := s.IsActive(ctx, p.ID)
	if err != nil {
		t.Fatalf("is active: %v", err)
	}
	if active {
		t.Fatalf("expected IsActive=false after deactivation")
	}
}

func TestPostgresStore_Deactivate_KeepsFirstTimestamp(t *testing.T) {
	t.Parallel()

	pool := mustOpenIdentityTestPool(t)
	defer pool.Close()

	s := mustNewScratchStore(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	p, err := s.CreatePrincipal(ctx, CreatePrincipalInput{
		Email:    "tombstone@example.test",
		Password: "very-strong-password-4",
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create principal: %v", err)
	}

	first := time.Now().UTC().Truncate(time.Microsecond)
	if err := s.Deactivate(ctx, p.ID, first); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := s.Deactivate(ctx, p.ID, first.Add(time.Hour)); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}

	got, err := s.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.DeactivatedAt == nil || !got.DeactivatedAt.Equal(first) {
		t.Fatalf("expected first tombstone timestamp %v, got %v", first, got.DeactivatedAt)
	}

	// Unknown id is a not-found, not a silent no-op.
	if err := s.Deactivate(ctx, "01ZZZZZZZZZZZZZZZZZZZZZZZZ", time.Now().UTC()); !IsNotFound(err) {
		t.Fatalf("expected not-found for unknown id, got: %v", err)
	}
}

// ---- helpers ----

// mustNewScratchStore creates a throwaway schema with the principals table
// and returns a store bound to it. The schema is dropped on cleanup.
func mustNewScratchStore(t *testing.T, pool *pgxpool.Pool) *PostgresStore {
	t.Helper()

	schema := "gatehouse_it_" + strings.ToLower(mustNewTestID(t))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = pool.Exec(dropCtx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	principals := pgIdent(schema, "principals")
	ddl := fmt.Sprintf(`
CREATE TABLE %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  deactivated_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_principals_email_norm UNIQUE (email_norm)
)`, principals)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		t.Fatalf("apply principals schema: %v", err)
	}

	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustOpenIdentityTestPool(t *testing.T) *pgxpool.Pool {
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

func mustNewTestID(t *testing.T) string {
	t.Helper()
	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ids.NewULID: %v", err)
	}
	return id
}
