package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (gatehouse.sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, principalID, tokenHash string, expiresAt, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gatehouse.sessions (token_hash, principal_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, tokenHash, principalID, expiresAt, now)
	return err
}

// FindByTokenHash loads a session row by token hash.
func (s *PostgresStore) FindByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		SELECT token_hash, principal_id, expires_at, created_at
		FROM gatehouse.sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&row.TokenHash, &row.PrincipalID, &row.ExpiresAt, &row.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrTokenInvalid
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// DeleteByTokenHash deletes a session row if present (idempotent).
func (s *PostgresStore) DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountByPrincipal returns the number of live sessions for a principal.
func (s *PostgresStore) CountByPrincipal(ctx context.Context, principalID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM gatehouse.sessions
		WHERE principal_id = $1
	`, principalID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteOldest deletes all but the keepCount most recent sessions for a
// principal, oldest first.
func (s *PostgresStore) DeleteOldest(ctx context.Context, principalID string, keepCount int) (int, error) {
	if keepCount < 0 {
		keepCount = 0
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE token_hash IN (
			SELECT token_hash FROM gatehouse.sessions
			WHERE principal_id = $1
			ORDER BY created_at DESC
			OFFSET $2
		)
	`, principalID, keepCount)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllByPrincipal removes every session for a principal.
func (s *PostgresStore) DeleteAllByPrincipal(ctx context.Context, principalID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE principal_id = $1
	`, principalID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
