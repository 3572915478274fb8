package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// lockPrincipalTx serializes session mutations per principal for the lifetime
// of the transaction. Both issuance and rotation take this lock before
// touching any row, which keeps the count-evict-insert sequence atomic and
// rules out lock-order inversions between the two paths. Cross-principal
// traffic never contends.
func lockPrincipalTx(ctx context.Context, tx pgx.Tx, principalID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, principalID)
	return err
}

func findByTokenHashTx(ctx context.Context, tx pgx.Tx, tokenHash string) (Row, error) {
	var row Row

	err := tx.QueryRow(ctx, `
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

// claimByTokenHashTx deletes the row for a presented refresh token and
// returns it. With the principal lock held, a successful claim is the
// single-use guarantee: a concurrent rotation of the same token finds the
// row already gone.
func claimByTokenHashTx(ctx context.Context, tx pgx.Tx, tokenHash string) (Row, error) {
	var row Row

	err := tx.QueryRow(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE token_hash = $1
		RETURNING token_hash, principal_id, expires_at, created_at
	`, tokenHash).Scan(&row.TokenHash, &row.PrincipalID, &row.ExpiresAt, &row.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrTokenInvalid
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

func countByPrincipalTx(ctx context.Context, tx pgx.Tx, principalID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM gatehouse.sessions
		WHERE principal_id = $1
	`, principalID).Scan(&n)
	return n, err
}

// evictOldestTx deletes the overflow sessions for a principal in one bounded
// query, ordered by creation time ascending.
func evictOldestTx(ctx context.Context, tx pgx.Tx, principalID string, overflow int) (int, error) {
	if overflow <= 0 {
		return 0, nil
	}
	tag, err := tx.Exec(ctx, `
		DELETE FROM gatehouse.sessions
		WHERE token_hash IN (
			SELECT token_hash FROM gatehouse.sessions
			WHERE principal_id = $1
			ORDER BY created_at ASC
			LIMIT $2
		)
	`, principalID, overflow)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func insertTx(ctx context.Context, tx pgx.Tx, principalID, tokenHash string, expiresAt, now time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO gatehouse.sessions (token_hash, principal_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, tokenHash, principalID, expiresAt, now)
	return err
}

// principalEmailTx mirrors the identity store's live filter inside the
// rotation transaction: a principal tombstoned since issuance cannot refresh.
// On success it returns the login identifier for the new access token.
func principalEmailTx(ctx context.Context, tx pgx.Tx, principalID string) (email string, live bool, err error) {
	err = tx.QueryRow(ctx, `
		SELECT email FROM gatehouse.principals
		WHERE id = $1 AND active AND deactivated_at IS NULL
	`, principalID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return email, true, nil
}
