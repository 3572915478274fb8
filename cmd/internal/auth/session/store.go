package session

import (
	"context"
	"time"
)

// Row mirrors the gatehouse.sessions row.
type Row struct {
	TokenHash   string
	PrincipalID string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Store abstracts session persistence. Implementations must keep token
// hashes unique and must never resurrect a deleted row.
//
// Store covers the standalone operations; the issuance and rotation paths go
// through Service, which groups count, eviction, insert, and delete into one
// per-principal atomic unit.
type Store interface {
	// Create inserts a new session row.
	Create(ctx context.Context, principalID, tokenHash string, expiresAt, now time.Time) error

	// FindByTokenHash loads a session row. Absent rows return ErrTokenInvalid.
	FindByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// DeleteByTokenHash deletes a session row if present and reports whether
	// a row was deleted. Deleting an absent row is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error)

	// CountByPrincipal returns the number of live session rows for a principal.
	CountByPrincipal(ctx context.Context, principalID string) (int, error)

	// DeleteOldest deletes all but the keepCount most recent sessions for a
	// principal, ordered by creation time ascending. Returns the number
	// deleted.
	DeleteOldest(ctx context.Context, principalID string, keepCount int) (int, error)

	// DeleteAllByPrincipal removes every session for a principal (logout
	// everywhere). Returns the number deleted.
	DeleteAllByPrincipal(ctx context.Context, principalID string) (int, error)
}
