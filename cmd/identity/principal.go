package identity

import (
	"context"
	"time"
)

// Principal is gatehouse's canonical security subject.
type Principal struct {
	ID        string
	Email     string
	EmailNorm string
	Name      string

	Active        bool
	DeactivatedAt *time.Time

	CreatedAt time.Time
}

// Auth bundles a principal with its stored credential hash for login checks.
// The hash must never leave the auth core.
type Auth struct {
	Principal    Principal
	PasswordHash string
}

// CreatePrincipalInput describes a registration request.
type CreatePrincipalInput struct {
	Email    string
	Name     string
	Password string
	Now      time.Time
}

// Store is the principal persistence boundary.
type Store interface {
	// CreatePrincipal registers a new principal. Fails with a ConflictError
	// on a duplicate normalized email.
	CreatePrincipal(ctx context.Context, in CreatePrincipalInput) (Principal, error)

	// GetAuthByEmail returns the principal and credential hash for a login
	// identifier, restricted to active, non-tombstoned records. Absent and
	// excluded records are both reported as ErrNotFound.
	GetAuthByEmail(ctx context.Context, email string) (Auth, error)

	// GetByID loads a principal by id (active or not).
	GetByID(ctx context.Context, id string) (Principal, error)

	// IsActive reports whether the principal exists, is active, and carries
	// no tombstone.
	IsActive(ctx context.Context, id string) (bool, error)

	// Deactivate tombstones a principal. Idempotent; the tombstone timestamp
	// is written once and never cleared.
	Deactivate(ctx context.Context, id string, now time.Time) error
}
