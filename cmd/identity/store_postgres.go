package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gatehouse/cmd/identity/ids"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must not close it.
// Schema identifiers are quoted to keep identifier injection impossible.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "gatehouse").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "gatehouse",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// liveFilter is the single authentication filter: tombstoned or inactive
// principals are invisible to credential lookups. Every query that feeds an
// authentication decision appends it.
const liveFilter = ` AND active AND deactivated_at IS NULL`

// CreatePrincipal registers a new principal.
func (s *PostgresStore) CreatePrincipal(ctx context.Context, in CreatePrincipalInput) (Principal, error) {
	const op = "identity.CreatePrincipal"

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return Principal{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if strings.TrimSpace(in.Password) == "" {
		return Principal{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	emailNorm := NormalizeEmail(email)
	name := strings.TrimSpace(in.Name)

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return Principal{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Principal{}, err
	}

	principals := pgIdent(s.schema, "principals")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+principals+` (
		     id, email, email_norm, name, password_hash, active, deactivated_at, created_at
		   ) VALUES ($1, $2, $3, $4, $5, TRUE, NULL, $6)`,
		id, email, emailNorm, name, pwHash, now,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return Principal{}, ConflictError{Op: op, Field: "email"}
		}
		return Principal{}, err
	}

	return Principal{
		ID:        id,
		Email:     email,
		EmailNorm: emailNorm,
		Name:      name,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// GetAuthByEmail returns the principal and credential hash for a login
// identifier. Tombstoned and inactive principals are filtered here, not by
// callers.
func (s *PostgresStore) GetAuthByEmail(ctx context.Context, email string) (Auth, error) {
	const op = "identity.GetAuthByEmail"

	principals := pgIdent(s.schema, "principals")

	var a Auth
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, name, password_hash, active, deactivated_at, created_at
		   FROM `+principals+`
		  WHERE email_norm = $1`+liveFilter,
		NormalizeEmail(email),
	).Scan(
		&a.Principal.ID,
		&a.Principal.Email,
		&a.Principal.EmailNorm,
		&a.Principal.Name,
		&a.PasswordHash,
		&a.Principal.Active,
		&a.Principal.DeactivatedAt,
		&a.Principal.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Auth{}, NotFoundError{Op: op, Resource: "principal"}
	}
	if err != nil {
		return Auth{}, err
	}

	return a, nil
}

// GetByID loads a principal by id regardless of lifecycle state.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (Principal, error) {
	const op = "identity.GetByID"

	principals := pgIdent(s.schema, "principals")

	var p Principal
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, name, active, deactivated_at, created_at
		   FROM `+principals+`
		  WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.EmailNorm, &p.Name, &p.Active, &p.DeactivatedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, NotFoundError{Op: op, Resource: "principal"}
	}
	if err != nil {
		return Principal{}, err
	}

	return p, nil
}

// IsActive reports whether the principal is live for authentication purposes.
func (s *PostgresStore) IsActive(ctx context.Context, id string) (bool, error) {
	principals := pgIdent(s.schema, "principals")

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+principals+` WHERE id = $1`+liveFilter,
		id,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Deactivate tombstones a principal. The tombstone is written once; repeated
// calls keep the original timestamp.
func (s *PostgresStore) Deactivate(ctx context.Context, id string, now time.Time) error {
	const op = "identity.Deactivate"

	if now.IsZero() {
		now = time.Now().UTC()
	}

	principals := pgIdent(s.schema, "principals")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+principals+`
		    SET active = FALSE,
		        deactivated_at = COALESCE(deactivated_at, $2)
		  WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "principal"}
	}
	return nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
