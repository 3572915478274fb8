package rbac

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
// The pgx pool is owned by the caller. Schema identifiers are quoted so
// identifier injection is impossible.
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
			return fmt.Errorf("rbac: invalid schema identifier")
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
		return nil, fmt.Errorf("rbac: nil pool")
	}
	return st, nil
}

// CreateRole creates a role with a unique name.
func (s *PostgresStore) CreateRole(ctx context.Context, name, description string) (Role, error) {
	const op = "rbac.CreateRole"

	name = strings.TrimSpace(name)
	if err := ValidateRoleName(name); err != nil {
		return Role{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "role name must be a lowercase slug"}
	}

	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return Role{}, err
	}

	roles := pgIdent(s.schema, "roles")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+roles+` (id, name, description, created_at)
		 VALUES ($1, $2, $3, $4)`,
		id, name, strings.TrimSpace(description), now,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return Role{}, OpError{Op: op, Kind: ErrConflict, Msg: "role name already exists"}
		}
		return Role{}, err
	}

	return Role{ID: id, Name: name, Description: strings.TrimSpace(description), CreatedAt: now}, nil
}

// CreatePermission creates a permission with a unique "resource:action" name.
func (s *PostgresStore) CreatePermission(ctx context.Context, name string) (Permission, error) {
	const op = "rbac.CreatePermission"

	name = strings.TrimSpace(name)
	if err := ValidatePermissionName(name); err != nil {
		return Permission{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "permission name must be resource:action"}
	}

	now := time.Now().UTC()
	id, err := ids.NewULID(now)
	if err != nil {
		return Permission{}, err
	}

	permissions := pgIdent(s.schema, "permissions")
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+permissions+` (id, name, created_at)
		 VALUES ($1, $2, $3)`,
		id, name, now,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return Permission{}, OpError{Op: op, Kind: ErrConflict, Msg: "permission name already exists"}
		}
		return Permission{}, err
	}

	return Permission{ID: id, Name: name, CreatedAt: now}, nil
}

// GrantPermission attaches a permission to a role. Granting an already
// granted permission is a no-op.
func (s *PostgresStore) GrantPermission(ctx context.Context, roleName, permissionName string) error {
	const op = "rbac.GrantPermission"

	roles := pgIdent(s.schema, "roles")
	permissions := pgIdent(s.schema, "permissions")
	rolePermissions := pgIdent(s.schema, "role_permissions")

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO `+rolePermissions+` (role_id, permission_id)
		 SELECT r.id, p.id
		   FROM `+roles+` r, `+permissions+` p
		  WHERE r.name = $1 AND p.name = $2
		 ON CONFLICT DO NOTHING`,
		strings.TrimSpace(roleName), strings.TrimSpace(permissionName),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the pair already exists or a name is unknown; only the
		// latter is an error.
		granted, err := s.grantExists(ctx, roleName, permissionName)
		if err != nil {
			return err
		}
		if !granted {
			return OpError{Op: op, Kind: ErrNotFound, Msg: "role or permission not found"}
		}
	}
	return nil
}

func (s *PostgresStore) grantExists(ctx context.Context, roleName, permissionName string) (bool, error) {
	roles := pgIdent(s.schema, "roles")
	permissions := pgIdent(s.schema, "permissions")
	rolePermissions := pgIdent(s.schema, "role_permissions")

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1
		   FROM `+rolePermissions+` rp
		   JOIN `+roles+` r ON r.id = rp.role_id
		   JOIN `+permissions+` p ON p.id = rp.permission_id
		  WHERE r.name = $1 AND p.name = $2`,
		strings.TrimSpace(roleName), strings.TrimSpace(permissionName),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AssignRole assigns a role to a principal. Re-assigning is a no-op.
func (s *PostgresStore) AssignRole(ctx context.Context, principalID, roleName string) error {
	const op = "rbac.AssignRole"

	roles := pgIdent(s.schema, "roles")
	principalRoles := pgIdent(s.schema, "principal_roles")

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO `+principalRoles+` (principal_id, role_id)
		 SELECT $1, r.id FROM `+roles+` r WHERE r.name = $2
		 ON CONFLICT DO NOTHING`,
		principalID, strings.TrimSpace(roleName),
	)
	if err != nil {
		if pgIsForeignKeyViolation(err) {
			return OpError{Op: op, Kind: ErrNotFound, Msg: "principal not found"}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		assigned, err := s.assignmentExists(ctx, principalID, roleName)
		if err != nil {
			return err
		}
		if !assigned {
			return OpError{Op: op, Kind: ErrNotFound, Msg: "role not found"}
		}
	}
	return nil
}

func (s *PostgresStore) assignmentExists(ctx context.Context, principalID, roleName string) (bool, error) {
	roles := pgIdent(s.schema, "roles")
	principalRoles := pgIdent(s.schema, "principal_roles")

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1
		   FROM `+principalRoles+` pr
		   JOIN `+roles+` r ON r.id = pr.role_id
		  WHERE pr.principal_id = $1 AND r.name = $2`,
		principalID, strings.TrimSpace(roleName),
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UnassignRole removes a role from a principal. Removing an absent
// assignment is a no-op.
func (s *PostgresStore) UnassignRole(ctx context.Context, principalID, roleName string) error {
	roles := pgIdent(s.schema, "roles")
	principalRoles := pgIdent(s.schema, "principal_roles")

	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+principalRoles+` pr
		  USING `+roles+` r
		  WHERE r.id = pr.role_id AND pr.principal_id = $1 AND r.name = $2`,
		principalID, strings.TrimSpace(roleName),
	)
	return err
}

// ListRoles returns all roles ordered by name.
func (s *PostgresStore) ListRoles(ctx context.Context) ([]Role, error) {
	roles := pgIdent(s.schema, "roles")

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at FROM `+roles+` ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoles(rows)
}

// ListPermissions returns all permissions ordered by name.
func (s *PostgresStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	permissions := pgIdent(s.schema, "permissions")

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM `+permissions+` ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Permission, 0, 16)
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RolesForPrincipal returns the roles assigned to a principal, ordered by
// name.
func (s *PostgresStore) RolesForPrincipal(ctx context.Context, principalID string) ([]Role, error) {
	roles := pgIdent(s.schema, "roles")
	principalRoles := pgIdent(s.schema, "principal_roles")

	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.name, r.description, r.created_at
		   FROM `+roles+` r
		   JOIN `+principalRoles+` pr ON pr.role_id = r.id
		  WHERE pr.principal_id = $1
		  ORDER BY r.name`,
		principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoles(rows)
}

// PermissionsForPrincipal aggregates the effective permission set in one
// query. DISTINCT gives the set semantics: overlapping roles contribute each
// permission once.
func (s *PostgresStore) PermissionsForPrincipal(ctx context.Context, principalID string) ([]string, error) {
	permissions := pgIdent(s.schema, "permissions")
	principalRoles := pgIdent(s.schema, "principal_roles")
	rolePermissions := pgIdent(s.schema, "role_permissions")

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.name
		   FROM `+principalRoles+` pr
		   JOIN `+rolePermissions+` rp ON rp.role_id = pr.role_id
		   JOIN `+permissions+` p ON p.id = rp.permission_id
		  WHERE pr.principal_id = $1
		  ORDER BY p.name`,
		principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0, 16)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	out := make([]Role, 0, 8)
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
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

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23503" // foreign_key_violation
}
