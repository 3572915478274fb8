package session

import "errors"

var (
	// ErrTokenInvalid is returned when a presented token does not verify or
	// does not match any live session. For refresh tokens this is also the
	// replay/theft detection signal; callers must not retry.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired is returned when a token is structurally valid but past
	// its expiry. The backing session row, if any, has been deleted.
	ErrTokenExpired = errors.New("token expired")

	// ErrPrincipalInactive is returned when the session's principal has been
	// deactivated since issuance.
	ErrPrincipalInactive = errors.New("principal inactive")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
