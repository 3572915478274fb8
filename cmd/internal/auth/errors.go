package auth

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Boundaries classify with errors.Is; messages are stable
// but not part of the contract.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// Token refinements. Both unwrap to ErrUnauthenticated; callers that do not
// care about the distinction match the base kind.
var (
	ErrTokenInvalid = fmt.Errorf("%w: token invalid", ErrUnauthenticated)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthenticated)
)

// ErrInvalidCredentials is the single login failure. Unknown identifier and
// wrong secret both return exactly this value so the two cases cannot be
// told apart.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
