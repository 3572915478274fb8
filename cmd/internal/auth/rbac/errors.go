package rbac

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Callers classify with errors.Is and must not parse
// messages.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// OpError attaches the failing operation and a sentinel kind.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsNotFound reports whether err is a missing role, permission, or
// assignment.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a uniqueness conflict (duplicate role or
// permission name).
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInvalidInput reports whether err is a rejected argument.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
