package records

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict reports a duplicate key or a row still referenced elsewhere.
	ErrConflict = errors.New("record conflict")
	// ErrInvalid reports input that failed a presence or range check.
	ErrInvalid = errors.New("invalid record")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
