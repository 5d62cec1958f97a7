package collection

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input such as a card without an id.
	ErrValidation = errors.New("validation failure")
	// ErrStoreUnavailable marks any failure of the underlying store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// unavailable tags a store failure. The cause stays reachable through
// errors.Is/As.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
