// Package sentinel holds the error taxonomy shared by stores, the transition
// engine and the repository. Callers branch with errors.Is.
package sentinel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: a lookup by protocol or id yielded nothing.
	ErrNotFound = errors.New("not found")
	// ErrValidation: malformed input, rejected before any store access.
	ErrValidation = errors.New("validation failed")
	// ErrStorage: transaction, constraint or connection failure. The wrapped
	// message never carries driver details.
	ErrStorage = errors.New("storage failure")
	// ErrProtocolCollision: every generated protocol collided with an issued one.
	ErrProtocolCollision = errors.New("protocol collision")
)

// ValidationError names the offending input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Storage hides the cause behind ErrStorage, keeping only the operation name.
func Storage(op string) error {
	return fmt.Errorf("%s: %w", op, ErrStorage)
}
