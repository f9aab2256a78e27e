package domain

import (
	"errors"
	"fmt"
)

// Expected outcomes callers branch on with errors.Is / errors.As. These are
// ordinary negative results, not failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrInvalidTransition    = errors.New("invalid booking status transition")
)

// UnitUnavailableError reports the first requested named unit that is
// already booked; nothing was reserved.
type UnitUnavailableError struct {
	PoolID string
	UnitID string
}

func (e *UnitUnavailableError) Error() string {
	return fmt.Sprintf("unit %s in pool %s is unavailable", e.UnitID, e.PoolID)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
