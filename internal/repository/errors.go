package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store errors shared by the PostgreSQL, in-memory and Redis implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a unique entity already exists.
	ErrDuplicate = errors.New("entity already exists")

	// ErrConflict is returned when a concurrent transaction won a race on the
	// same rows. The caller may retry.
	ErrConflict = errors.New("concurrent modification")

	// ErrOutOfRange is returned when a value does not fit its column, such as
	// a balance above NUMERIC(19, 2).
	ErrOutOfRange = errors.New("value out of range")

	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)
	ErrEmailExists  = fmt.Errorf("%w: email", ErrDuplicate)
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqNumericOutOfRange    = "22003"
)

// translatePQError maps PostgreSQL error codes onto store errors.
func translatePQError(err error, duplicate error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if duplicate != nil {
			return fmt.Errorf("%w: %v", duplicate, err)
		}
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case pqSerializationFailure, pqDeadlockDetected:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case pqNumericOutOfRange:
		return fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return err
}
