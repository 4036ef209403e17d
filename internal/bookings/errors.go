package bookings

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrOverlap means the proposed interval intersects an active appointment.
	ErrOverlap = errors.New("bookings: interval overlaps an existing appointment")
	// ErrRetryable marks transient store failures such as serialization aborts.
	ErrRetryable = errors.New("bookings: transient store failure")
	// ErrDuplicate means an appointment with the same id is already stored.
	ErrDuplicate = errors.New("bookings: appointment id already exists")
	ErrNotFound  = errors.New("bookings: appointment not found")
	ErrInvalid   = errors.New("bookings: invalid commit request")
)

// ConflictError is returned when the slot stays taken after every attempt.
// Callers recompute availability and offer new slots.
type ConflictError struct {
	MerchantID  string
	ResourceKey string
	Start       time.Time
	End         time.Time
	Attempts    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bookings: slot %s-%s for %s is no longer available after %d attempts",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.ResourceKey, e.Attempts)
}

func (e *ConflictError) Unwrap() error { return ErrOverlap }

// IsConflict reports whether err carries a ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateExclusionViolation   = "23P01"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// classifyPgError maps Postgres failures onto the store contract.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case sqlStateUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case sqlStateExclusionViolation:
		return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrRetryable, pgErr.Message)
	default:
		return err
	}
}
