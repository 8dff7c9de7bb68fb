package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const (
	ConstraintUsername = "uq_users_username"
	ConstraintEmail    = "uq_users_email"
	ConstraintUserID   = "uq_users_user_id"
)

var (
	// ErrStorage marks infrastructure failures of the identity store,
	// timeouts included.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is only returned by mutations; lookups return a nil record.
	ErrNotFound            = errors.New("record not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

// ConstraintError reports a unique constraint rejected a write.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s on %s: %v", ErrConstraintViolation, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out: %w", op, ErrStorage, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// translateWriteError turns a postgres unique violation into a
// ConstraintError and everything else into a storage error.
func translateWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return storageError(op, err)
}
