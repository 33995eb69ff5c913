package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// The engine reports three error kinds. Not-found conditions are never
// errors; stores return nil results for those.

// ValidationError marks a missing or malformed caller-supplied field. It is
// raised by the service layer before any SQL runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// ConstraintError marks a uniqueness or foreign-key invariant violation
// surfaced by SQLite.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string { return fmt.Sprintf("constraint: %s: %v", e.Op, e.Err) }
func (e *ConstraintError) Unwrap() error { return e.Err }

// StorageError marks an I/O failure, lock contention, or corruption.
// Transient is set for busy/locked conditions so callers may retry.
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// classify maps a raw sqlite error to the engine's taxonomy. nil passes
// through so stores can wrap unconditionally.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrConstraint:
			return &ConstraintError{Op: op, Err: err}
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &StorageError{Op: op, Err: err, Transient: true}
		}
	}
	return &StorageError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConstraint reports whether err is a ConstraintError.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// Kind returns a short tag for the error taxonomy, used by the tool-call
// boundary to tell user-input mistakes from storage failures.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation_error"
	case IsConstraint(err):
		return "constraint_error"
	default:
		return "storage_error"
	}
}
