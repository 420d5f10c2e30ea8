// Package errors provides the domain error sentinels shared by the outbox and
// subscription modules. Repositories wrap driver errors with Wrap, use cases
// return the sentinels, and httputil maps them to status codes.
package errors

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNotFound indicates the requested event or subscription does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the request clashes with the current state (e.g., requeueing a published event).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates the database or broker cannot serve the request right now.
	// Wrap attaches it automatically to connection-level failures.
	ErrUnavailable = errors.New("unavailable")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap adds context to err while preserving the chain. When err is a
// connection-level failure the result also matches ErrUnavailable.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) && !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", message, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is like Wrap but formats the context message.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsUnavailable reports whether err means a dependency could not be reached:
// a broken or closed connection, a deadline hit while waiting on it, a network
// error, or an error already marked with ErrUnavailable.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
