package wfs

import (
	"errors"
	"fmt"
	"syscall"
)

// DriverError is a wrapper around a POSIX errno code, with a customizable
// error message. Adapted from the teacher's errors.go; handlers in the
// handlers package report failures with one of these (never a bare
// syscall.Errno), so a message can be attached with
// NewDriverErrorWithMessage without losing the underlying code a bridge
// needs to report back to the kernel.
type DriverError struct {
	ErrnoCode syscall.Errno
	message   string
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.ErrnoCode.Error()
}

// Unwrap exposes the underlying errno so errors.Is(err, syscall.ENOENT)
// works against a *DriverError.
func (e *DriverError) Unwrap() error {
	return e.ErrnoCode
}

// NewDriverError creates a new DriverError with a default message derived
// from the errno code.
func NewDriverError(errnoCode syscall.Errno) *DriverError {
	return &DriverError{ErrnoCode: errnoCode, message: errnoCode.Error()}
}

// NewDriverErrorWithMessage creates a new DriverError with a custom message.
func NewDriverErrorWithMessage(errnoCode syscall.Errno, message string) *DriverError {
	return &DriverError{
		ErrnoCode: errnoCode,
		message:   fmt.Sprintf("%s: %s", errnoCode.Error(), message),
	}
}

// Errno converts a handler's error return into the negative integer a
// bridge forwards to the kernel, per spec.md §7's propagation policy. A
// nil error maps to 0; otherwise the first *DriverError found by
// errors.As (so one inside a rollback multierror counts) supplies the
// code. An error with no *DriverError in its chain is reported as -EIO
// since that indicates a programmer error inside the engine rather than an
// expected POSIX condition.
func Errno(err error) int {
	if err == nil {
		return 0
	}
	var de *DriverError
	if errors.As(err, &de) {
		return -int(de.ErrnoCode)
	}
	return -int(syscall.EIO)
}
