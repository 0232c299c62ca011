package configstore

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeOpen indicates storage could not be mounted or the backing file
	// could not be opened or created for the requested mode
	ErrTypeOpen ErrorType = iota
	// ErrTypeWrite indicates a write faulted after the file was opened
	ErrTypeWrite
	// ErrTypeRead indicates an I/O failure while reading the backing file.
	// A trailing unmatched line is not a read error.
	ErrTypeRead
	// ErrTypePortal indicates the provisioning subsystem rejected a request
	ErrTypePortal
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeOpen:
		return "Open Error"
	case ErrTypeWrite:
		return "Write Error"
	case ErrTypeRead:
		return "Read Error"
	case ErrTypePortal:
		return "Portal Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// StoreError represents a failure of a store or provisioning operation
type StoreError struct {
	Type ErrorType // Category of error
	Op   string    // Operation that failed ("load", "save", "mount", ...)
	Path string    // Backing file path, if any
	Err  error     // Underlying error (if any)
}

// Error implements the error interface
func (e *StoreError) Error() string {
	msg := e.Type.String() + ": " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewOpenError creates an open/mount error
func NewOpenError(op, path string, err error) *StoreError {
	return &StoreError{Type: ErrTypeOpen, Op: op, Path: path, Err: err}
}

// NewWriteError creates a write error
func NewWriteError(path string, err error) *StoreError {
	return &StoreError{Type: ErrTypeWrite, Op: "write", Path: path, Err: err}
}

// NewReadError creates a read error
func NewReadError(path string, err error) *StoreError {
	return &StoreError{Type: ErrTypeRead, Op: "read", Path: path, Err: err}
}

// NewPortalError creates a provisioning subsystem error
func NewPortalError(op string, err error) *StoreError {
	return &StoreError{Type: ErrTypePortal, Op: op, Err: err}
}

func isType(err error, t ErrorType) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Type == t
	}
	return false
}

// IsOpenError checks if an error is an open error
func IsOpenError(err error) bool { return isType(err, ErrTypeOpen) }

// IsWriteError checks if an error is a write error
func IsWriteError(err error) bool { return isType(err, ErrTypeWrite) }

// IsReadError checks if an error is a read error
func IsReadError(err error) bool { return isType(err, ErrTypeRead) }

// IsPortalError checks if an error is a provisioning subsystem error
func IsPortalError(err error) bool { return isType(err, ErrTypePortal) }
