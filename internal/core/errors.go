package core

import (
	"errors"
)

var (
	// ErrNotInitialized is returned by a backend used before Init succeeded.
	ErrNotInitialized = errors.New("ledger: storage not initialized")
	// ErrDuplicateKey is returned when a unique column (user email,
	// category name) would hold the same value twice.
	ErrDuplicateKey = errors.New("ledger: duplicate key")
	// ErrNotFound is used by write paths addressing a missing record.
	// Read paths report absence with a nil result instead.
	ErrNotFound = errors.New("ledger: not found")
	// ErrForeignKey is returned when a record references a missing user.
	ErrForeignKey = errors.New("ledger: referenced record does not exist")
)

// BackendError wraps an underlying storage failure. The message never
// exposes the backend's own error text; the cause stays reachable through
// errors.Unwrap.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return "ledger: backend failure during " + e.Op
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError builds a BackendError for op. A nil cause yields nil.
func NewBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

// IsBackendFailure reports whether err carries a BackendError.
func IsBackendFailure(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
