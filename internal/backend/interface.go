package backend

import (
	"context"

	"ledger/internal/gateway"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the gateway and its cleanup function.
type BackendResult struct {
	Gateway gateway.Gateway
	Cleanup CleanupFunc
}

// Factory creates the gateway selected by configuration. It is called once
// at startup; the choice holds for the life of the process.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Flat backend specific
	DataDirectory string

	// Eager initializes the gateway during creation instead of on first use.
	Eager bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	FlatBackend   BackendType = "flat"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, FlatBackend:
		return true
	default:
		return false
	}
}
