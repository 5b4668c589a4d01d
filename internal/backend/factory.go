package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/gateway"
	"ledger/internal/gateway/flatstore"
	"ledger/internal/gateway/sqlstore"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the configured store and wraps it so that every call
// is instrumented and lazily initializes the store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store gateway.Gateway
	switch config.Type {
	case SQLiteBackend:
		store = sqlstore.New(config.SQLiteDBPath, f.logger)
		f.logger.Info("Selected SQLite backend", "db_path", config.SQLiteDBPath)
	case FlatBackend:
		store = flatstore.New(config.DataDirectory, f.logger)
		f.logger.Info("Selected flat backend", "data_directory", config.DataDirectory)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	gw := gateway.NewLazy(gateway.NewInstrumented(store))
	if config.Eager {
		if err := gw.Init(ctx); err != nil {
			return nil, fmt.Errorf("initialize %s backend: %w", config.Type, err)
		}
	}

	return &BackendResult{
		Gateway: gw,
		Cleanup: gw.Close,
	}, nil
}
