// Package backend selects and constructs the storage backend from
// configuration.
package backend

import (
	"fmt"
	"log/slog"

	"expensed/internal/config"
	"expensed/internal/storage"
	"expensed/internal/storage/jsonfile"
	"expensed/internal/storage/sqlite"
)

// Type identifies a storage backend.
type Type string

const (
	JSONFileBackend Type = "jsonfile"
	SQLiteBackend   Type = "sqlite"
)

func (t Type) String() string { return string(t) }

// IsValid reports whether the backend type is one we can construct.
func (t Type) IsValid() bool {
	switch t {
	case JSONFileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Open builds the repository named by cfg.DataBackend.
func Open(cfg *config.Config, logger *slog.Logger) (storage.Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backendType := Type(cfg.DataBackend)
	switch backendType {
	case JSONFileBackend:
		store, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize jsonfile backend: %w", err)
		}
		logger.Info("Initialized jsonfile backend", "data_dir", cfg.DataDir)
		return store, nil

	case SQLiteBackend:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
		return repo, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", backendType)
	}
}
