package storage

import (
	"fmt"

	"mercator-hq/tollgate/pkg/config"
)

// New creates the backend selected by cfg.Backend.
func New(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		wal := cfg.SQLite.WALMode == nil || *cfg.SQLite.WALMode
		return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
			DBPath:      cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
			WALMode:     wal,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
