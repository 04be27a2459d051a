package storage

import (
	"fmt"

	"github.com/sipeed/shimharness/pkg/storage/file"
	"github.com/sipeed/shimharness/pkg/storage/postgres"
	"github.com/sipeed/shimharness/pkg/storage/sqlite"
)

// NewStorage returns the run journal backend named by cfg.Type. Nothing is
// opened until Connect.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "file":
		return file.NewFileStorage(cfg.FilePath)
	case "postgres":
		return postgres.NewPostgresStorage(cfg.DatabaseURL, cfg.SSLEnabled, cfg.MaxIdleConns, cfg.MaxOpenConns, cfg.MaxLifetime)
	case "sqlite":
		path := cfg.DatabaseURL
		if path == "" {
			path = cfg.FilePath
		}
		return sqlite.NewSQLiteStorage(path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %q (want file, sqlite or postgres)", cfg.Type)
	}
}
