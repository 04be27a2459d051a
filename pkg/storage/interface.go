package storage

import (
	"context"
	"time"

	"github.com/sipeed/shimharness/pkg/storage/repository"
)

// Storage is the journal of scenario runs. Connect must succeed before Runs
// is used.
type Storage interface {
	Runs() repository.RunRepository

	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error
}

// Config selects where the run journal lives. FilePath is the journal
// directory for the file backend and the database file for sqlite.
// DatabaseURL is the postgres DSN, and a sqlite DSN takes precedence over
// FilePath. The pool limits apply only to postgres.
type Config struct {
	Type        string
	FilePath    string
	DatabaseURL string
	SSLEnabled  bool

	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
}

// DefaultConfig sizes the postgres pool for a single harness process that
// journals one run at a time.
func DefaultConfig(storageType string) Config {
	return Config{
		Type:         storageType,
		MaxIdleConns: 2,
		MaxOpenConns: 5,
		MaxLifetime:  5 * time.Minute,
	}
}
