package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sipeed/shimharness/pkg/storage/repository"
	"github.com/sipeed/shimharness/pkg/storage/sqlstore"
)

// SQLiteStorage implements the storage.Storage interface on an embedded
// SQLite database file.
type SQLiteStorage struct {
	db   *sql.DB
	path string
	runs repository.RunRepository
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required for SQLite storage")
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	return &SQLiteStorage{
		db:   db,
		path: path,
		runs: sqlstore.NewRunRepository(db, sqlstore.DialectSQLite),
	}, nil
}

func (s *SQLiteStorage) Connect(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to open database %s: %w", s.path, err)
	}
	if err := sqlstore.RunMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) Runs() repository.RunRepository {
	return s.runs
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
