package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sipeed/shimharness/pkg/storage/repository"
)

// FileStorage implements the storage.Storage interface with one JSON
// document per run under <dir>/runs.
type FileStorage struct {
	dir  string
	runs *runRepository
}

// NewFileStorage creates a new file-based storage instance.
func NewFileStorage(filePath string) (*FileStorage, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required for file-based storage")
	}
	dir := filepath.Join(filePath, "runs")
	return &FileStorage{
		dir:  dir,
		runs: &runRepository{dir: dir},
	}, nil
}

// Connect creates the runs directory.
func (fs *FileStorage) Connect(ctx context.Context) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	return nil
}

func (fs *FileStorage) Close() error {
	return nil
}

func (fs *FileStorage) Runs() repository.RunRepository {
	return fs.runs
}

// Ping checks that the runs directory exists.
func (fs *FileStorage) Ping(ctx context.Context) error {
	info, err := os.Stat(fs.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", fs.dir)
	}
	return nil
}
