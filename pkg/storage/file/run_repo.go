package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sipeed/shimharness/pkg/storage/repository"
)

type runRepository struct {
	mu  sync.RWMutex
	dir string
}

func (r *runRepository) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid run id %q", id)
	}
	return filepath.Join(r.dir, id+".json"), nil
}

func (r *runRepository) Save(ctx context.Context, run *repository.Run) error {
	path, err := r.path(run.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run %s: %w", run.ID, err)
	}
	return os.Rename(tmp, path)
}

func (r *runRepository) Get(ctx context.Context, id string) (*repository.Run, error) {
	path, err := r.path(id)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return readRun(path)
}

func readRun(path string) (*repository.Run, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, repository.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	var run repository.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return &run, nil
}

func (r *runRepository) List(ctx context.Context, suiteID string) ([]repository.RunInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var infos []repository.RunInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		run, err := readRun(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if suiteID != "" && run.SuiteID != suiteID {
			continue
		}
		infos = append(infos, run.Info())
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Started.Equal(infos[j].Started) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Started.Before(infos[j].Started)
	})
	return infos, nil
}
