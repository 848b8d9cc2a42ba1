// Package file stores the canonical history document on the local file system.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/infrastructure/persistence/document"
)

// HistoryRepository implements repository.HistoryRepository for a JSON file.
// Save replaces the file atomically, a crash never leaves a truncated history.
type HistoryRepository struct {
	path string
}

// NewHistoryRepository creates a repository for the file at path.
func NewHistoryRepository(path string) (*HistoryRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is required")
	}
	return &HistoryRepository{path: filepath.Clean(path)}, nil
}

// Load reads and decodes the history file.
func (r *HistoryRepository) Load(ctx context.Context) (*entity.HistoryLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repository.ErrHistoryNotFound
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	log, err := document.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.path, err)
	}
	return log, nil
}

// Save encodes the log and replaces the history file.
func (r *HistoryRepository) Save(ctx context.Context, log *entity.HistoryLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := document.Encode(log)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set history permissions: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// Location returns the file path.
func (r *HistoryRepository) Location() string {
	return r.path
}
