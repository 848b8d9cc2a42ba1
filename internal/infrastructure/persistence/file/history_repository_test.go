package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/repository"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

func TestHistoryRepository_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	repo, err := NewHistoryRepository(path)
	if err != nil {
		t.Fatalf("NewHistoryRepository() error = %v", err)
	}

	if _, err := repo.Load(context.Background()); !errors.Is(err, repository.ErrHistoryNotFound) {
		t.Fatalf("expected ErrHistoryNotFound for a missing file, got %v", err)
	}

	log := entity.NewHistoryLog()
	date := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := log.Append(date, "OpenBugsFoo", valueobject.NewMeasuredValue(3), valueobject.StatusGreen); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := repo.Save(context.Background(), log); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.StatusStartDate("OpenBugsFoo"); !got.Equal(date) {
		t.Errorf("StatusStartDate() = %v, want %v", got, date)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files must not be left behind, found %d entries", len(entries))
	}
}

func TestHistoryRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	repo, _ := NewHistoryRepository(path)

	_, err := repo.Load(context.Background())
	if err == nil || errors.Is(err, repository.ErrHistoryNotFound) {
		t.Fatalf("corrupt history must be a load error distinct from not found, got %v", err)
	}
}
