package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sikuli-bot/src/contracts"
)

// DefaultHistoryLimit is the number of runs a FileStore keeps.
const DefaultHistoryLimit = 500

// FileStore keeps run history in a single JSON file. Every SaveRun rewrites
// the file through a temporary file and a rename.
type FileStore struct {
	*MemoryStore
	path string
	mu   sync.Mutex

	// Limit is the number of newest runs kept on save. Zero keeps all.
	Limit int
}

// NewFileStore loads path if it exists.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{MemoryStore: NewMemoryStore(), path: path, Limit: DefaultHistoryLimit}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}

	var runs []contracts.RunRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &runs); err != nil {
			return nil, fmt.Errorf("failed to parse run history %s: %w", path, err)
		}
	}
	for i := range runs {
		s.MemoryStore.runs[runs[i].RunID] = runs[i]
	}
	return s, nil
}

// SaveRun stores the run, drops the oldest runs beyond Limit and rewrites
// the file.
func (s *FileStore) SaveRun(ctx context.Context, run *contracts.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.MemoryStore.SaveRun(ctx, run); err != nil {
		return err
	}
	runs, _ := s.MemoryStore.ListRuns(ctx, 0)
	if s.Limit > 0 && len(runs) > s.Limit {
		s.MemoryStore.drop(runs[s.Limit:])
		runs = runs[:s.Limit]
	}
	return s.write(runs)
}

func (s *FileStore) write(runs []contracts.RunRecord) error {
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write run history: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write run history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write run history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace run history: %w", err)
	}
	return nil
}

// Path returns the history file.
func (s *FileStore) Path() string {
	return s.path
}
