package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sikuli-bot/src/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Used when no database is configured, and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]contracts.RunRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]contracts.RunRecord),
	}
}

// SaveRun inserts or replaces a run.
func (s *MemoryStore) SaveRun(ctx context.Context, run *contracts.RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = copyRun(*run)
	return nil
}

// GetRun returns a copy of the run.
func (s *MemoryStore) GetRun(ctx context.Context, runID string) (*contracts.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	out := copyRun(run)
	return &out, nil
}

// ListRuns returns runs newest first.
func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]contracts.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]contracts.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, copyRun(r))
	}
	sortNewestFirst(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// LastRunForBranch returns the newest finished test run of branch.
func (s *MemoryStore) LastRunForBranch(ctx context.Context, branch, excludeID string) (*contracts.RunRecord, error) {
	runs, _ := s.ListRuns(ctx, 0)
	for i := range runs {
		r := &runs[i]
		if r.RunID == excludeID || !strings.EqualFold(r.Branch, branch) || !ranTests(r) {
			continue
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: no previous run of %s", ErrNotFound, branch)
}

// Close closes the store (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

// drop removes runs by ID.
func (s *MemoryStore) drop(runs []contracts.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range runs {
		delete(s.runs, r.RunID)
	}
}

func sortNewestFirst(runs []contracts.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

func copyRun(r contracts.RunRecord) contracts.RunRecord {
	r.Failures = append([]string(nil), r.Failures...)
	r.NewFailures = append([]string(nil), r.NewFailures...)
	return r
}
