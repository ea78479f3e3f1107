// Package store defines the interface for persistent data storage.
package store

import (
	"context"
	"errors"

	"sikuli-bot/src/contracts"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store defines the interface for persisting run history.
type Store interface {
	// SaveRun inserts or replaces the run with the same RunID
	SaveRun(ctx context.Context, run *contracts.RunRecord) error

	// GetRun returns a run by ID
	GetRun(ctx context.Context, runID string) (*contracts.RunRecord, error)

	// ListRuns returns the most recent runs first; limit <= 0 means all
	ListRuns(ctx context.Context, limit int) ([]contracts.RunRecord, error)

	// LastRunForBranch returns the most recent finished run of branch that
	// actually ran tests, skipping excludeID. Returns ErrNotFound if none.
	LastRunForBranch(ctx context.Context, branch, excludeID string) (*contracts.RunRecord, error)

	// Close closes the store connection
	Close() error
}

// ranTests reports whether a run produced a test verdict.
func ranTests(r *contracts.RunRecord) bool {
	return r.Status == contracts.StatusPassed || r.Status == contracts.StatusFailed
}
