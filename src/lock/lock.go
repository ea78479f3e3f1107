// Package lock keeps two bot invocations from sharing a workspace.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sikuli-bot/src/clock"
	"sikuli-bot/src/failure"
)

// DefaultStaleAfter is how old a lock file must be before it is considered
// abandoned by a killed run.
const DefaultStaleAfter = 12 * time.Hour

// Lock is a held run lock.
type Lock struct {
	path string
}

// Options tunes Acquire.
type Options struct {
	StaleAfter time.Duration
	Clock      clock.Clock
}

// Info is the content of a lock file.
type Info struct {
	PID      int
	Acquired time.Time
}

// Acquire creates path exclusively. If it already exists and is younger
// than StaleAfter the call fails with failure.ErrLocked; an older file is
// replaced.
func Acquire(path string, opts Options) (*Lock, error) {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			now := opts.Clock.Now()
			_, werr := fmt.Fprintf(f, "%d\n%s\n", os.Getpid(), now.Format(time.RFC3339))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		info, statErr := os.Stat(path)
		if statErr != nil {
			// Holder released it between our open and stat.
			continue
		}
		age := opts.Clock.Now().Sub(info.ModTime())
		if age < opts.StaleAfter {
			holder, _ := Read(path)
			return nil, fmt.Errorf("%w: %s held by pid %d since %s",
				failure.ErrLocked, path, holder.PID, info.ModTime().Format(time.RFC3339))
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", failure.ErrLocked, path)
}

// Read parses a lock file. Missing fields are left zero.
func Read(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	var info Info
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > 0 {
		info.PID, _ = strconv.Atoi(strings.TrimSpace(lines[0]))
	}
	if len(lines) > 1 {
		info.Acquired, _ = time.Parse(time.RFC3339, strings.TrimSpace(lines[1]))
	}
	return info, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
