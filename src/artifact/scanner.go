// Package artifact finds today's patch installers and archived test logs
// and picks the first installer that has not been tested yet.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sikuli-bot/src/failure"
)

// File is a directory entry that passed the modification-time filter.
type File struct {
	Name    string
	ModTime time.Time
}

// FilesModifiedSince lists regular files in dir modified strictly after
// threshold.
func FilesModifiedSince(dir string, threshold time.Time) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", failure.ErrScanFailed, dir, err)
	}

	var files []File
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: stat %s: %v", failure.ErrScanFailed, entry.Name(), err)
		}
		if info.ModTime().After(threshold) {
			files = append(files, File{Name: entry.Name(), ModTime: info.ModTime()})
		}
	}
	return files, nil
}

// NamePattern is the case-insensitive filename rule for an artifact kind.
type NamePattern struct {
	Prefix string
	Suffix string
	Marker string
}

// Match reports whether name starts with Prefix, ends with Suffix and
// contains Marker, ignoring case.
func (p NamePattern) Match(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, strings.ToLower(p.Prefix)) &&
		strings.HasSuffix(lower, strings.ToLower(p.Suffix)) &&
		strings.Contains(lower, strings.ToLower(p.Marker))
}

// Filter keeps the names of files matching p.
func (p NamePattern) Filter(files []File) []string {
	var names []string
	for _, f := range files {
		if p.Match(f.Name) {
			names = append(names, f.Name)
		}
	}
	return names
}

// PurgeStaleLogs creates dir if needed and deletes every regular file in it
// modified strictly before threshold. It returns the removed names.
func PurgeStaleLogs(dir string, threshold time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", failure.ErrScanFailed, dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", failure.ErrScanFailed, dir, err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(threshold) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("%w: remove %s: %v", failure.ErrScanFailed, entry.Name(), err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

// Scanner ties the two watched directories to their name patterns.
type Scanner struct {
	InstallerDir string
	LogDir       string
	Installers   NamePattern
	Logs         NamePattern
}

// TodaysInstallers returns matching installers modified after since.
func (s *Scanner) TodaysInstallers(since time.Time) ([]string, error) {
	files, err := FilesModifiedSince(s.InstallerDir, since)
	if err != nil {
		return nil, err
	}
	return s.Installers.Filter(files), nil
}

// TodaysLogs returns matching logs modified after since. A log directory
// that does not exist yet holds no logs.
func (s *Scanner) TodaysLogs(since time.Time) ([]string, error) {
	if _, err := os.Stat(s.LogDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	files, err := FilesModifiedSince(s.LogDir, since)
	if err != nil {
		return nil, err
	}
	return s.Logs.Filter(files), nil
}

// Selection is the outcome of one scan.
type Selection struct {
	Installers []string
	Logs       []string
	Purged     []string
	Installer  string // empty when every installer has a log
}

// Scan lists today's installers, purges logs from earlier days (unless
// purge is false), lists today's logs and selects the first untested
// installer.
func (s *Scanner) Scan(today time.Time, purge bool) (*Selection, error) {
	installers, err := s.TodaysInstallers(today)
	if err != nil {
		return nil, err
	}

	sel := &Selection{Installers: installers}
	if purge {
		sel.Purged, err = PurgeStaleLogs(s.LogDir, today)
		if err != nil {
			return nil, err
		}
	}

	sel.Logs, err = s.TodaysLogs(today)
	if err != nil {
		return nil, err
	}
	sel.Installer = SelectUntested(sel.Installers, sel.Logs)
	return sel, nil
}

// BuildName strips the final extension from an installer or log filename.
func BuildName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// SelectUntested returns the first installer, in ascending filename order,
// whose build name is not a case-insensitive prefix of any log name.
func SelectUntested(installers, logs []string) string {
	sorted := append([]string(nil), installers...)
	sort.Strings(sorted)

	lowerLogs := make([]string, len(logs))
	for i, l := range logs {
		lowerLogs[i] = strings.ToLower(l)
	}

	for _, installer := range sorted {
		build := strings.ToLower(BuildName(installer))
		tested := false
		for _, log := range lowerLogs {
			if strings.HasPrefix(log, build) {
				tested = true
				break
			}
		}
		if !tested {
			return installer
		}
	}
	return ""
}
