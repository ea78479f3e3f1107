// Package testlog extracts failing test identifiers from the UI test
// runner's log and from optional JUnit XML reports.
package testlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// ParseFailures returns one identifier per line that starts with "FAIL"
// (any case): the line's last whitespace-separated token with stripPrefix
// removed. Lines are read after ANSI escape sequences are stripped.
func ParseFailures(r io.Reader, stripPrefix string) ([]string, error) {
	var failures []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := ansi.Strip(scanner.Text())
		if !strings.HasPrefix(strings.ToUpper(line), "FAIL") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		failures = append(failures, StripPrefix(fields[len(fields)-1], stripPrefix))
	}
	if err := scanner.Err(); err != nil {
		return failures, fmt.Errorf("read test log: %w", err)
	}
	return failures, nil
}

// ParseFile is ParseFailures over the file at path.
func ParseFile(path, stripPrefix string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFailures(f, stripPrefix)
}

// StripPrefix removes the directory prefix from the start of id, treating
// / and \ as the same separator and ignoring case, then drops one leading
// separator. prefix must end on a path component boundary of id. The rest
// of id keeps its original spelling.
func StripPrefix(id, prefix string) string {
	prefix = strings.TrimRight(prefix, `/\`)
	if prefix == "" || len(id) <= len(prefix) {
		return id
	}
	if !strings.EqualFold(normalizeSeparators(id[:len(prefix)]), normalizeSeparators(prefix)) {
		return id
	}
	rest := id[len(prefix):]
	if rest[0] != '/' && rest[0] != '\\' {
		return id
	}
	if rest = rest[1:]; rest == "" {
		return id
	}
	return rest
}

func normalizeSeparators(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}

// Merge appends the entries of extra that are not already in base,
// keeping first-seen order.
func Merge(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
