package tui

import (
	"strings"

	"sikuli-bot/src/contracts"
)

// Item wraps a RunRecord and implements bubbles/list.Item.
type Item struct {
	Run contracts.RunRecord
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Run.BuildName + " " + i.Run.Branch }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string {
	if i.Run.BuildName != "" {
		return i.Run.BuildName
	}
	return i.Run.RunID
}

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Run.Branch }

// Glyph is the one-character status marker shown in the list.
func (i Item) Glyph() string {
	switch i.Run.Status {
	case contracts.StatusPassed:
		return "✓"
	case contracts.StatusFailed:
		return "✗"
	case contracts.StatusError:
		return "!"
	case contracts.StatusNoTests:
		return "∅"
	case contracts.StatusRunning:
		return "…"
	}
	return "?"
}

// IsNew reports whether test first failed in this run.
func (i Item) IsNew(test string) bool {
	for _, n := range i.Run.NewFailures {
		if n == test {
			return true
		}
	}
	return false
}

// Matches reports whether query occurs in the build, branch, error or any
// failing test, ignoring case.
func (i Item) Matches(query string) bool {
	query = strings.ToLower(query)
	fields := []string{i.Run.BuildName, i.Run.Branch, i.Run.Error, i.Run.RunID}
	fields = append(fields, i.Run.Failures...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}
