// Package report turns a run into a chat message and delivers it.
package report

import (
	"fmt"
	"strings"

	"sikuli-bot/src/failure"
)

const (
	successLine = "Success :heavy_check_mark:"
	failureLine = "FAILURE :x:"
)

// Summary is what Format needs to know about a finished suite run.
type Summary struct {
	BuildName string
	Failures  []string
	// Previous holds the failures of the last recorded run of the same
	// branch. Nil means there was no such run and nothing is marked new.
	Previous []string
}

// Format renders the result message: the build name, a status line, then
// one "- <test>" line per failure in log order. Failures that the previous
// run of the branch did not have are marked " (new)".
func Format(s Summary) string {
	if len(s.Failures) == 0 {
		return s.BuildName + "\n" + successLine
	}

	var known map[string]bool
	if s.Previous != nil {
		known = make(map[string]bool, len(s.Previous))
		for _, p := range s.Previous {
			known[p] = true
		}
	}

	var b strings.Builder
	b.WriteString(s.BuildName)
	b.WriteString("\n")
	b.WriteString(failureLine)
	for _, f := range s.Failures {
		b.WriteString("\n- ")
		b.WriteString(f)
		if known != nil && !known[f] {
			b.WriteString(" (new)")
		}
	}
	return b.String()
}

// FormatNoTests is posted, when enabled, for branches without a suite.
func FormatNoTests(buildName string) string {
	return buildName + "\nNo Sikuli tests found on this branch"
}

// FormatError reports a run that stopped before the tests ran.
func FormatError(buildName, stage string, err error) string {
	name := buildName
	if name == "" {
		name = "sikuli-bot"
	}
	return fmt.Sprintf("%s\nERROR :warning: %s failed (%s)\n%v", name, stage, failure.Kind(err), err)
}
