// Package suite runs the checked-out UI test suite against the installed
// product and reports what failed.
package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sikuli-bot/src/execute"
	"sikuli-bot/src/failure"
	"sikuli-bot/src/logger"
	"sikuli-bot/src/testlog"
)

// Outcome is what a suite run produced.
type Outcome struct {
	// Ran is false when the branch has no suite directory.
	Ran      bool
	ExitCode int
	// RawLog is the runner's log file; it may not exist.
	RawLog   string
	Failures []string
	Duration time.Duration
}

// Invoker runs the suite found in Dir.
type Invoker struct {
	Exec execute.Runner
	// Dir is the suite directory inside the workspace.
	Dir         string
	Interpreter string
	Entry       string
	Args        []string
	LogFile     string
	JUnitReport string
	StripPrefix string
	// EnvVar=AppPath is set in the runner's environment only.
	EnvVar  string
	AppPath string
	Timeout time.Duration
	Logger  logger.Logger
}

// Run executes the suite and parses its failures. A missing suite
// directory is not an error: it returns Outcome{Ran: false}.
func (inv *Invoker) Run(ctx context.Context) (*Outcome, error) {
	log := inv.Logger
	if log == nil {
		log = logger.NewSilentLogger()
	}

	outcome := &Outcome{RawLog: filepath.Join(inv.Dir, inv.logFile())}

	info, err := os.Stat(inv.Dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		log.Info("No Sikuli tests found on this branch")
		return outcome, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure.ErrSuiteFailed, err)
	}

	// A stale log from the checkout must not be mistaken for this run's.
	if err := os.Remove(outcome.RawLog); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: remove stale log: %v", failure.ErrSuiteFailed, err)
	}

	cmd := inv.command()
	log.Info("Running %s", cmd)
	res := inv.Exec.Run(ctx, cmd)
	outcome.Ran = true
	outcome.ExitCode = res.ExitCode
	outcome.Duration = res.Duration

	if !res.Success {
		if res.ExitCode < 0 {
			return outcome, fmt.Errorf("%w: %v", failure.ErrSuiteFailed, res.Error)
		}
		// Failing tests make most runners exit non-zero; the log decides.
		log.Warn("Test runner exited with %d", res.ExitCode)
	}

	failures, err := testlog.ParseFile(outcome.RawLog, inv.StripPrefix)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn("Test runner left no %s", inv.logFile())
	case err != nil:
		return outcome, fmt.Errorf("%w: %v", failure.ErrSuiteFailed, err)
	}
	outcome.Failures = failures

	if inv.JUnitReport != "" {
		report := inv.JUnitReport
		if !filepath.IsAbs(report) {
			report = filepath.Join(inv.Dir, report)
		}
		extra, err := testlog.ParseJUnitFile(report, inv.StripPrefix)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Debug("No JUnit report at %s", report)
		case err != nil:
			log.Warn("Ignoring JUnit report %s: %v", report, err)
		default:
			outcome.Failures = testlog.Merge(outcome.Failures, extra)
		}
	}

	log.Info("%d failing tests", len(outcome.Failures))
	return outcome, nil
}

func (inv *Invoker) command() execute.Command {
	entry := filepath.Join(inv.Dir, inv.Entry)
	var name string
	var args []string
	if inv.Interpreter != "" {
		name = inv.Interpreter
		args = append([]string{entry}, inv.Args...)
	} else {
		name = entry
		args = append([]string(nil), inv.Args...)
	}

	env := map[string]string{}
	if inv.EnvVar != "" {
		env[inv.EnvVar] = inv.AppPath
	}
	return execute.Command{
		Name:        name,
		Args:        args,
		Dir:         inv.Dir,
		Env:         env,
		Timeout:     inv.Timeout,
		Description: "sikuli suite",
	}
}

func (inv *Invoker) logFile() string {
	if inv.LogFile == "" {
		return "log.txt"
	}
	return inv.LogFile
}
