// Package execute runs external programs (git, installers, the UI test
// runner) and reports a structured result instead of ad hoc process calls.
package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Command describes one external program invocation.
type Command struct {
	Name        string
	Args        []string
	Dir         string
	Env         map[string]string // added to (and overriding) the parent environment
	Timeout     time.Duration     // zero means no timeout
	Description string
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result contains the result of running a Command.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Error    error
}

// Runner runs commands to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) *Result
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// Stream, when set, receives a copy of the child's stdout and stderr
	// as it is produced. Long-running installers and test suites are
	// otherwise silent until they exit.
	Stream io.Writer
}

// NewExecRunner creates a runner that only captures output.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) *Result {
	startTime := time.Now()
	result := &Result{}

	execCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	//nolint:gosec // G204: every command line comes from operator configuration
	c := exec.CommandContext(execCtx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	c.Env = MergeEnv(os.Environ(), cmd.Env)

	var stdout, stderr bytes.Buffer
	if r.Stream != nil {
		c.Stdout = io.MultiWriter(&stdout, r.Stream)
		c.Stderr = io.MultiWriter(&stderr, r.Stream)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	err := c.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		result.Error = err
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			result.Error = fmt.Errorf("%s: timeout after %v", cmd.Name, cmd.Timeout)
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = -1
		}
		return result
	}

	result.Success = true
	result.ExitCode = 0
	return result
}

// MergeEnv overlays extra on base ("KEY=VALUE" entries). Keys in extra
// replace any existing entry with the same key; the output is sorted by
// key for the overlaid part so child environments are reproducible.
func MergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := lookupKey(extra, key); overridden {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// lookupKey compares keys case-insensitively, as Windows does.
func lookupKey(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
