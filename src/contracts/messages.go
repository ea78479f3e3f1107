// Package contracts defines the run records and events shared by the bot,
// its store, its broker consumers and the MCP server.
package contracts

import "time"

// TopicRuns carries RunEvent messages, keyed by build name.
const TopicRuns = "sikulibot.runs"

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	StatusRunning     RunStatus = "running"
	StatusNoInstaller RunStatus = "no_installer"
	StatusPassed      RunStatus = "passed"
	StatusFailed      RunStatus = "failed"
	StatusNoTests     RunStatus = "no_tests"
	StatusError       RunStatus = "error"
	// StatusDryRun ends a run after branch resolution. Never stored.
	StatusDryRun RunStatus = "dry_run"
)

// Stages of a run, in order.
const (
	StageScan    = "scan"
	StageResolve = "resolve"
	StageFetch   = "fetch"
	StageInstall = "install"
	StageTest    = "test"
	StageArchive = "archive"
	StageReport  = "report"
	StageDone    = "done"
)

// RunRecord is the persisted result of one bot invocation.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Installer  string    `json:"installer,omitempty"`
	BuildName  string    `json:"build_name,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Remote     string    `json:"remote,omitempty"`
	Ref        string    `json:"ref,omitempty"`
	PullNumber int       `json:"pull_number,omitempty"`
	Fallback   bool      `json:"fallback,omitempty"`
	Status     RunStatus `json:"status"`
	// Stage is the last stage entered; for errors, the one that failed.
	Stage       string    `json:"stage"`
	Failures    []string  `json:"failures"`
	NewFailures []string  `json:"new_failures,omitempty"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	LogPath     string    `json:"log_path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunEvent is published on every stage transition.
// Published to: sikulibot.runs
// Key: {build_name}
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Status    RunStatus `json:"status"`
	BuildName string    `json:"build_name,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Message   string    `json:"message,omitempty"`
	Failures  int       `json:"failures"`
	Timestamp time.Time `json:"timestamp"`
}
