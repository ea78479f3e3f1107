// Package mcp exposes run history and the installer drop to LLM agents
// over the Model Context Protocol.
package mcp

// RunSummary is one row of list_runs.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	BuildName string `json:"build_name,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Failures  int    `json:"failures"`
	New       int    `json:"new_failures,omitempty"`
	Error     string `json:"error,omitempty"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration,omitempty"`
}

// RunDetail is the get_run response. Failure paths share their common
// prefix once instead of repeating it.
type RunDetail struct {
	RunID       string   `json:"run_id"`
	Status      string   `json:"status"`
	Stage       string   `json:"stage"`
	Installer   string   `json:"installer,omitempty"`
	BuildName   string   `json:"build_name,omitempty"`
	Branch      string   `json:"branch,omitempty"`
	Remote      string   `json:"remote,omitempty"`
	Ref         string   `json:"ref,omitempty"`
	PullNumber  int      `json:"pull_number,omitempty"`
	Fallback    bool     `json:"fallback,omitempty"`
	FailureRoot string   `json:"failure_root,omitempty"`
	Failures    []string `json:"failures"`
	NewFailures []string `json:"new_failures,omitempty"`
	ExitCode    int      `json:"exit_code"`
	Error       string   `json:"error,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	LogPath     string   `json:"log_path,omitempty"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at,omitempty"`
}

// RunLog is the get_run_log response.
type RunLog struct {
	RunID     string   `json:"run_id"`
	LogPath   string   `json:"log_path"`
	Lines     []string `json:"lines"`
	Truncated bool     `json:"truncated,omitempty"`
}

// PendingInstaller is the pending_installer response.
type PendingInstaller struct {
	Installers []string `json:"installers"`
	Logs       []string `json:"logs"`
	Untested   string   `json:"untested,omitempty"`
	Branch     string   `json:"branch,omitempty"`
	BranchErr  string   `json:"branch_error,omitempty"`
}

// BranchHealth groups the failures seen across recent runs of a branch.
type BranchHealth struct {
	Branch            string        `json:"branch"`
	RunsExamined      int           `json:"runs_examined"`
	LatestRunID       string        `json:"latest_run_id,omitempty"`
	LatestStatus      string        `json:"latest_status,omitempty"`
	Tier1New          []TestFailure `json:"tier_1_new_failures"`
	Tier2Recurring    []TestFailure `json:"tier_2_recurring_failures"`
	Tier3Intermittent []TestFailure `json:"tier_3_intermittent_failures"`
}

// TestFailure is one failing test in BranchHealth.
type TestFailure struct {
	Test string `json:"test"`
	// Streak counts consecutive latest runs the test failed in.
	Streak int `json:"streak"`
	// Failed counts the examined runs the test failed in.
	Failed        int    `json:"failed"`
	LastFailedRun string `json:"last_failed_run,omitempty"`
}
