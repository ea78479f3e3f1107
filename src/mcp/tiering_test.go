package mcp

import (
	"fmt"
	"testing"
	"time"

	"sikuli-bot/src/contracts"
)

func record(id, branch string, status contracts.RunStatus, failures ...string) contracts.RunRecord {
	return contracts.RunRecord{RunID: id, Branch: branch, Status: status, Failures: failures}
}

func TestTierFailures(t *testing.T) {
	// Newest first
	runs := []contracts.RunRecord{
		record("r5", "GA-7", contracts.StatusFailed, "a.sikuli", "b.sikuli"),
		record("r4", "other", contracts.StatusFailed, "a.sikuli"),
		record("r3", "ga-7", contracts.StatusError),
		record("r2", "GA-7", contracts.StatusFailed, "b.sikuli", "c.sikuli"),
		record("r1", "GA-7", contracts.StatusFailed, "c.sikuli"),
	}

	health := TierFailures("GA-7", runs, 0, 0)

	if health.RunsExamined != 3 {
		t.Errorf("RunsExamined = %d, want 3", health.RunsExamined)
	}
	if health.LatestRunID != "r5" || health.LatestStatus != "failed" {
		t.Errorf("latest = %s/%s, want r5/failed", health.LatestRunID, health.LatestStatus)
	}

	if len(health.Tier1New) != 1 || health.Tier1New[0].Test != "a.sikuli" {
		t.Fatalf("Tier1New = %+v, want [a.sikuli]", health.Tier1New)
	}
	if health.Tier1New[0].Streak != 1 || health.Tier1New[0].Failed != 1 {
		t.Errorf("Tier1New[0] = %+v", health.Tier1New[0])
	}

	if len(health.Tier2Recurring) != 1 || health.Tier2Recurring[0].Test != "b.sikuli" {
		t.Fatalf("Tier2Recurring = %+v, want [b.sikuli]", health.Tier2Recurring)
	}
	if health.Tier2Recurring[0].Streak != 2 {
		t.Errorf("b.sikuli streak = %d, want 2", health.Tier2Recurring[0].Streak)
	}

	if len(health.Tier3Intermittent) != 1 {
		t.Fatalf("Tier3Intermittent = %+v, want [c.sikuli]", health.Tier3Intermittent)
	}
	c := health.Tier3Intermittent[0]
	if c.Test != "c.sikuli" || c.Streak != 0 || c.Failed != 2 || c.LastFailedRun != "r2" {
		t.Errorf("Tier3Intermittent[0] = %+v", c)
	}
}

func TestTierFailures_Window(t *testing.T) {
	runs := []contracts.RunRecord{
		record("r3", "GA-7", contracts.StatusFailed, "a.sikuli"),
		record("r2", "GA-7", contracts.StatusFailed, "a.sikuli"),
		record("r1", "GA-7", contracts.StatusFailed, "a.sikuli", "old.sikuli"),
	}

	health := TierFailures("GA-7", runs, 2, 0)

	if health.RunsExamined != 2 {
		t.Errorf("RunsExamined = %d, want 2", health.RunsExamined)
	}
	if len(health.Tier2Recurring) != 1 || health.Tier2Recurring[0].Streak != 2 {
		t.Errorf("Tier2Recurring = %+v", health.Tier2Recurring)
	}
	if len(health.Tier3Intermittent) != 0 {
		t.Errorf("run outside the window leaked into tier 3: %+v", health.Tier3Intermittent)
	}
}

func TestTierFailures_NoRuns(t *testing.T) {
	health := TierFailures("GA-7", nil, 10, 15)

	if health.RunsExamined != 0 || health.LatestRunID != "" {
		t.Errorf("health = %+v", health)
	}
	// Empty slices, not nil, so the JSON carries [] instead of null
	if health.Tier1New == nil || health.Tier2Recurring == nil || health.Tier3Intermittent == nil {
		t.Error("tiers should be empty slices")
	}
}

func TestTierFailures_Limit(t *testing.T) {
	var failures []string
	for i := 0; i < 20; i++ {
		failures = append(failures, fmt.Sprintf("t%02d.sikuli", i))
	}
	runs := []contracts.RunRecord{record("r1", "GA-7", contracts.StatusFailed, failures...)}

	if got := len(TierFailures("GA-7", runs, 0, 0).Tier1New); got != DefaultTier1Limit {
		t.Errorf("default limit: %d entries, want %d", got, DefaultTier1Limit)
	}
	if got := len(TierFailures("GA-7", runs, 0, 3).Tier1New); got != 3 {
		t.Errorf("limit 3: %d entries, want 3", got)
	}
}

func TestTierLimits(t *testing.T) {
	tests := []struct {
		limit      int
		t1, t2, t3 int
	}{
		{0, 15, 10, 5},
		{15, 15, 10, 5},
		{9, 9, 6, 3},
		{1, 1, 1, 1},
	}

	for _, tt := range tests {
		t1, t2, t3 := tierLimits(tt.limit)
		if t1 != tt.t1 || t2 != tt.t2 || t3 != tt.t3 {
			t.Errorf("tierLimits(%d) = %d,%d,%d, want %d,%d,%d", tt.limit, t1, t2, t3, tt.t1, tt.t2, tt.t3)
		}
	}
}

func TestToSummary(t *testing.T) {
	start := time.Date(2016, 11, 24, 17, 0, 0, 0, time.UTC)
	r := contracts.RunRecord{
		RunID:       "r1",
		Status:      contracts.StatusError,
		BuildName:   "GA-7_1234",
		Branch:      "GA-7",
		Failures:    []string{"a.sikuli", "b.sikuli"},
		NewFailures: []string{"b.sikuli"},
		Error:       "\x1b[31mclone failed\x1b[0m   exit 128",
		StartedAt:   start,
		FinishedAt:  start.Add(90 * time.Second),
	}

	s := toSummary(r)

	if s.Failures != 2 || s.New != 1 {
		t.Errorf("counts = %d/%d, want 2/1", s.Failures, s.New)
	}
	if s.Error != "clone failed exit 128" {
		t.Errorf("Error = %q", s.Error)
	}
	if s.StartedAt != "2016-11-24T17:00:00Z" {
		t.Errorf("StartedAt = %q", s.StartedAt)
	}
	if s.Duration != "1m30s" {
		t.Errorf("Duration = %q, want 1m30s", s.Duration)
	}

	unfinished := toSummary(contracts.RunRecord{RunID: "r2", StartedAt: start})
	if unfinished.Duration != "" {
		t.Errorf("unfinished Duration = %q, want empty", unfinished.Duration)
	}
}

func TestToSummary_TruncatesError(t *testing.T) {
	long := ""
	for len(long) < 150 {
		long += "error "
	}
	s := toSummary(contracts.RunRecord{RunID: "r1", Error: long})
	if len(s.Error) != 100 {
		t.Errorf("len(Error) = %d, want 100", len(s.Error))
	}
}

func TestToDetail(t *testing.T) {
	start := time.Date(2016, 11, 24, 17, 0, 0, 0, time.UTC)
	r := contracts.RunRecord{
		RunID:       "r1",
		Status:      contracts.StatusFailed,
		Stage:       contracts.StageDone,
		Branch:      "GA-7",
		Remote:      "https://github.com/fork/repo.git",
		Ref:         "GA-7",
		PullNumber:  42,
		Failures:    []string{`C:\suite\tests\a.sikuli`, `C:\suite\tests\b.sikuli`},
		NewFailures: []string{`C:\suite\tests\b.sikuli`},
		StartedAt:   start,
	}

	d := toDetail(r)

	if d.FailureRoot != `C:\suite\tests\` {
		t.Errorf("FailureRoot = %q", d.FailureRoot)
	}
	if len(d.Failures) != 2 || d.Failures[0] != "a.sikuli" || d.Failures[1] != "b.sikuli" {
		t.Errorf("Failures = %v", d.Failures)
	}
	if len(d.NewFailures) != 1 || d.NewFailures[0] != "b.sikuli" {
		t.Errorf("NewFailures = %v", d.NewFailures)
	}
	if d.PullNumber != 42 || d.Remote != r.Remote {
		t.Errorf("resolution not carried over: %+v", d)
	}
	if d.FinishedAt != "" {
		t.Errorf("FinishedAt = %q, want empty", d.FinishedAt)
	}

	passed := toDetail(contracts.RunRecord{RunID: "r2", Status: contracts.StatusPassed})
	if passed.Failures == nil {
		t.Error("Failures should be an empty slice for a passing run")
	}
}
