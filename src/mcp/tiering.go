package mcp

import (
	"sort"
	"strings"
	"time"

	"sikuli-bot/src/contracts"
)

// Default failure limits per tier.
// Tier 1 gets more entries since new failures are the highest signal.
const (
	DefaultTier1Limit = 15
	DefaultTier2Limit = 10
	DefaultTier3Limit = 5
)

// DefaultHealthWindow is how many recent runs branch_health examines.
const DefaultHealthWindow = 10

// TierFailures classifies the failures of a branch's recent runs.
// runs must be newest first; runs of other branches and runs without a
// test verdict are ignored, and at most window runs are examined.
//
// Tier 1: failing in the latest run only (new).
// Tier 2: failing in the latest run and the run before it (recurring).
// Tier 3: failing in an earlier run but not the latest (intermittent or fixed).
func TierFailures(branch string, runs []contracts.RunRecord, window, limit int) BranchHealth {
	if window <= 0 {
		window = DefaultHealthWindow
	}
	tier1Limit, tier2Limit, tier3Limit := tierLimits(limit)

	var examined []contracts.RunRecord
	for _, r := range runs {
		if !strings.EqualFold(r.Branch, branch) {
			continue
		}
		if r.Status != contracts.StatusPassed && r.Status != contracts.StatusFailed {
			continue
		}
		examined = append(examined, r)
		if len(examined) == window {
			break
		}
	}

	health := BranchHealth{
		Branch:            branch,
		RunsExamined:      len(examined),
		Tier1New:          []TestFailure{},
		Tier2Recurring:    []TestFailure{},
		Tier3Intermittent: []TestFailure{},
	}
	if len(examined) == 0 {
		return health
	}
	health.LatestRunID = examined[0].RunID
	health.LatestStatus = string(examined[0].Status)

	stats := failureStats(examined)

	for _, test := range dedupe(examined[0].Failures) {
		f := stats[test]
		if f.Streak == 1 {
			if len(health.Tier1New) < tier1Limit {
				health.Tier1New = append(health.Tier1New, *f)
			}
			continue
		}
		health.Tier2Recurring = append(health.Tier2Recurring, *f)
	}
	sort.SliceStable(health.Tier2Recurring, func(i, j int) bool {
		return health.Tier2Recurring[i].Streak > health.Tier2Recurring[j].Streak
	})
	if len(health.Tier2Recurring) > tier2Limit {
		health.Tier2Recurring = health.Tier2Recurring[:tier2Limit]
	}

	for _, f := range stats {
		if f.Streak == 0 {
			health.Tier3Intermittent = append(health.Tier3Intermittent, *f)
		}
	}
	sort.Slice(health.Tier3Intermittent, func(i, j int) bool {
		a, b := health.Tier3Intermittent[i], health.Tier3Intermittent[j]
		if a.Failed != b.Failed {
			return a.Failed > b.Failed
		}
		return a.Test < b.Test
	})
	if len(health.Tier3Intermittent) > tier3Limit {
		health.Tier3Intermittent = health.Tier3Intermittent[:tier3Limit]
	}

	return health
}

// failureStats counts, per test, the runs it failed in, its current
// streak and the newest run it failed in.
func failureStats(runs []contracts.RunRecord) map[string]*TestFailure {
	stats := make(map[string]*TestFailure)
	streakOpen := make(map[string]bool)

	for i, r := range runs {
		failed := make(map[string]bool)
		for _, test := range r.Failures {
			if failed[test] {
				continue
			}
			failed[test] = true

			f, ok := stats[test]
			if !ok {
				f = &TestFailure{Test: test, LastFailedRun: r.RunID}
				stats[test] = f
				streakOpen[test] = i == 0
			}
			f.Failed++
			if streakOpen[test] {
				f.Streak++
			}
		}
		for test, open := range streakOpen {
			if open && !failed[test] {
				streakOpen[test] = false
			}
		}
	}
	return stats
}

// tierLimits scales the per-tier limits from the tier 1 limit.
func tierLimits(limit int) (int, int, int) {
	if limit <= 0 || limit == DefaultTier1Limit {
		return DefaultTier1Limit, DefaultTier2Limit, DefaultTier3Limit
	}
	return limit, max(1, limit*2/3), max(1, limit/3)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// toSummary converts a run to a list_runs row.
func toSummary(r contracts.RunRecord) RunSummary {
	s := RunSummary{
		RunID:     r.RunID,
		Status:    string(r.Status),
		BuildName: r.BuildName,
		Branch:    r.Branch,
		Failures:  len(r.Failures),
		New:       len(r.NewFailures),
		StartedAt: r.StartedAt.Format(time.RFC3339),
	}
	if d := r.Duration(); d > 0 {
		s.Duration = d.Round(time.Second).String()
	}
	if r.Error != "" {
		msg := CompressLine(r.Error)
		if len(msg) > 100 {
			msg = msg[:97] + "..."
		}
		s.Error = msg
	}
	return s
}

// toDetail converts a run to a get_run response, factoring out the shared
// directory of its failures.
func toDetail(r contracts.RunRecord) RunDetail {
	root, failures := failureRoot(r.Failures)
	if failures == nil {
		failures = []string{}
	}
	var newFailures []string
	if len(r.NewFailures) > 0 {
		newFailures = make([]string, len(r.NewFailures))
		for i, id := range r.NewFailures {
			newFailures[i] = strings.TrimPrefix(id, root)
		}
	}

	d := RunDetail{
		RunID:       r.RunID,
		Status:      string(r.Status),
		Stage:       r.Stage,
		Installer:   r.Installer,
		BuildName:   r.BuildName,
		Branch:      r.Branch,
		Remote:      r.Remote,
		Ref:         r.Ref,
		PullNumber:  r.PullNumber,
		Fallback:    r.Fallback,
		FailureRoot: root,
		Failures:    failures,
		NewFailures: newFailures,
		ExitCode:    r.ExitCode,
		Error:       r.Error,
		ErrorKind:   r.ErrorKind,
		LogPath:     r.LogPath,
		StartedAt:   r.StartedAt.Format(time.RFC3339),
	}
	if !r.FinishedAt.IsZero() {
		d.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return d
}
