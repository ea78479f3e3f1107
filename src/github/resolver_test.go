package github

import (
	"context"
	"errors"
	"testing"

	"sikuli-bot/src/failure"
)

type fakeLister struct {
	prs   []PullRequest
	err   error
	state string
}

func (f *fakeLister) ListPullRequests(ctx context.Context, owner, repo, state string) ([]PullRequest, error) {
	f.state = state
	return f.prs, f.err
}

func pr(number int, label, ref, sha, repo string) PullRequest {
	p := PullRequest{Number: number, Head: Branch{Label: label, Ref: ref, SHA: sha}}
	if repo != "" {
		p.Head.Repo = &Repository{FullName: repo}
	}
	return p
}

func newResolver(l PullRequestLister, commit bool) *Resolver {
	return &Resolver{
		Lister:         l,
		Owner:          "MiraGeoscience",
		Repo:           "InSight",
		DefaultRemote:  "MiraGeoscience/InSight",
		DefaultRef:     "development",
		CheckoutCommit: commit,
	}
}

func TestResolver_Resolve(t *testing.T) {
	lister := &fakeLister{prs: []PullRequest{
		pr(10, "alice:GA-100-other", "GA-100-other", "sha10", "alice/InSight"),
		pr(11, "bob:GA-200-Fix-Crash", "GA-200-Fix-Crash", "sha11", "bob/InSight"),
		pr(12, "carol:ga-200-fix-crash-v2", "ga-200-fix-crash-v2", "sha12", "carol/InSight"),
		pr(13, "ghost:GA-300", "GA-300", "sha13", ""),
		pr(14, "dave:GA-300", "GA-300", "sha14", "dave/InSight"),
	}}

	tests := []struct {
		name   string
		branch string
		commit bool
		want   Resolution
	}{
		{
			name:   "first match wins, case-insensitive",
			branch: "ga-200-fix-crash",
			want:   Resolution{Remote: "bob/InSight", Ref: "GA-200-Fix-Crash", PullNumber: 11},
		},
		{
			name:   "checkout commit",
			branch: "GA-200-fix-crash",
			commit: true,
			want:   Resolution{Remote: "bob/InSight", Ref: "sha11", PullNumber: 11},
		},
		{
			name:   "deleted fork skipped",
			branch: "GA-300",
			want:   Resolution{Remote: "dave/InSight", Ref: "GA-300", PullNumber: 14},
		},
		{
			name:   "fallback",
			branch: "GA-999",
			want:   Resolution{Remote: "MiraGeoscience/InSight", Ref: "development", Fallback: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newResolver(lister, tt.commit).Resolve(context.Background(), tt.branch)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if lister.state != "open" {
		t.Errorf("listed state %q, want open", lister.state)
	}
}

func TestResolver_ListError(t *testing.T) {
	lister := &fakeLister{err: failure.ErrAuthFailed}
	_, err := newResolver(lister, true).Resolve(context.Background(), "GA-1")
	if !errors.Is(err, failure.ErrAuthFailed) {
		t.Errorf("error = %v, want ErrAuthFailed", err)
	}
}
