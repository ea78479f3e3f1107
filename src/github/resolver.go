package github

import (
	"context"
	"strings"

	"sikuli-bot/src/logger"
)

// PullRequestLister is the part of Client the resolver depends on.
type PullRequestLister interface {
	ListPullRequests(ctx context.Context, owner, repo, state string) ([]PullRequest, error)
}

// Resolution says where to fetch the source of a branch from.
type Resolution struct {
	Remote     string // "owner/repo" of the pull request head
	Ref        string // commit SHA or branch name to check out
	PullNumber int
	Fallback   bool // no pull request matched; Remote/Ref are the defaults
}

// Resolver maps an installer's branch to the repository that holds it.
type Resolver struct {
	Lister        PullRequestLister
	Owner         string
	Repo          string
	DefaultRemote string
	DefaultRef    string
	// CheckoutCommit selects head.sha as Ref instead of head.ref.
	CheckoutCommit bool
	Logger         logger.Logger
}

// Resolve returns the head of the first open pull request whose label
// contains branch, ignoring case. Without a match it falls back to the
// default remote and ref.
func (r *Resolver) Resolve(ctx context.Context, branch string) (Resolution, error) {
	prs, err := r.Lister.ListPullRequests(ctx, r.Owner, r.Repo, "open")
	if err != nil {
		return Resolution{}, err
	}

	needle := strings.ToLower(branch)
	for _, pr := range prs {
		if !strings.Contains(strings.ToLower(pr.Head.Label), needle) {
			continue
		}
		if pr.Head.Repo == nil || pr.Head.Repo.FullName == "" {
			r.log().Warn("Pull request #%d matches %q but its head repository is gone", pr.Number, branch)
			continue
		}
		ref := pr.Head.Ref
		if r.CheckoutCommit && pr.Head.SHA != "" {
			ref = pr.Head.SHA
		}
		r.log().Debug("Branch %q matched pull request #%d (%s)", branch, pr.Number, pr.Head.Label)
		return Resolution{
			Remote:     pr.Head.Repo.FullName,
			Ref:        ref,
			PullNumber: pr.Number,
		}, nil
	}

	r.log().Warn("No open pull request for branch %q, falling back to %s:%s", branch, r.DefaultRemote, r.DefaultRef)
	return Resolution{Remote: r.DefaultRemote, Ref: r.DefaultRef, Fallback: true}, nil
}

func (r *Resolver) log() logger.Logger {
	if r.Logger == nil {
		return logger.NewSilentLogger()
	}
	return r.Logger
}
