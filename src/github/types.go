package github

// PullRequest is the subset of a GitHub pull request the resolver needs.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
	Head    Branch `json:"head"`
	Base    Branch `json:"base"`
}

// Branch is one side of a pull request.
type Branch struct {
	Label string      `json:"label"` // "owner:branch"
	Ref   string      `json:"ref"`
	SHA   string      `json:"sha"`
	Repo  *Repository `json:"repo"` // nil when the fork was deleted
}

// Repository identifies a repository by its full name.
type Repository struct {
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	SSHURL   string `json:"ssh_url"`
}
