package vcs

import "context"

// PR describes a pull request to open.
type PR struct {
	Title       string
	Description string
	Branch      string
}

// Client is the interface for version control side effects triggered by
// stage approval. Implementations live outside this repository.
type Client interface {
	// Commit stages and commits all pending changes in dir. The prefix is
	// prepended to the message (e.g. "feat: ").
	Commit(ctx context.Context, dir, prefix, message string) error
	// CreateBranch creates and checks out a branch in dir.
	CreateBranch(ctx context.Context, dir, name string) error
	// CurrentBranch returns the currently checked out branch of dir.
	CurrentBranch(ctx context.Context, dir string) (string, error)
	// OpenPR opens a pull request for the current branch of dir.
	OpenPR(ctx context.Context, dir string, pr PR) (url string, err error)
	// RemoveWorktree removes any worktree state the client created for dir.
	// Used as best-effort cleanup on project archive.
	RemoveWorktree(ctx context.Context, dir string) error
}
