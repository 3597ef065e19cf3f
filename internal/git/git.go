package git

import "context"

// Git is the subset of repository queries revu needs to locate configuration
// and infer the pull request being reviewed.
type Git interface {

	// WorktreeRoot returns the absolute path to the root of the current worktree.
	// If not in a git repository, returns ("", nil).
	// Returns an error only if the git command itself fails (e.g., git not installed).
	WorktreeRoot(ctx context.Context) (string, error)

	// MainWorktreePath returns the absolute path to the main (primary) worktree.
	// This is the worktree associated with the .git directory, not a linked worktree.
	MainWorktreePath(ctx context.Context) (string, error)

	// CurrentBranch returns the current branch name.
	// Returns "HEAD" if in detached HEAD state.
	CurrentBranch(ctx context.Context) (string, error)
}
