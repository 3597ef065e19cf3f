package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMainWorktreeFromCommonDir(t *testing.T) {
	tests := []struct {
		name       string
		workingDir string
		commonDir  string
		want       string
		wantErr    bool
	}{
		{name: "relative from main worktree", workingDir: "/repo", commonDir: ".git", want: "/repo"},
		{name: "relative from subdirectory", workingDir: "/repo/src/pkg", commonDir: "../../.git", want: "/repo"},
		{name: "absolute from linked worktree", workingDir: "/wt/feature", commonDir: "/repo/.git", want: "/repo"},
		{name: "trailing slash", workingDir: "/wt", commonDir: "/repo/.git/", want: "/repo"},
		{name: "empty", workingDir: "/repo", commonDir: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mainWorktreeFromCommonDir(tt.workingDir, tt.commonDir)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNotARepo(t *testing.T) {
	assert.True(t, isNotARepo(errors.New("fatal: not a git repository (or any of the parent directories): .git")))
	assert.False(t, isNotARepo(errors.New("exec: \"git\": executable file not found in $PATH")))
}

// Integration tests run real git commands in temporary repositories.

func TestWorktreeRoot_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := newTestRepo(t)
	repo.commit("initial commit")

	root, err := repo.Git.WorktreeRoot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, repo.path(), resolvePath(t, root))
}

func TestWorktreeRoot_Integration_FromSubdirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := newTestRepo(t)
	repo.commit("initial commit")

	subdir := filepath.Join(repo.path(), "subdir", "nested")
	require.NoError(t, os.MkdirAll(subdir, 0755))

	root, err := newTestGitCli(subdir).WorktreeRoot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, repo.path(), resolvePath(t, root))
}

func TestWorktreeRoot_Integration_OutsideRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	root, err := newTestGitCli(t.TempDir()).WorktreeRoot(context.Background())

	// Not in a git repo is a valid state, not an error
	require.NoError(t, err)
	assert.Empty(t, root)
}

func TestMainWorktreePath_Integration_FromLinkedWorktree(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := newTestRepo(t)
	repo.commit("initial commit")
	runGit(t, repo.rootDir, "branch", "feature")

	worktreePath := filepath.Join(t.TempDir(), "feature-worktree")
	runGit(t, repo.rootDir, "worktree", "add", worktreePath, "feature")

	mainPath, err := newTestGitCli(worktreePath).MainWorktreePath(context.Background())

	require.NoError(t, err)
	assert.Equal(t, repo.path(), resolvePath(t, mainPath))
}

func TestCurrentBranch_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := newTestRepo(t)
	repo.commit("initial commit")
	runGit(t, repo.rootDir, "checkout", "-b", "feature/review-fixes")

	branch, err := repo.Git.CurrentBranch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "feature/review-fixes", branch)
}

func TestCurrentBranch_Integration_DetachedHEAD(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	repo := newTestRepo(t)
	repo.commit("initial commit")
	runGit(t, repo.rootDir, "checkout", "--detach", "HEAD")

	branch, err := repo.Git.CurrentBranch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "HEAD", branch)
}
