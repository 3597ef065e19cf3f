package git

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

const testTimeout = 10 * time.Second

// testRepo provides a temporary git repository for integration tests.
type testRepo struct {
	Git     *GitCli
	rootDir string
	t       *testing.T
}

// newTestRepo creates an initialized git repository in a temp directory.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()

	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	return &testRepo{
		Git:     newTestGitCli(dir),
		rootDir: dir,
		t:       t,
	}
}

// newTestGitCli creates a GitCli with a discarding logger.
func newTestGitCli(dir string) *GitCli {
	g := New(dir, testTimeout).(*GitCli)
	g.log = clog.New(io.Discard)
	return g
}

// commit creates a new commit.
func (r *testRepo) commit(message string) {
	r.t.Helper()
	filename := filepath.Join(r.rootDir, "file.txt")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(r.t, err)
	_, err = f.WriteString(message + "\n")
	require.NoError(r.t, err)
	require.NoError(r.t, f.Close())

	runGit(r.t, r.rootDir, "add", "-A")
	runGit(r.t, r.rootDir, "commit", "-m", message)
}

// path returns the root directory of the test repo (with symlinks resolved).
func (r *testRepo) path() string {
	return resolvePath(r.t, r.rootDir)
}

// runGit executes a git command and returns stdout.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	require.NoError(t, err, "git %v failed: %s", args, stderr.String())
	return stdout.String()
}

// resolvePath resolves symlinks in a path (useful for macOS /var -> /private/var).
func resolvePath(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}
