package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// GitCli answers repository queries by executing the git CLI.
type GitCli struct {
	log        *clog.Logger
	timeout    time.Duration
	workingDir string
}

var _ Git = &GitCli{}

// New creates a new GitCli instance that executes git commands in the specified working directory.
// A zero timeout leaves commands unbounded.
func New(workingDir string, timeout time.Duration) Git {
	return &GitCli{
		log:        clog.Default().WithPrefix("git"),
		timeout:    timeout,
		workingDir: workingDir,
	}
}

func (g *GitCli) executeGitCommand(ctx context.Context, args ...string) (string, error) {
	g.log.Debug("Executing git command", "cmd", "git", "args", args, "workingDir", g.workingDir)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workingDir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.log.Warn("git command timed out", "args", args, "timeout", g.timeout, "error", err)
			return "", fmt.Errorf("git %s timed out after %s", strings.Join(args, " "), g.timeout)
		}
		g.log.Debug("Git command failed", "args", args, "stderr", stderr.String(), "error", err)
		return "", fmt.Errorf("git %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	g.log.Debug("Git command succeeded", "args", args, "output", output)
	return output, nil
}

func (g *GitCli) WorktreeRoot(ctx context.Context) (string, error) {
	output, err := g.executeGitCommand(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if isNotARepo(err) {
			return "", nil
		}
		return "", fmt.Errorf("git command failed: %w", err)
	}
	return output, nil
}

func (g *GitCli) MainWorktreePath(ctx context.Context) (string, error) {
	commonDir, err := g.executeGitCommand(ctx, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}
	return mainWorktreeFromCommonDir(g.workingDir, commonDir)
}

func (g *GitCli) CurrentBranch(ctx context.Context) (string, error) {
	output, err := g.executeGitCommand(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return output, nil
}

// mainWorktreeFromCommonDir resolves git's common dir, which may be relative
// to workingDir, and returns the directory containing it.
func mainWorktreeFromCommonDir(workingDir, commonDir string) (string, error) {
	if commonDir == "" {
		return "", errors.New("git reported an empty common dir")
	}
	abs := commonDir
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workingDir, abs)
	}
	abs, err := filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Dir(filepath.Clean(abs)), nil
}

func isNotARepo(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not a git repo")
}
