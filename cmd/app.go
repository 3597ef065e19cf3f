package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jmcampanini/revu/internal/config"
	"github.com/jmcampanini/revu/internal/git"
	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/state"
	"github.com/spf13/cobra"
)

// appDeps holds injectable dependencies for testing.
type appDeps struct {
	gh       github.GitHub
	git      git.Git
	stateDir string
}

// appContext holds the resolved dependencies shared by every command.
type appContext struct {
	cfg       config.Config
	ghClient  github.GitHub
	gitClient git.Git
	store     *state.Store
}

// initAppContext initializes the context from deps (for testing) or from environment.
func initAppContext(deps *appDeps, cfg *config.Config) (*appContext, error) {
	if deps != nil {
		loadedCfg := config.DefaultConfig()
		if cfg != nil {
			loadedCfg = *cfg
		}
		return &appContext{
			cfg:       loadedCfg,
			ghClient:  deps.gh,
			gitClient: deps.git,
			store:     state.NewStore(deps.stateDir),
		}, nil
	}

	return initAppContextFromEnv()
}

// initAppContextFromEnv loads config and creates clients from the environment.
func initAppContextFromEnv() (*appContext, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := loadConfig(cwd)
	if err != nil {
		return nil, err
	}

	stateDir, err := cfg.StateDir()
	if err != nil {
		return nil, err
	}

	return &appContext{
		cfg:       cfg,
		ghClient:  github.New(cwd, cfg.GitHub.Timeout, github.NewLimiter(cfg.GitHub.RequestsPerSecond)),
		gitClient: git.New(cwd, cfg.Git.Timeout),
		store:     state.NewStore(stateDir),
	}, nil
}

// loadConfig discovers and loads configuration for cwd. Outside a git
// repository only the user config dir and cwd are consulted.
func loadConfig(cwd string) (config.Config, error) {
	ctx := context.Background()
	gitClient := git.New(cwd, config.DefaultConfig().Git.Timeout)

	worktreeRoot, err := gitClient.WorktreeRoot(ctx)
	if err != nil {
		return config.Config{}, fmt.Errorf("git error: %w", err)
	}

	var mainWorktreePath string
	if worktreeRoot != "" {
		mainWorktreePath, err = gitClient.MainWorktreePath(ctx)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get main worktree path: %w", err)
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get user home directory: %w", err)
	}

	locations := config.Locations{
		Cwd:          cwd,
		WorktreeRoot: worktreeRoot,
		GitRoot:      mainWorktreePath,
		HomeDir:      homeDir,
	}
	loadResult, err := config.NewDefaultLoader().Load(locations.ConfigPaths(), locations.EnvFiles())
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return loadResult.Config, nil
}

// resolvePR turns the --pr value into a full reference. An empty value uses
// the pull request opened from the current branch.
func (a *appContext) resolvePR(ctx context.Context, value string) (github.PRRef, error) {
	if value == "" {
		branch, err := a.gitClient.CurrentBranch(ctx)
		if err != nil {
			return github.PRRef{}, err
		}
		if branch == "" || branch == "HEAD" {
			return github.PRRef{}, fmt.Errorf("not on a branch; pass --pr")
		}

		number, err := a.ghClient.PullRequestForBranch(ctx, branch)
		if err != nil {
			return github.PRRef{}, fmt.Errorf("failed to find pull request for branch %s: %w", branch, err)
		}
		if number == 0 {
			return github.PRRef{}, fmt.Errorf("no pull request found for branch %s; pass --pr", branch)
		}
		value = strconv.Itoa(number)
	}

	return github.ResolvePRRef(ctx, a.ghClient, value)
}

// loadState resolves the pull request and loads its saved state.
func (a *appContext) loadState(ctx context.Context, value string) (github.PRRef, *state.State, error) {
	ref, err := a.resolvePR(ctx, value)
	if err != nil {
		return github.PRRef{}, nil, err
	}

	st, err := a.store.Load(ref.String())
	if err != nil {
		return github.PRRef{}, nil, fmt.Errorf("failed to load state: %w", err)
	}
	return ref, st, nil
}

// client wraps the gh transport in the typed review client.
func (a *appContext) client() *github.Client {
	return github.NewClient(a.ghClient, a.cfg.GitHub.PageSize)
}

// commandContext returns the command's context, which is unset when a RunE
// is called directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
