package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MaxPageSize is the largest page GitHub's GraphQL connections return.
const MaxPageSize = 100

// Config represents the complete revu configuration.
type Config struct {
	Cache  CacheConfig  `toml:"cache"`
	GitHub GitHubConfig `toml:"github"`
	Git    GitConfig    `toml:"git"`
}

// Validate checks that all config values are valid.
// Returns an error describing the first invalid value found.
func (c Config) Validate() error {
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.GitHub.Timeout < 0 {
		return errors.New("github.timeout cannot be negative")
	}
	if c.GitHub.Concurrency < 1 {
		return errors.New("github.concurrency must be at least 1")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return errors.New("github.requests_per_second cannot be negative")
	}
	if c.GitHub.PageSize < 1 || c.GitHub.PageSize > MaxPageSize {
		return fmt.Errorf("github.page_size must be between 1 and %d", MaxPageSize)
	}
	if c.Git.Timeout < 0 {
		return errors.New("git.timeout cannot be negative")
	}
	return nil
}

// StateDir returns the directory holding per pull request state files.
func (c Config) StateDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine cache directory: %w", err)
	}
	return filepath.Join(base, "revu"), nil
}

// CacheConfig configures the local state and cursor cache.
type CacheConfig struct {
	TTL time.Duration `toml:"ttl"` // How long recorded cursors are replayed (e.g., "60m")
	Dir string        `toml:"dir"` // State directory; empty uses the user cache dir
}

// GitHubConfig configures gh command execution.
type GitHubConfig struct {
	Timeout           time.Duration `toml:"timeout"`             // Per gh call; 0 means none
	Concurrency       int           `toml:"concurrency"`         // In-flight page refreshes and mutations
	RequestsPerSecond float64       `toml:"requests_per_second"` // 0 means unlimited
	PageSize          int           `toml:"page_size"`
}

// GitConfig configures git command execution.
type GitConfig struct {
	Timeout time.Duration `toml:"timeout"` // Timeout for git commands (e.g., "5s")
}
