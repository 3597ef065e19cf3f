package config

import "time"

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			TTL: 60 * time.Minute,
		},
		GitHub: GitHubConfig{
			Concurrency: 8,
			PageSize:    MaxPageSize,
		},
		Git: GitConfig{
			Timeout: 5 * time.Second,
		},
	}
}
