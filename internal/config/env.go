package config

import (
	"fmt"
	"strconv"
	"time"
)

const (
	EnvCacheTTL          = "REVU_CACHE_TTL"
	EnvStateDir          = "REVU_STATE_DIR"
	EnvGHTimeout         = "REVU_GH_TIMEOUT"
	EnvConcurrency       = "REVU_CONCURRENCY"
	EnvRequestsPerSecond = "REVU_REQUESTS_PER_SECOND"
)

// envKeys is the order overrides are applied and reported in.
var envKeys = []string{EnvCacheTTL, EnvStateDir, EnvGHTimeout, EnvConcurrency, EnvRequestsPerSecond}

// applyEnv overrides cfg from env and returns the keys it used. Empty values
// are ignored.
func applyEnv(cfg *Config, env map[string]string) ([]string, error) {
	var applied []string
	for _, key := range envKeys {
		raw := env[key]
		if raw == "" {
			continue
		}

		var err error
		switch key {
		case EnvCacheTTL:
			cfg.Cache.TTL, err = time.ParseDuration(raw)
		case EnvStateDir:
			cfg.Cache.Dir = raw
		case EnvGHTimeout:
			cfg.GitHub.Timeout, err = time.ParseDuration(raw)
		case EnvConcurrency:
			cfg.GitHub.Concurrency, err = strconv.Atoi(raw)
		case EnvRequestsPerSecond:
			cfg.GitHub.RequestsPerSecond, err = strconv.ParseFloat(raw, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid %s=%q: %w", key, raw, err)
		}
		applied = append(applied, key)
	}
	return applied, nil
}
