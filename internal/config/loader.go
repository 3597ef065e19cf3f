package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// LoadResult contains the loaded config and metadata about the load.
type LoadResult struct {
	Config      Config
	SourcePaths []string // config and .env files that were applied, in order
	EnvKeys     []string // REVU_* variables that overrode file values
}

// FileSystem abstracts file system operations for testability.
type FileSystem interface {
	// Exists returns true if the path exists and is a file (not a directory).
	Exists(path string) bool
}

// OSFileSystem implements FileSystem using the real OS.
type OSFileSystem struct{}

// Exists returns true if the path exists and is a file (not a directory).
func (OSFileSystem) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Loader handles configuration loading and merging.
type Loader struct {
	fs        FileSystem
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a Loader reading files through fs and variables through
// lookupEnv. A nil lookupEnv ignores the process environment.
func NewLoader(fs FileSystem, lookupEnv func(string) (string, bool)) *Loader {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	return &Loader{fs: fs, lookupEnv: lookupEnv}
}

// NewDefaultLoader creates a Loader over the real file system and environment.
func NewDefaultLoader() *Loader {
	return NewLoader(OSFileSystem{}, os.LookupEnv)
}

// Load decodes every existing config file over the defaults, then applies
// REVU_* overrides from the env files and the process environment, the
// latter winning. Paths are ordered from lowest to highest priority.
func (l *Loader) Load(configPaths, envPaths []string) (LoadResult, error) {
	cfg := DefaultConfig()
	var sourcePaths []string

	for _, path := range configPaths {
		if !l.fs.Exists(path) {
			continue // Skip missing files
		}

		metadata, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return LoadResult{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
			log.Warn("unknown config keys", "path", path, "keys", undecoded)
		}

		sourcePaths = append(sourcePaths, path)
	}

	env := map[string]string{}
	for _, path := range envPaths {
		if !l.fs.Exists(path) {
			continue
		}
		vars, err := godotenv.Read(path)
		if err != nil {
			return LoadResult{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for k, v := range vars {
			env[k] = v
		}
		sourcePaths = append(sourcePaths, path)
	}
	for _, key := range envKeys {
		if v, ok := l.lookupEnv(key); ok {
			env[key] = v
		}
	}

	applied, err := applyEnv(&cfg, env)
	if err != nil {
		return LoadResult{}, err
	}

	if err := cfg.Validate(); err != nil {
		return LoadResult{}, fmt.Errorf("invalid config: %w", err)
	}

	return LoadResult{
		Config:      cfg,
		SourcePaths: sourcePaths,
		EnvKeys:     applied,
	}, nil
}
