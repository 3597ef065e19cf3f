package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "revu.toml"
	envFileName    = ".env"
	appDirName     = "revu"
)

// Locations are the directories configuration is discovered from. Any of them
// may be empty, e.g. when revu runs outside a git repository.
type Locations struct {
	Cwd          string
	WorktreeRoot string
	GitRoot      string
	HomeDir      string
	// UserConfigDir defaults to os.UserConfigDir when empty.
	UserConfigDir string
}

// ConfigPaths returns the revu.toml files to check, lowest priority first, so
// that decoding them in order lets later files override earlier ones:
//
//  1. <user config dir>/revu/revu.toml
//  2. each ancestor of the git root, from home down
//  3. the git root (main worktree)
//  4. the current worktree root
//  5. the working directory
func (l Locations) ConfigPaths() []string {
	var dirs []string
	if cfgDir := l.userConfigDir(); cfgDir != "" {
		dirs = append(dirs, filepath.Join(cfgDir, appDirName))
	}
	dirs = append(dirs, ancestorsBelowHome(l.GitRoot, l.HomeDir)...)
	dirs = append(dirs, l.GitRoot, l.WorktreeRoot, l.Cwd)
	return joinUnique(dirs, configFileName)
}

// EnvFiles returns the .env files to read, lowest priority first.
func (l Locations) EnvFiles() []string {
	return joinUnique([]string{l.WorktreeRoot, l.Cwd}, envFileName)
}

func (l Locations) userConfigDir() string {
	if l.UserConfigDir != "" {
		return l.UserConfigDir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir
}

// ancestorsBelowHome lists the parents of dir up to and including home,
// outermost first. It returns nothing when dir is not under home.
func ancestorsBelowHome(dir, home string) []string {
	if dir == "" || home == "" {
		return nil
	}
	dir, home = filepath.Clean(dir), filepath.Clean(home)

	rel, err := filepath.Rel(home, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}

	var chain []string
	for current := filepath.Dir(dir); ; current = filepath.Dir(current) {
		chain = append(chain, current)
		if current == home || current == filepath.Dir(current) {
			break
		}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// joinUnique appends name to every non-empty dir, dropping repeats.
func joinUnique(dirs []string, name string) []string {
	var paths []string
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name)
		if seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}
