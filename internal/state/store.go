package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// Saver persists state.
type Saver interface {
	Save(st *State) error
}

// Store reads and writes one JSON state file per pull request. Files are not
// locked; concurrent runs against the same pull request may lose updates.
type Store struct {
	dir string
	log *clog.Logger
	now func() time.Time
}

var _ Saver = &Store{}

// NewStore creates a Store that keeps state files in dir.
func NewStore(dir string) *Store {
	return &Store{
		dir: dir,
		log: clog.Default().WithPrefix("state"),
		now: time.Now,
	}
}

// Path returns the state file for a pull request reference like "owner/repo#12".
func (s *Store) Path(pr string) string {
	return filepath.Join(s.dir, fileSlug(pr)+".json")
}

// Load returns the saved state for pr. A missing or unparseable file, or one
// recorded for a different pull request, yields fresh empty state.
func (s *Store) Load(pr string) (*State, error) {
	path := s.Path(pr)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("No state file, starting fresh", "path", path)
			return New(pr), nil
		}
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Debug("Unreadable state file, starting fresh", "path", path, "error", err)
		return New(pr), nil
	}

	if st.PR == "" {
		st.PR = pr
	}
	if !strings.EqualFold(st.PR, pr) {
		s.log.Warn("State file belongs to another pull request, starting fresh", "path", path, "want", pr, "found", st.PR)
		return New(pr), nil
	}
	st.normalize()

	s.log.Debug("Loaded state", "path", path, "threads", len(st.Threads), "nitpicks", len(st.Nitpicks), "ids", len(st.IDMap))
	return &st, nil
}

// Save stamps UpdatedAt and writes st atomically.
func (s *Store) Save(st *State) error {
	path := s.Path(st.PR)
	st.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace state %s: %w", path, err)
	}

	s.log.Debug("Saved state", "path", path)
	return nil
}
