package state

import (
	"fmt"
	"time"

	"github.com/jmcampanini/revu/internal/ids"
	"github.com/jmcampanini/revu/internal/pagination"
)

// Status is the local triage status of a thread or nitpick.
type Status string

const (
	StatusDone  Status = "done"
	StatusSkip  Status = "skip"
	StatusLater Status = "later"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDone, StatusSkip, StatusLater:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown status %q (valid: done, skip, later)", s)
	}
	return status, nil
}

// ItemRecord is the local annotation of a single thread or nitpick.
type ItemRecord struct {
	Status Status `json:"status"`
	Note   string `json:"note,omitempty"`
}

// State is everything persisted for one pull request.
type State struct {
	PR          string                 `json:"pr"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	Threads     map[string]ItemRecord  `json:"threads"`
	Nitpicks    map[string]ItemRecord  `json:"nitpicks"`
	IDMap       ids.Registry           `json:"idMap"`
	CursorCache pagination.CursorCache `json:"cursorCache,omitempty"`
}

// New returns empty state for the given pull request.
func New(pr string) *State {
	return &State{
		PR:        pr,
		UpdatedAt: time.Now().UTC(),
		Threads:   map[string]ItemRecord{},
		Nitpicks:  map[string]ItemRecord{},
		IDMap:     ids.Registry{},
	}
}

// normalize fills collections missing from older state files.
func (s *State) normalize() {
	if s.Threads == nil {
		s.Threads = map[string]ItemRecord{}
	}
	if s.Nitpicks == nil {
		s.Nitpicks = map[string]ItemRecord{}
	}
	if s.IDMap == nil {
		s.IDMap = ids.Registry{}
	}
}

// Resolve maps a short or full ID to a tagged full ID.
func (s *State) Resolve(token string) (ids.ID, bool) {
	return s.IDMap.Resolve(token)
}

// SetStatus resolves token and records status and note for it, replacing any
// previous record. It returns false, without changing anything, if token
// cannot be resolved.
func (s *State) SetStatus(token string, status Status, note string) bool {
	id, ok := s.Resolve(token)
	if !ok {
		return false
	}
	s.SetStatusID(id, status, note)
	return true
}

// SetStatusID records status and note for an already resolved ID.
func (s *State) SetStatusID(id ids.ID, status Status, note string) {
	rec := ItemRecord{Status: status, Note: note}
	if id.IsThread() {
		s.Threads[id.Full] = rec
		delete(s.Nitpicks, id.Full)
		return
	}
	s.Nitpicks[id.Full] = rec
	delete(s.Threads, id.Full)
}

// Clear resolves token and removes its record from both collections. Clearing
// an ID with no record succeeds; only a failed resolution returns false.
func (s *State) Clear(token string) bool {
	id, ok := s.Resolve(token)
	if !ok {
		return false
	}
	s.ClearID(id)
	return true
}

// ClearID removes any record of id.
func (s *State) ClearID(id ids.ID) {
	delete(s.Threads, id.Full)
	delete(s.Nitpicks, id.Full)
}

// Record returns the record for id, if any.
func (s *State) Record(id ids.ID) (ItemRecord, bool) {
	if id.IsThread() {
		rec, ok := s.Threads[id.Full]
		return rec, ok
	}
	rec, ok := s.Nitpicks[id.Full]
	return rec, ok
}

// Reset drops all items, registered IDs and pagination caches.
func (s *State) Reset() {
	s.Threads = map[string]ItemRecord{}
	s.Nitpicks = map[string]ItemRecord{}
	s.IDMap = ids.Registry{}
	s.CursorCache = nil
}
