package ids

import "fmt"

// Registry maps short IDs to full IDs. Entries are only ever added; the whole
// registry is dropped when a pull request's state is reset.
type Registry map[string]string

// Register records fullID under its short ID and returns the short ID.
// Registering the same full ID again is a no-op. If the short ID already
// belongs to a different full ID the existing mapping is kept and
// ErrShortIDCollision is returned. The new ID stays reachable by its full form
// only when it is longer than ShortLen, which holds for GitHub node IDs and
// nitpick keys.
func (r Registry) Register(fullID string) (string, error) {
	short := ShortIDOf(fullID)
	if existing, ok := r[short]; ok && existing != fullID {
		return short, fmt.Errorf("%w: %s is used by both %s and %s", ErrShortIDCollision, short, existing, fullID)
	}
	r[short] = fullID
	return short, nil
}

// Resolve turns a user token into a tagged full ID. Tokens longer than a short
// ID are passed through; shorter ones must be registered.
func (r Registry) Resolve(token string) (ID, bool) {
	if len(token) > ShortLen {
		return NewID(token), true
	}
	full, ok := r[token]
	if !ok {
		return ID{}, false
	}
	return NewID(full), true
}
