package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ShortLen is the length of a short ID. Tokens longer than this are taken to
// be full IDs already.
const ShortLen = 6

// ErrShortIDCollision is returned by Register when the short ID of a new full
// ID is already taken by a different full ID.
var ErrShortIDCollision = errors.New("short id collision")

// Kind separates remotely mutable review threads from locally tracked nitpicks.
type Kind int

const (
	KindNitpick Kind = iota
	KindThread
)

func (k Kind) String() string {
	if k == KindThread {
		return "thread"
	}
	return "nitpick"
}

// threadPrefix is the GraphQL node ID prefix of a PullRequestReviewThread.
const threadPrefix = "PRRT_"

// Markers that identify a review comment URL or path.
var threadMarkers = []string{"#discussion_r", "/comments/"}

// Classify decides the kind of a full ID from its shape.
func Classify(fullID string) Kind {
	if strings.HasPrefix(fullID, threadPrefix) {
		return KindThread
	}
	for _, m := range threadMarkers {
		if strings.Contains(fullID, m) {
			return KindThread
		}
	}
	return KindNitpick
}

// ID is a resolved full ID tagged with its kind. The kind is decided once,
// when the ID is resolved, and carried from then on.
type ID struct {
	Full string
	Kind Kind
}

// NewID classifies fullID.
func NewID(fullID string) ID {
	return ID{Full: fullID, Kind: Classify(fullID)}
}

func (id ID) IsThread() bool {
	return id.Kind == KindThread
}

// Short returns the short handle for this ID.
func (id ID) Short() string {
	return ShortIDOf(id.Full)
}

func (id ID) String() string {
	return id.Full
}

// ShortIDOf returns the first six hex digits of the SHA-256 of fullID.
func ShortIDOf(fullID string) string {
	sum := sha256.Sum256([]byte(fullID))
	return hex.EncodeToString(sum[:])[:ShortLen]
}
