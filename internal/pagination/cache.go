package pagination

import "time"

// PageRecord is one fetched page: the cursor passed to fetch it and how many
// nodes it returned. A nil Cursor is the first page.
type PageRecord struct {
	Cursor    *string `json:"cursor"`
	ItemCount int     `json:"itemCount"`
}

// Cache records the progress of a previous walk over one paginated query.
// Pages form a cursor chain starting from the nil cursor.
type Cache struct {
	Pages           []PageRecord `json:"pages"`
	LastPageHasMore bool         `json:"lastPageHasMore"`
	TotalItems      int          `json:"totalItems"`
	FetchedAt       time.Time    `json:"fetchedAt"`
}

// CursorCache maps a query type name to its cache.
type CursorCache map[string]Cache

// IsValid reports whether the cache is younger than ttl at the given time.
// Staleness is purely time based.
func (c *Cache) IsValid(ttl time.Duration, now time.Time) bool {
	if c == nil {
		return false
	}
	return now.Sub(c.FetchedAt) < ttl
}
