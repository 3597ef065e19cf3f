package pagination

import (
	"context"
	"errors"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps in-flight page refreshes when Options.Concurrency is unset.
const DefaultConcurrency = 8

// ErrStaleCursor marks an error caused by a recorded cursor the remote no
// longer accepts.
var ErrStaleCursor = errors.New("stale cursor")

// Page is a single page of a paginated query.
type Page[T any] struct {
	Nodes       []T
	HasNextPage bool
	EndCursor   *string
}

// PageFunc fetches the page that follows cursor. A nil cursor fetches the
// first page. Implementations make exactly one remote call and do not retry.
type PageFunc[T any] func(ctx context.Context, cursor *string) (Page[T], error)

// Strategy names how a Result was produced.
type Strategy string

const (
	StrategyCold     Strategy = "cold"
	StrategyWarm     Strategy = "warm"
	StrategyFallback Strategy = "fallback"
)

// Options tunes a fetch.
type Options struct {
	TTL         time.Duration
	Concurrency int
	Now         func() time.Time
	Logger      *clog.Logger
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) limit() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

func (o Options) logger() *clog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return clog.Default().WithPrefix("pagination")
}

// Result is the outcome of fetching every page of a query.
type Result[T any] struct {
	Nodes      []T
	Cache      Cache
	HadNewData bool
	Strategy   Strategy
}

// IsStaleCursor reports whether err means a recorded cursor can no longer be
// dereferenced. Errors wrapping ErrStaleCursor match; other errors are
// matched on their message.
func IsStaleCursor(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleCursor) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "cursor") {
		return false
	}
	return strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "not valid") ||
		strings.Contains(msg, "valid cursor")
}

// FetchWithCache fetches all nodes of a query. A cache younger than the TTL
// is replayed with Warm; anything else runs Cold. A warm fetch that hits a
// stale cursor is discarded and replaced by a cold fetch.
func FetchWithCache[T any](ctx context.Context, fetch PageFunc[T], cached *Cache, opts Options) (Result[T], error) {
	log := opts.logger()

	if !cached.IsValid(opts.TTL, opts.now()) {
		log.Debug("Cache missing or expired, fetching cold")
		return Cold(ctx, fetch, opts)
	}

	res, err := Warm(ctx, fetch, *cached, opts)
	if err == nil {
		return res, nil
	}
	if !IsStaleCursor(err) {
		return Result[T]{}, err
	}

	log.Info("Cached cursor rejected, refetching from the start", "error", err)
	res, err = Cold(ctx, fetch, opts)
	if err != nil {
		return Result[T]{}, err
	}
	res.Strategy = StrategyFallback
	return res, nil
}

// Cold walks the query sequentially from the first page.
func Cold[T any](ctx context.Context, fetch PageFunc[T], opts Options) (Result[T], error) {
	w, err := Walk(ctx, fetch, nil)
	if err != nil {
		return Result[T]{}, err
	}

	return Result[T]{
		Nodes: w.Nodes,
		Cache: Cache{
			Pages:           w.Pages,
			LastPageHasMore: w.HasMore,
			TotalItems:      len(w.Nodes),
			FetchedAt:       opts.now(),
		},
		HadNewData: len(w.Nodes) > 0,
		Strategy:   StrategyCold,
	}, nil
}

// Warm replays every cached page cursor in parallel to pick up changes on
// pages already seen, while the last known page is followed sequentially to
// collect pages added since the cache was written.
//
// Known nodes keep page order and precede new nodes regardless of the order
// in which refreshes complete.
func Warm[T any](ctx context.Context, fetch PageFunc[T], cached Cache, opts Options) (Result[T], error) {
	n := len(cached.Pages)
	if n == 0 {
		return Cold(ctx, fetch, opts)
	}

	known := make([][]T, n)
	var delta WalkResult[T]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())

	// The tail chain is the longest path, so it is scheduled first.
	last := cached.Pages[n-1]
	g.Go(func() error {
		page, err := fetch(gctx, last.Cursor)
		if err != nil {
			return err
		}
		known[n-1] = page.Nodes

		if !page.HasNextPage {
			return nil
		}
		if page.EndCursor == nil {
			delta.HasMore = true
			return nil
		}

		w, err := Walk(gctx, fetch, page.EndCursor)
		if err != nil {
			return err
		}
		delta = w
		return nil
	})

	for i := 0; i < n-1; i++ {
		cursor := cached.Pages[i].Cursor
		g.Go(func() error {
			page, err := fetch(gctx, cursor)
			if err != nil {
				return err
			}
			known[i] = page.Nodes
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result[T]{}, err
	}

	var nodes []T
	for _, pageNodes := range known {
		nodes = append(nodes, pageNodes...)
	}
	nodes = append(nodes, delta.Nodes...)

	pages := make([]PageRecord, 0, n+len(delta.Pages))
	pages = append(pages, cached.Pages...)
	pages = append(pages, delta.Pages...)

	opts.logger().Debug("Warm fetch complete", "knownPages", n, "newPages", len(delta.Pages), "newItems", len(delta.Nodes))

	return Result[T]{
		Nodes: nodes,
		Cache: Cache{
			Pages:           pages,
			LastPageHasMore: delta.HasMore,
			TotalItems:      len(nodes),
			FetchedAt:       opts.now(),
		},
		HadNewData: len(delta.Nodes) > 0,
		Strategy:   StrategyWarm,
	}, nil
}

// WalkResult is the product of a sequential walk.
type WalkResult[T any] struct {
	Nodes   []T
	Pages   []PageRecord
	HasMore bool
}

// Walk fetches pages one after another starting at start until the remote
// reports no next page. Each page's record holds the cursor used to fetch it.
func Walk[T any](ctx context.Context, fetch PageFunc[T], start *string) (WalkResult[T], error) {
	var w WalkResult[T]
	cursor := start

	for {
		if err := ctx.Err(); err != nil {
			return WalkResult[T]{}, err
		}

		page, err := fetch(ctx, cursor)
		if err != nil {
			return WalkResult[T]{}, err
		}

		w.Pages = append(w.Pages, PageRecord{Cursor: cursor, ItemCount: len(page.Nodes)})
		w.Nodes = append(w.Nodes, page.Nodes...)

		if !page.HasNextPage {
			w.HasMore = false
			return w, nil
		}
		if page.EndCursor == nil {
			// No way forward; remember the chain is incomplete.
			w.HasMore = true
			return w, nil
		}
		cursor = page.EndCursor
	}
}
