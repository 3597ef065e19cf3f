package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/ids"
	"github.com/jmcampanini/revu/internal/pagination"
	"github.com/jmcampanini/revu/internal/state"
)

// threadCommentsPrefix namespaces per-thread comment caches in the cursor cache.
const threadCommentsPrefix = "threadComments:"

// ThreadCommentsKey is the cursor cache key for a thread's comments.
func ThreadCommentsKey(threadID string) string {
	return threadCommentsPrefix + threadID
}

// Options tunes a Syncer.
type Options struct {
	TTL         time.Duration
	Concurrency int
	// NoCache ignores cached cursors and fetches everything cold.
	NoCache bool
	Now     func() time.Time
}

// Syncer fetches every query type of a pull request and folds the result
// into its state.
type Syncer struct {
	client    Client
	extractor NitpickExtractor
	opts      Options
	log       *clog.Logger
}

// NewSyncer creates a Syncer. A nil extractor finds no nitpicks.
func NewSyncer(client Client, extractor NitpickExtractor, opts Options) *Syncer {
	if extractor == nil {
		extractor = NoNitpicks{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = pagination.DefaultConcurrency
	}
	return &Syncer{
		client:    client,
		extractor: extractor,
		opts:      opts,
		log:       clog.Default().WithPrefix("review"),
	}
}

func (s *Syncer) pageOptions() pagination.Options {
	return pagination.Options{
		TTL:         s.opts.TTL,
		Concurrency: s.opts.Concurrency,
		Now:         s.opts.Now,
		Logger:      s.log,
	}
}

// cached returns the cache for key, or nil when it should not be used.
func (s *Syncer) cached(st *state.State, key string) *pagination.Cache {
	if s.opts.NoCache {
		return nil
	}
	c, ok := st.CursorCache[key]
	if !ok {
		return nil
	}
	return &c
}

// fetchQuery runs one query type and records its cache and stats.
func fetchQuery[T any](ctx context.Context, s *Syncer, st *state.State, key string, fetch pagination.PageFunc[T]) (pagination.Result[T], error) {
	res, err := pagination.FetchWithCache(ctx, fetch, s.cached(st, key), s.pageOptions())
	if err != nil {
		return pagination.Result[T]{}, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	s.log.Debug("Fetched query", "query", key, "strategy", res.Strategy, "items", len(res.Nodes), "newData", res.HadNewData)
	return res, nil
}

// Sync fetches metadata and all paginated queries of ref in parallel, merges
// them, registers IDs for threads and nitpicks and replaces st's cursor
// cache. It does not save st.
func (s *Syncer) Sync(ctx context.Context, ref github.PRRef, st *state.State) (Snapshot, error) {
	snap := Snapshot{Ref: ref, Queries: map[string]Query{}}

	var (
		threads  pagination.Result[github.ReviewThread]
		files    pagination.Result[github.ChangedFile]
		reviews  pagination.Result[github.Review]
		comments pagination.Result[github.IssueComment]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pr, err := s.client.PullRequest(gctx, ref)
		if err != nil {
			return fmt.Errorf("failed to fetch pull request %s: %w", ref, err)
		}
		snap.PR = pr
		return nil
	})
	g.Go(func() error {
		var err error
		threads, err = fetchQuery(gctx, s, st, github.QueryThreads, func(ctx context.Context, cursor *string) (pagination.Page[github.ReviewThread], error) {
			return s.client.ThreadsPage(ctx, ref, cursor)
		})
		return err
	})
	g.Go(func() error {
		var err error
		files, err = fetchQuery(gctx, s, st, github.QueryFiles, func(ctx context.Context, cursor *string) (pagination.Page[github.ChangedFile], error) {
			return s.client.FilesPage(ctx, ref, cursor)
		})
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = fetchQuery(gctx, s, st, github.QueryReviews, func(ctx context.Context, cursor *string) (pagination.Page[github.Review], error) {
			return s.client.ReviewsPage(ctx, ref, cursor)
		})
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = fetchQuery(gctx, s, st, github.QueryComments, func(ctx context.Context, cursor *string) (pagination.Page[github.IssueComment], error) {
			return s.client.CommentsPage(ctx, ref, cursor)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	threadCaches, err := s.fetchThreadComments(ctx, threads.Nodes)
	if err != nil {
		return Snapshot{}, err
	}

	snap.Threads = threads.Nodes
	snap.Files = files.Nodes
	snap.Reviews = reviews.Nodes
	snap.Comments = comments.Nodes
	snap.Nitpicks = s.extractor.Extract(reviews.Nodes, comments.Nodes)
	snap.Queries[github.QueryThreads] = queryStats(threads)
	snap.Queries[github.QueryFiles] = queryStats(files)
	snap.Queries[github.QueryReviews] = queryStats(reviews)
	snap.Queries[github.QueryComments] = queryStats(comments)

	st.CursorCache = mergeCursorCache(st.CursorCache, pagination.CursorCache{
		github.QueryThreads:  threads.Cache,
		github.QueryFiles:    files.Cache,
		github.QueryReviews:  reviews.Cache,
		github.QueryComments: comments.Cache,
	}, threadCaches)

	s.registerIDs(st, snap)

	return snap, nil
}

func queryStats[T any](res pagination.Result[T]) Query {
	return Query{Strategy: res.Strategy, Items: len(res.Nodes), HadNewData: res.HadNewData}
}

// fetchThreadComments completes threads whose comments did not fit inline.
// These walks are always cold and their caches are recorded but never used.
func (s *Syncer) fetchThreadComments(ctx context.Context, threads []github.ReviewThread) (pagination.CursorCache, error) {
	caches := make([]*pagination.Cache, len(threads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range threads {
		t := &threads[i]
		if !t.CommentsPage.HasNextPage || t.CommentsPage.EndCursor == nil {
			continue
		}
		g.Go(func() error {
			w, err := pagination.Walk(gctx, func(ctx context.Context, cursor *string) (pagination.Page[github.ThreadComment], error) {
				return s.client.ThreadCommentsPage(ctx, t.ID, cursor)
			}, t.CommentsPage.EndCursor)
			if err != nil {
				return fmt.Errorf("failed to fetch comments of thread %s: %w", t.ID, err)
			}

			pages := append([]pagination.PageRecord{{Cursor: nil, ItemCount: len(t.Comments)}}, w.Pages...)
			t.Comments = append(t.Comments, w.Nodes...)
			t.CommentsPage = github.PageInfo{HasNextPage: w.HasMore}
			caches[i] = &pagination.Cache{
				Pages:           pages,
				LastPageHasMore: w.HasMore,
				TotalItems:      len(t.Comments),
				FetchedAt:       s.opts.Now(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := pagination.CursorCache{}
	for i, c := range caches {
		if c != nil {
			out[ThreadCommentsKey(threads[i].ID)] = *c
		}
	}
	return out, nil
}

// mergeCursorCache builds the next cursor cache. Query caches are replaced
// wholesale; thread comment caches from earlier runs are kept unless this run
// refreshed them.
func mergeCursorCache(old, queries, threadComments pagination.CursorCache) pagination.CursorCache {
	next := pagination.CursorCache{}
	for k, c := range old {
		if strings.HasPrefix(k, threadCommentsPrefix) {
			next[k] = c
		}
	}
	for k, c := range threadComments {
		next[k] = c
	}
	for k, c := range queries {
		next[k] = c
	}
	return next
}

// registerIDs gives every thread and nitpick a short ID. Collisions are
// logged and the colliding ID stays reachable by its full form.
func (s *Syncer) registerIDs(st *state.State, snap Snapshot) {
	register := func(full string) {
		_, err := st.IDMap.Register(full)
		if errors.Is(err, ids.ErrShortIDCollision) {
			s.log.Warn("Short ID collision; use the full ID instead", "id", full, "error", err)
		}
	}

	for _, t := range snap.Threads {
		register(t.ID)
	}
	for _, n := range snap.Nitpicks {
		register(n.ID)
	}
}
