package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/ids"
	"github.com/jmcampanini/revu/internal/pagination"
	"github.com/jmcampanini/revu/internal/state"
)

// pager serves pages addressed by cursors "p1", "p2", ...
type pager[T any] struct {
	mu    sync.Mutex
	pages [][]T
	calls int
	err   error
}

func (p *pager[T]) page(cursor *string) (pagination.Page[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return pagination.Page[T]{}, p.err
	}

	i := 0
	if cursor != nil {
		n, err := strconv.Atoi(strings.TrimPrefix(*cursor, "p"))
		if err != nil || n < 0 || n >= len(p.pages) {
			return pagination.Page[T]{}, fmt.Errorf("cursor %q is invalid", *cursor)
		}
		i = n
	}
	if len(p.pages) == 0 {
		return pagination.Page[T]{}, nil
	}

	next := fmt.Sprintf("p%d", i+1)
	return pagination.Page[T]{
		Nodes:       p.pages[i],
		HasNextPage: i+1 < len(p.pages),
		EndCursor:   &next,
	}, nil
}

func (p *pager[T]) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeClient struct {
	pr       github.PullRequest
	prErr    error
	threads  pager[github.ReviewThread]
	files    pager[github.ChangedFile]
	reviews  pager[github.Review]
	comments pager[github.IssueComment]

	// threadComments holds the extra comment pages per thread ID.
	threadComments map[string]*pager[github.ThreadComment]
}

var _ Client = &fakeClient{}

func (f *fakeClient) PullRequest(context.Context, github.PRRef) (github.PullRequest, error) {
	return f.pr, f.prErr
}

func (f *fakeClient) ThreadsPage(_ context.Context, _ github.PRRef, cursor *string) (pagination.Page[github.ReviewThread], error) {
	return f.threads.page(cursor)
}

func (f *fakeClient) FilesPage(_ context.Context, _ github.PRRef, cursor *string) (pagination.Page[github.ChangedFile], error) {
	return f.files.page(cursor)
}

func (f *fakeClient) ReviewsPage(_ context.Context, _ github.PRRef, cursor *string) (pagination.Page[github.Review], error) {
	return f.reviews.page(cursor)
}

func (f *fakeClient) CommentsPage(_ context.Context, _ github.PRRef, cursor *string) (pagination.Page[github.IssueComment], error) {
	return f.comments.page(cursor)
}

func (f *fakeClient) ThreadCommentsPage(_ context.Context, threadID string, cursor *string) (pagination.Page[github.ThreadComment], error) {
	p, ok := f.threadComments[threadID]
	if !ok {
		return pagination.Page[github.ThreadComment]{}, fmt.Errorf("review thread %s not found", threadID)
	}
	return p.page(cursor)
}

type fakeExtractor struct {
	nitpicks []Nitpick
}

func (f fakeExtractor) Extract([]github.Review, []github.IssueComment) []Nitpick {
	return f.nitpicks
}

var (
	testRef = github.PRRef{Owner: "octo", Repo: "hello", Number: 7}
	baseNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func thread(id string) github.ReviewThread {
	return github.ReviewThread{ID: id, Path: "main.go"}
}

func newTestSyncer(client Client, extractor NitpickExtractor, now *time.Time) *Syncer {
	s := NewSyncer(client, extractor, Options{
		TTL:         60 * time.Minute,
		Concurrency: 4,
		Now:         func() time.Time { return *now },
	})
	s.log = clog.New(io.Discard)
	return s
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pr: github.PullRequest{Number: 7, Title: "Add feature", State: github.PRStateOpen},
		threads: pager[github.ReviewThread]{pages: [][]github.ReviewThread{
			{thread("PRRT_kwDOAbc001"), thread("PRRT_kwDOAbc002")},
			{thread("PRRT_kwDOAbc003")},
		}},
		files:    pager[github.ChangedFile]{pages: [][]github.ChangedFile{{{Path: "main.go"}}}},
		reviews:  pager[github.Review]{pages: [][]github.Review{{{ID: "PRR_1", State: "COMMENTED"}}}},
		comments: pager[github.IssueComment]{},
	}
}

func TestSync_ColdThenWarm(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	s := newTestSyncer(client, nil, &now)
	st := state.New(testRef.String())

	snap, err := s.Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	assert.Equal(t, "Add feature", snap.PR.Title)
	require.Len(t, snap.Threads, 3)
	assert.Equal(t, "PRRT_kwDOAbc003", snap.Threads[2].ID)
	assert.Len(t, snap.Files, 1)
	assert.Len(t, snap.Reviews, 1)
	assert.Empty(t, snap.Comments)
	for _, q := range []string{github.QueryThreads, github.QueryFiles, github.QueryReviews, github.QueryComments} {
		assert.Equal(t, pagination.StrategyCold, snap.Queries[q].Strategy, q)
		require.Contains(t, st.CursorCache, q)
	}
	assert.Len(t, st.CursorCache[github.QueryThreads].Pages, 2)
	assert.Equal(t, 3, snap.Queries[github.QueryThreads].Items)

	now = baseNow.Add(10 * time.Minute)
	snap, err = s.Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	assert.Equal(t, pagination.StrategyWarm, snap.Queries[github.QueryThreads].Strategy)
	assert.False(t, snap.Queries[github.QueryThreads].HadNewData)
	assert.Len(t, snap.Threads, 3)
	assert.Equal(t, baseNow.Add(10*time.Minute), st.CursorCache[github.QueryThreads].FetchedAt)
	assert.Equal(t, 4, client.threads.callCount(), "warm refetches each known page once")
}

func TestSync_ExpiredCacheFetchesCold(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	s := newTestSyncer(client, nil, &now)
	st := state.New(testRef.String())

	_, err := s.Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	now = baseNow.Add(61 * time.Minute)
	snap, err := s.Sync(context.Background(), testRef, st)
	require.NoError(t, err)
	assert.Equal(t, pagination.StrategyCold, snap.Queries[github.QueryThreads].Strategy)
}

func TestSync_NoCacheIgnoresCursors(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	st := state.New(testRef.String())

	_, err := newTestSyncer(client, nil, &now).Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	s := newTestSyncer(client, nil, &now)
	s.opts.NoCache = true
	snap, err := s.Sync(context.Background(), testRef, st)
	require.NoError(t, err)
	assert.Equal(t, pagination.StrategyCold, snap.Queries[github.QueryThreads].Strategy)
}

func TestSync_RegistersThreadAndNitpickIDs(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	extractor := fakeExtractor{nitpicks: []Nitpick{{ID: "nitpick:PRR_1:0", Body: "typo"}}}
	st := state.New(testRef.String())

	_, err := newTestSyncer(client, extractor, &now).Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	for _, full := range []string{"PRRT_kwDOAbc001", "PRRT_kwDOAbc002", "PRRT_kwDOAbc003", "nitpick:PRR_1:0"} {
		id, ok := st.Resolve(ids.ShortIDOf(full))
		require.True(t, ok, full)
		assert.Equal(t, full, id.Full)
	}
	id, _ := st.Resolve(ids.ShortIDOf("nitpick:PRR_1:0"))
	assert.False(t, id.IsThread())
}

func TestSync_CollisionKeepsFirstMapping(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	st := state.New(testRef.String())
	// plant a different ID under PRRT_kwDOAbc001's short ID
	st.IDMap[ids.ShortIDOf("PRRT_kwDOAbc001")] = "PRRT_kwDOOther99"

	_, err := newTestSyncer(client, nil, &now).Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	assert.Equal(t, "PRRT_kwDOOther99", st.IDMap[ids.ShortIDOf("PRRT_kwDOAbc001")])
	id, ok := st.Resolve("PRRT_kwDOAbc001")
	require.True(t, ok, "full IDs still resolve")
	assert.True(t, id.IsThread())
}

func TestSync_ThreadCommentSubPagination(t *testing.T) {
	client := newFakeClient()
	more := "p1"
	long := github.ReviewThread{
		ID:           "PRRT_long",
		Comments:     []github.ThreadComment{{ID: "C1"}},
		CommentsPage: github.PageInfo{HasNextPage: true, EndCursor: &more},
	}
	client.threads.pages = [][]github.ReviewThread{{long, thread("PRRT_short")}}
	client.threadComments = map[string]*pager[github.ThreadComment]{
		// page 0 is served inline with the thread
		"PRRT_long": {pages: [][]github.ThreadComment{nil, {{ID: "C2"}, {ID: "C3"}}}},
	}

	now := baseNow
	st := state.New(testRef.String())
	snap, err := newTestSyncer(client, nil, &now).Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	require.Len(t, snap.Threads, 2)
	got := snap.Threads[0]
	require.Len(t, got.Comments, 3)
	assert.Equal(t, "C3", got.Comments[2].ID)
	assert.False(t, got.CommentsPage.HasNextPage)

	cache, ok := st.CursorCache[ThreadCommentsKey("PRRT_long")]
	require.True(t, ok)
	assert.Equal(t, 3, cache.TotalItems)
	require.Len(t, cache.Pages, 2)
	assert.Nil(t, cache.Pages[0].Cursor)
	assert.Equal(t, 1, cache.Pages[0].ItemCount)
	assert.Equal(t, "p1", *cache.Pages[1].Cursor)
	assert.NotContains(t, st.CursorCache, ThreadCommentsKey("PRRT_short"))
}

func TestSync_CarriesForwardThreadCommentCaches(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	st := state.New(testRef.String())
	old := pagination.Cache{Pages: []pagination.PageRecord{{ItemCount: 60}}, TotalItems: 60, FetchedAt: baseNow.Add(-48 * time.Hour)}
	st.CursorCache = pagination.CursorCache{
		ThreadCommentsKey("PRRT_gone"): old,
		"obsolete":                     {FetchedAt: baseNow},
	}

	_, err := newTestSyncer(client, nil, &now).Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	assert.Equal(t, old, st.CursorCache[ThreadCommentsKey("PRRT_gone")])
	assert.NotContains(t, st.CursorCache, "obsolete")
}

func TestSync_StaleCursorFallsBackToCold(t *testing.T) {
	client := newFakeClient()
	now := baseNow
	st := state.New(testRef.String())
	stale := "p9"
	st.CursorCache = pagination.CursorCache{
		github.QueryThreads: {
			Pages:     []pagination.PageRecord{{Cursor: nil, ItemCount: 2}, {Cursor: &stale, ItemCount: 1}},
			FetchedAt: baseNow,
		},
	}

	snap, err := newTestSyncer(client, nil, &now).Sync(context.Background(), testRef, st)
	require.NoError(t, err)

	assert.Equal(t, pagination.StrategyFallback, snap.Queries[github.QueryThreads].Strategy)
	assert.Len(t, snap.Threads, 3)
	assert.Len(t, st.CursorCache[github.QueryThreads].Pages, 2)
}

func TestSync_Errors(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fakeClient)
		errContains string
	}{
		{
			name:        "metadata failure",
			setup:       func(f *fakeClient) { f.prErr = errors.New("Could not resolve to a PullRequest") },
			errContains: "failed to fetch pull request octo/hello#7",
		},
		{
			name:        "query failure",
			setup:       func(f *fakeClient) { f.files.err = errors.New("API rate limit exceeded") },
			errContains: "failed to fetch files",
		},
		{
			name: "thread comments failure",
			setup: func(f *fakeClient) {
				end := "x"
				f.threads.pages = [][]github.ReviewThread{{{ID: "PRRT_x", CommentsPage: github.PageInfo{HasNextPage: true, EndCursor: &end}}}}
			},
			errContains: "failed to fetch comments of thread PRRT_x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			tt.setup(client)
			now := baseNow
			st := state.New(testRef.String())

			_, err := newTestSyncer(client, nil, &now).Sync(context.Background(), testRef, st)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			assert.Empty(t, st.CursorCache, "state is untouched on failure")
		})
	}
}

func TestMergeCursorCache(t *testing.T) {
	old := pagination.CursorCache{
		github.QueryThreads:         {TotalItems: 1},
		ThreadCommentsKey("PRRT_a"): {TotalItems: 10},
		ThreadCommentsKey("PRRT_b"): {TotalItems: 20},
	}
	queries := pagination.CursorCache{github.QueryThreads: {TotalItems: 2}}
	threadComments := pagination.CursorCache{ThreadCommentsKey("PRRT_b"): {TotalItems: 21}}

	got := mergeCursorCache(old, queries, threadComments)

	assert.Equal(t, pagination.CursorCache{
		github.QueryThreads:         {TotalItems: 2},
		ThreadCommentsKey("PRRT_a"): {TotalItems: 10},
		ThreadCommentsKey("PRRT_b"): {TotalItems: 21},
	}, got)
}
