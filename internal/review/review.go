package review

import (
	"context"

	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/pagination"
)

// Client is the remote side of a sync. *github.Client implements it.
type Client interface {
	PullRequest(ctx context.Context, ref github.PRRef) (github.PullRequest, error)
	ThreadsPage(ctx context.Context, ref github.PRRef, cursor *string) (pagination.Page[github.ReviewThread], error)
	FilesPage(ctx context.Context, ref github.PRRef, cursor *string) (pagination.Page[github.ChangedFile], error)
	ReviewsPage(ctx context.Context, ref github.PRRef, cursor *string) (pagination.Page[github.Review], error)
	CommentsPage(ctx context.Context, ref github.PRRef, cursor *string) (pagination.Page[github.IssueComment], error)
	ThreadCommentsPage(ctx context.Context, threadID string, cursor *string) (pagination.Page[github.ThreadComment], error)
}

var _ Client = (*github.Client)(nil)

// Nitpick is a review remark that is not a review thread, typically found in
// a review body. It can only be tracked locally.
type Nitpick struct {
	ID     string
	Path   string
	Line   string
	Body   string
	Author string
}

// NitpickExtractor finds nitpicks in review bodies and conversation comments.
type NitpickExtractor interface {
	Extract(reviews []github.Review, comments []github.IssueComment) []Nitpick
}

// NoNitpicks is an extractor that finds nothing.
type NoNitpicks struct{}

func (NoNitpicks) Extract([]github.Review, []github.IssueComment) []Nitpick {
	return nil
}

// Query reports how one paginated query was served.
type Query struct {
	Strategy   pagination.Strategy
	Items      int
	HadNewData bool
}

// Snapshot is everything fetched for a pull request in one sync.
type Snapshot struct {
	Ref      github.PRRef
	PR       github.PullRequest
	Threads  []github.ReviewThread
	Files    []github.ChangedFile
	Reviews  []github.Review
	Comments []github.IssueComment
	Nitpicks []Nitpick

	// Queries is keyed by query type.
	Queries map[string]Query
}
