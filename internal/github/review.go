package github

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmcampanini/revu/internal/pagination"
)

// Paginated query types. The names double as cursor cache keys.
const (
	QueryThreads  = "threads"
	QueryFiles    = "files"
	QueryReviews  = "reviews"
	QueryComments = "comments"
)

// DefaultPageSize is the largest page GitHub's GraphQL API serves.
const DefaultPageSize = 100

// threadCommentsInline is how many comments come embedded in each thread node.
const threadCommentsInline = 50

type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type Author struct {
	Login string `json:"login"`
}

// ThreadComment is one comment within a review thread.
type ThreadComment struct {
	ID         string    `json:"id"`
	DatabaseID int64     `json:"databaseId"`
	Author     Author    `json:"author"`
	Body       string    `json:"body"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"createdAt"`
}

type threadComments struct {
	PageInfo PageInfo        `json:"pageInfo"`
	Nodes    []ThreadComment `json:"nodes"`
}

// ReviewThread is a line-anchored conversation that can be replied to and
// resolved.
type ReviewThread struct {
	ID         string `json:"id"`
	IsResolved bool   `json:"isResolved"`
	IsOutdated bool   `json:"isOutdated"`
	Path       string `json:"path"`
	Line       *int   `json:"line"`

	// Comments holds the inline comments; CommentsPage says whether more exist.
	Comments     []ThreadComment `json:"-"`
	CommentsPage PageInfo        `json:"-"`
}

func (t *ReviewThread) UnmarshalJSON(data []byte) error {
	type alias ReviewThread
	var raw struct {
		alias
		Comments threadComments `json:"comments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = ReviewThread(raw.alias)
	t.Comments = raw.Comments.Nodes
	t.CommentsPage = raw.Comments.PageInfo
	return nil
}

// ChangedFile is a file touched by the pull request.
type ChangedFile struct {
	Path       string `json:"path"`
	Additions  int    `json:"additions"`
	Deletions  int    `json:"deletions"`
	ChangeType string `json:"changeType"`
}

// Review is a submitted pull request review.
type Review struct {
	ID          string    `json:"id"`
	Author      Author    `json:"author"`
	State       string    `json:"state"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// IssueComment is a top-level pull request conversation comment.
type IssueComment struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Body      string    `json:"body"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

const commentFields = `id databaseId author { login } body url createdAt`

var threadsQuery = fmt.Sprintf(`query ReviewThreads($owner: String!, $name: String!, $number: Int!, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      reviewThreads(first: $first, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id isResolved isOutdated path line
          comments(first: %d) {
            pageInfo { hasNextPage endCursor }
            nodes { %s }
          }
        }
      }
    }
  }
}`, threadCommentsInline, commentFields)

const filesQuery = `query ChangedFiles($owner: String!, $name: String!, $number: Int!, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      files(first: $first, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes { path additions deletions changeType }
      }
    }
  }
}`

const reviewsQuery = `query Reviews($owner: String!, $name: String!, $number: Int!, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      reviews(first: $first, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes { id author { login } state body url submittedAt }
      }
    }
  }
}`

const commentsQuery = `query IssueComments($owner: String!, $name: String!, $number: Int!, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      comments(first: $first, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes { id author { login } body url createdAt }
      }
    }
  }
}`

var threadCommentsQuery = `query ThreadComments($id: ID!, $first: Int!, $cursor: String) {
  node(id: $id) {
    ... on PullRequestReviewThread {
      comments(first: $first, after: $cursor) {
        pageInfo { hasNextPage endCursor }
        nodes { ` + commentFields + ` }
      }
    }
  }
}`

var metadataQuery = `query PullRequest($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      ` + prGraphQLFields + `
    }
  }
}`

// Client issues the review queries and mutations for pull requests.
type Client struct {
	gh       GitHub
	pageSize int
}

// NewClient wraps gh. A pageSize outside 1..100 uses DefaultPageSize.
func NewClient(gh GitHub, pageSize int) *Client {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	return &Client{gh: gh, pageSize: pageSize}
}

type connection[T any] struct {
	PageInfo PageInfo `json:"pageInfo"`
	Nodes    []T      `json:"nodes"`
}

func (c connection[T]) page() pagination.Page[T] {
	return pagination.Page[T]{
		Nodes:       c.Nodes,
		HasNextPage: c.PageInfo.HasNextPage,
		EndCursor:   c.PageInfo.EndCursor,
	}
}

func (c *Client) prVars(ref PRRef, cursor *string) Vars {
	return Vars{
		"owner":  ref.Owner,
		"name":   ref.Repo,
		"number": ref.Number,
		"first":  c.pageSize,
		"cursor": cursor,
	}
}

// pullRequestField runs query and decodes repository.pullRequest.<field>.
func pullRequestField(ctx context.Context, gh GitHub, query string, vars Vars, ref PRRef, field string, out any) error {
	data, err := gh.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	var resp struct {
		Repository *struct {
			PullRequest map[string]json.RawMessage `json:"pullRequest"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to parse %s of %s: %w", field, ref, err)
	}
	if resp.Repository == nil {
		return fmt.Errorf("repository %s/%s not found", ref.Owner, ref.Repo)
	}
	if resp.Repository.PullRequest == nil {
		return fmt.Errorf("pull request %s not found", ref)
	}

	raw, ok := resp.Repository.PullRequest[field]
	if !ok {
		return fmt.Errorf("response for %s has no %s", ref, field)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s of %s: %w", field, ref, err)
	}
	return nil
}

func fetchConnection[T any](ctx context.Context, c *Client, query, field string, ref PRRef, cursor *string) (pagination.Page[T], error) {
	var conn connection[T]
	if err := pullRequestField(ctx, c.gh, query, c.prVars(ref, cursor), ref, field, &conn); err != nil {
		return pagination.Page[T]{}, err
	}
	return conn.page(), nil
}

func (c *Client) ThreadsPage(ctx context.Context, ref PRRef, cursor *string) (pagination.Page[ReviewThread], error) {
	return fetchConnection[ReviewThread](ctx, c, threadsQuery, "reviewThreads", ref, cursor)
}

func (c *Client) FilesPage(ctx context.Context, ref PRRef, cursor *string) (pagination.Page[ChangedFile], error) {
	return fetchConnection[ChangedFile](ctx, c, filesQuery, "files", ref, cursor)
}

func (c *Client) ReviewsPage(ctx context.Context, ref PRRef, cursor *string) (pagination.Page[Review], error) {
	return fetchConnection[Review](ctx, c, reviewsQuery, "reviews", ref, cursor)
}

func (c *Client) CommentsPage(ctx context.Context, ref PRRef, cursor *string) (pagination.Page[IssueComment], error) {
	return fetchConnection[IssueComment](ctx, c, commentsQuery, "comments", ref, cursor)
}

// ThreadCommentsPage fetches comments of a single review thread.
func (c *Client) ThreadCommentsPage(ctx context.Context, threadID string, cursor *string) (pagination.Page[ThreadComment], error) {
	data, err := c.gh.Query(ctx, threadCommentsQuery, Vars{"id": threadID, "first": c.pageSize, "cursor": cursor})
	if err != nil {
		return pagination.Page[ThreadComment]{}, err
	}

	var resp struct {
		Node *struct {
			Comments connection[ThreadComment] `json:"comments"`
		} `json:"node"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return pagination.Page[ThreadComment]{}, fmt.Errorf("failed to parse comments of thread %s: %w", threadID, err)
	}
	if resp.Node == nil {
		return pagination.Page[ThreadComment]{}, fmt.Errorf("review thread %s not found", threadID)
	}
	return resp.Node.Comments.page(), nil
}

// PullRequest fetches pull request metadata.
func (c *Client) PullRequest(ctx context.Context, ref PRRef) (PullRequest, error) {
	data, err := c.gh.Query(ctx, metadataQuery, Vars{"owner": ref.Owner, "name": ref.Repo, "number": ref.Number})
	if err != nil {
		return PullRequest{}, err
	}

	var resp struct {
		Repository *struct {
			PullRequest *PullRequest `json:"pullRequest"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return PullRequest{}, fmt.Errorf("failed to parse pull request %s: %w", ref, err)
	}
	if resp.Repository == nil || resp.Repository.PullRequest == nil {
		return PullRequest{}, fmt.Errorf("pull request %s not found", ref)
	}
	return *resp.Repository.PullRequest, nil
}
