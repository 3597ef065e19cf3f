package github

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const replyMutation = `mutation ReplyToThread($threadId: ID!, $body: String!) {
  addPullRequestReviewThreadReply(input: {pullRequestReviewThreadId: $threadId, body: $body}) {
    comment { id url }
  }
}`

const resolveMutation = `mutation ResolveThread($threadId: ID!) {
  resolveReviewThread(input: {threadId: $threadId}) {
    thread { id isResolved }
  }
}`

const reactionMutation = `mutation AddReaction($subjectId: ID!, $content: ReactionContent!) {
  addReaction(input: {subjectId: $subjectId, content: $content}) {
    reaction { content }
  }
}`

const firstCommentQuery = `query ThreadFirstComment($id: ID!) {
  node(id: $id) {
    ... on PullRequestReviewThread {
      comments(first: 1) { nodes { id } }
    }
  }
}`

// Reaction is a GitHub ReactionContent value.
type Reaction string

const (
	ReactionThumbsUp   Reaction = "THUMBS_UP"
	ReactionThumbsDown Reaction = "THUMBS_DOWN"
	ReactionLaugh      Reaction = "LAUGH"
	ReactionHooray     Reaction = "HOORAY"
	ReactionConfused   Reaction = "CONFUSED"
	ReactionHeart      Reaction = "HEART"
	ReactionRocket     Reaction = "ROCKET"
	ReactionEyes       Reaction = "EYES"
)

var reactionAliases = map[string]Reaction{
	"+1":          ReactionThumbsUp,
	"thumbs_up":   ReactionThumbsUp,
	"thumbsup":    ReactionThumbsUp,
	"-1":          ReactionThumbsDown,
	"thumbs_down": ReactionThumbsDown,
	"thumbsdown":  ReactionThumbsDown,
	"laugh":       ReactionLaugh,
	"hooray":      ReactionHooray,
	"tada":        ReactionHooray,
	"confused":    ReactionConfused,
	"heart":       ReactionHeart,
	"rocket":      ReactionRocket,
	"eyes":        ReactionEyes,
}

// ReactionNames lists the accepted reaction spellings, sorted.
func ReactionNames() []string {
	names := make([]string, 0, len(reactionAliases))
	for k := range reactionAliases {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseReaction accepts GitHub's enum names case-insensitively plus the
// usual shorthands like "+1" and "tada".
func ParseReaction(s string) (Reaction, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if r, ok := reactionAliases[key]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unknown reaction %q (valid: %s)", s, strings.Join(ReactionNames(), ", "))
}

// ReplyToThread posts body as a reply on the review thread and returns the
// new comment's URL.
func (c *Client) ReplyToThread(ctx context.Context, threadID, body string) (string, error) {
	data, err := c.gh.Mutate(ctx, replyMutation, Vars{"threadId": threadID, "body": body})
	if err != nil {
		return "", err
	}

	var resp struct {
		AddPullRequestReviewThreadReply struct {
			Comment *struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"comment"`
		} `json:"addPullRequestReviewThreadReply"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse reply response: %w", err)
	}
	if resp.AddPullRequestReviewThreadReply.Comment == nil {
		return "", fmt.Errorf("reply to %s returned no comment", threadID)
	}
	return resp.AddPullRequestReviewThreadReply.Comment.URL, nil
}

// ResolveThread marks the review thread resolved.
func (c *Client) ResolveThread(ctx context.Context, threadID string) error {
	data, err := c.gh.Mutate(ctx, resolveMutation, Vars{"threadId": threadID})
	if err != nil {
		return err
	}

	var resp struct {
		ResolveReviewThread struct {
			Thread *struct {
				IsResolved bool `json:"isResolved"`
			} `json:"thread"`
		} `json:"resolveReviewThread"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to parse resolve response: %w", err)
	}
	if resp.ResolveReviewThread.Thread == nil || !resp.ResolveReviewThread.Thread.IsResolved {
		return fmt.Errorf("thread %s was not resolved", threadID)
	}
	return nil
}

// FirstCommentID returns the ID of the comment that opened the thread.
func (c *Client) FirstCommentID(ctx context.Context, threadID string) (string, error) {
	data, err := c.gh.Query(ctx, firstCommentQuery, Vars{"id": threadID})
	if err != nil {
		return "", err
	}

	var resp struct {
		Node *struct {
			Comments struct {
				Nodes []struct {
					ID string `json:"id"`
				} `json:"nodes"`
			} `json:"comments"`
		} `json:"node"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse thread %s: %w", threadID, err)
	}
	if resp.Node == nil {
		return "", fmt.Errorf("review thread %s not found", threadID)
	}
	if len(resp.Node.Comments.Nodes) == 0 {
		return "", fmt.Errorf("review thread %s has no comments", threadID)
	}
	return resp.Node.Comments.Nodes[0].ID, nil
}

// AddReaction reacts to subjectID, a comment or other reactable node.
func (c *Client) AddReaction(ctx context.Context, subjectID string, reaction Reaction) error {
	_, err := c.gh.Mutate(ctx, reactionMutation, Vars{"subjectId": subjectID, "content": string(reaction)})
	return err
}

// ReactToThread adds reaction to the thread's first comment.
func (c *Client) ReactToThread(ctx context.Context, threadID string, reaction Reaction) error {
	commentID, err := c.FirstCommentID(ctx, threadID)
	if err != nil {
		return err
	}
	return c.AddReaction(ctx, commentID, reaction)
}
