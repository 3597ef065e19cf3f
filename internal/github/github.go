package github

import (
	"context"
	"encoding/json"
)

type GitHub interface {

	// Query runs a GraphQL query and returns its "data" object.
	Query(ctx context.Context, query string, vars Vars) (json.RawMessage, error)

	// Mutate runs a GraphQL mutation and returns its "data" object.
	Mutate(ctx context.Context, mutation string, vars Vars) (json.RawMessage, error)

	// CurrentRepo returns the owner and name of the repository gh resolves
	// for the working directory.
	CurrentRepo(ctx context.Context) (owner, name string, err error)

	// PullRequestForBranch returns the number of the pull request whose head
	// is branch. Returns (0, nil) if there is none.
	PullRequestForBranch(ctx context.Context, branch string) (int, error)
}

// Vars holds GraphQL variables. Nil values are omitted, which GraphQL treats
// as null.
type Vars map[string]any
