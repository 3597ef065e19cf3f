package github

import (
	"fmt"
	"strings"

	"github.com/jmcampanini/revu/internal/pagination"
)

// errTypeInvalidCursor is the GraphQL error type GitHub returns for an after
// cursor it can no longer dereference.
const errTypeInvalidCursor = "INVALID_CURSOR_ARGUMENTS"

// RemoteError is a failed gh invocation or a GraphQL response carrying errors.
type RemoteError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

type graphQLError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func joinGraphQLErrors(errs []graphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// newGraphQLError builds the RemoteError for a response carrying errors. A
// rejected cursor wraps pagination.ErrStaleCursor.
func newGraphQLError(op string, errs []graphQLError) *RemoteError {
	remote := &RemoteError{Op: op, Message: joinGraphQLErrors(errs)}
	for _, e := range errs {
		if e.Type == errTypeInvalidCursor {
			remote.Err = pagination.ErrStaleCursor
			break
		}
	}
	return remote
}
