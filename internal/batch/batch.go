package batch

import (
	"context"
	"fmt"
	"strings"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jmcampanini/revu/internal/ids"
	"github.com/jmcampanini/revu/internal/state"
)

// DefaultConcurrency bounds in-flight remote mutations when none is configured.
const DefaultConcurrency = 8

// Resolver maps user tokens to tagged full IDs. *state.State implements it.
type Resolver interface {
	Resolve(token string) (ids.ID, bool)
}

// Item is a user-supplied token and the ID it resolved to.
type Item struct {
	Token string
	ID    ids.ID
}

// Prepared is the outcome of resolving a batch of tokens.
type Prepared struct {
	Resolved []Item
	Invalid  []string
}

// Prepare resolves every token, keeping input order and dropping repeats. It
// never fails; unresolvable tokens end up in Invalid.
func Prepare(r Resolver, tokens []string) Prepared {
	var p Prepared
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true

		id, ok := r.Resolve(token)
		if !ok {
			p.Invalid = append(p.Invalid, token)
			continue
		}
		p.Resolved = append(p.Resolved, Item{Token: token, ID: id})
	}
	return p
}

// ConfigurationError means a command has nothing it can act on.
type ConfigurationError struct {
	Reason string
	Items  []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Items) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s:\n  %s", e.Reason, strings.Join(e.Items, "\n  "))
}

// RequireNonEmpty fails when no token resolved, listing each invalid one.
func RequireNonEmpty(p Prepared) error {
	if len(p.Resolved) > 0 {
		return nil
	}
	items := make([]string, 0, len(p.Invalid))
	for _, token := range p.Invalid {
		items = append(items, token+": unknown ID")
	}
	return &ConfigurationError{Reason: "no valid IDs to process", Items: items}
}

// PartitionByKind splits items into review threads and everything else.
func PartitionByKind(items []Item) (threads, nonThreads []Item) {
	for _, item := range items {
		if item.ID.IsThread() {
			threads = append(threads, item)
		} else {
			nonThreads = append(nonThreads, item)
		}
	}
	return threads, nonThreads
}

// RequireThreads fails when a thread-only operation has no thread to act on,
// listing every token that was dropped and why.
func RequireThreads(op string, threads, nonThreads []Item, invalid []string) error {
	if len(threads) > 0 {
		return nil
	}
	items := make([]string, 0, len(nonThreads)+len(invalid))
	for _, item := range nonThreads {
		items = append(items, item.Token+": not a review thread")
	}
	for _, token := range invalid {
		items = append(items, token+": unknown ID")
	}
	return &ConfigurationError{Reason: fmt.Sprintf("%s only works on review threads", op), Items: items}
}

// Failure is one item's error.
type Failure struct {
	ID  string
	Err error
}

// Result collects per-item outcomes in input order.
type Result struct {
	Successful []string
	Failed     []Failure
}

// Attempted is the number of items that were processed.
func (r Result) Attempted() int {
	return len(r.Successful) + len(r.Failed)
}

// LocalOp changes local state for one item.
type LocalOp func(st *state.State, id ids.ID) error

// RunLocal applies op to each item in order and saves st once afterwards, but
// only if at least one item succeeded.
func RunLocal(saver state.Saver, st *state.State, items []Item, op LocalOp) (Result, error) {
	var res Result
	for _, item := range items {
		if err := op(st, item.ID); err != nil {
			res.Failed = append(res.Failed, Failure{ID: item.Token, Err: err})
			continue
		}
		res.Successful = append(res.Successful, item.Token)
	}

	if len(res.Successful) == 0 {
		return res, nil
	}
	if err := saver.Save(st); err != nil {
		return res, fmt.Errorf("failed to save state: %w", err)
	}
	return res, nil
}

// RemoteOp performs the remote work for one item.
type RemoteOp func(ctx context.Context, id ids.ID) error

// Sequence runs steps in order for a single item, stopping at the first
// failure so later steps never run without the earlier ones.
func Sequence(steps ...RemoteOp) RemoteOp {
	return func(ctx context.Context, id ids.ID) error {
		for _, step := range steps {
			if err := step(ctx, id); err != nil {
				return err
			}
		}
		return nil
	}
}

// Runner dispatches remote operations.
type Runner struct {
	concurrency int
	log         *clog.Logger
}

// NewRunner creates a Runner allowing up to concurrency items in flight.
func NewRunner(concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		concurrency: concurrency,
		log:         clog.Default().WithPrefix("batch"),
	}
}

// RunRemote runs op for every item concurrently. An item's failure is
// recorded against that item only; nothing already applied is undone.
func (r *Runner) RunRemote(ctx context.Context, items []Item, op RemoteOp) Result {
	errs := make([]error, len(items))

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := op(ctx, item.ID); err != nil {
				r.log.Warn("Remote operation failed", "id", item.Token, "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, item := range items {
		if errs[i] != nil {
			res.Failed = append(res.Failed, Failure{ID: item.Token, Err: errs[i]})
			continue
		}
		res.Successful = append(res.Successful, item.Token)
	}
	return res
}
