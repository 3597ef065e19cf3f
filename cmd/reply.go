package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/jmcampanini/revu/internal/batch"
	"github.com/jmcampanini/revu/internal/config"
	"github.com/jmcampanini/revu/internal/github"
	"github.com/jmcampanini/revu/internal/ids"
	"github.com/spf13/cobra"
)

var (
	replyBodyFlag    string
	replyResolveFlag bool
	reactContentFlag string
)

var replyCmd = &cobra.Command{
	Use:   "reply <id>... --body <text>",
	Short: "Reply to review threads",
	Long: `Post the same reply on one or more review threads.

With --resolve each thread is resolved after its reply is posted. A thread
whose reply fails is not resolved. Nitpicks are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReply,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <id>...",
	Short: "Resolve review threads",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var reactCmd = &cobra.Command{
	Use:   "react <id>... --content <reaction>",
	Short: "React to the first comment of review threads",
	Long: `Add a reaction to the comment that opened each review thread.

Reactions: ` + strings.Join(github.ReactionNames(), ", "),
	Args: cobra.MinimumNArgs(1),
	RunE: runReact,
}

func init() {
	replyCmd.Flags().StringVar(&replyBodyFlag, "body", "", "Reply text")
	replyCmd.Flags().BoolVar(&replyResolveFlag, "resolve", false, "Resolve each thread after replying")
	_ = replyCmd.MarkFlagRequired("body")

	reactCmd.Flags().StringVar(&reactContentFlag, "content", "", "Reaction, e.g. +1, heart, rocket")
	_ = reactCmd.MarkFlagRequired("content")

	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(reactCmd)
}

func runReply(cmd *cobra.Command, args []string) error {
	return runReplyWithDeps(cmd, args, nil, nil)
}

func runReplyWithDeps(cmd *cobra.Command, args []string, deps *appDeps, cfg *config.Config) error {
	body := strings.TrimSpace(replyBodyFlag)
	if body == "" {
		return errors.New("reply body cannot be empty")
	}

	return runRemoteBatch(cmd, "reply", args, deps, cfg, func(client *github.Client) batch.RemoteOp {
		reply := func(ctx context.Context, id ids.ID) error {
			_, err := client.ReplyToThread(ctx, id.Full, body)
			return err
		}
		if !replyResolveFlag {
			return reply
		}
		return batch.Sequence(reply, resolveOp(client))
	})
}

func runResolve(cmd *cobra.Command, args []string) error {
	return runResolveWithDeps(cmd, args, nil, nil)
}

func runResolveWithDeps(cmd *cobra.Command, args []string, deps *appDeps, cfg *config.Config) error {
	return runRemoteBatch(cmd, "resolve", args, deps, cfg, resolveOp)
}

func runReact(cmd *cobra.Command, args []string) error {
	return runReactWithDeps(cmd, args, nil, nil)
}

func runReactWithDeps(cmd *cobra.Command, args []string, deps *appDeps, cfg *config.Config) error {
	reaction, err := github.ParseReaction(reactContentFlag)
	if err != nil {
		return err
	}

	return runRemoteBatch(cmd, "react", args, deps, cfg, func(client *github.Client) batch.RemoteOp {
		return func(ctx context.Context, id ids.ID) error {
			return client.ReactToThread(ctx, id.Full, reaction)
		}
	})
}

func resolveOp(client *github.Client) batch.RemoteOp {
	return func(ctx context.Context, id ids.ID) error {
		return client.ResolveThread(ctx, id.Full)
	}
}

// runRemoteBatch resolves tokens, drops non-thread IDs and runs the op built
// by newOp for every thread concurrently. Local state is read but not saved.
func runRemoteBatch(cmd *cobra.Command, op string, tokens []string, deps *appDeps, cfg *config.Config, newOp func(*github.Client) batch.RemoteOp) error {
	app, err := initAppContext(deps, cfg)
	if err != nil {
		return err
	}

	_, st, err := app.loadState(commandContext(cmd), prFlag)
	if err != nil {
		return err
	}

	prepared := batch.Prepare(st, tokens)
	if err := batch.RequireNonEmpty(prepared); err != nil {
		return err
	}

	threads, nonThreads := batch.PartitionByKind(prepared.Resolved)
	if err := batch.RequireThreads(op, threads, nonThreads, prepared.Invalid); err != nil {
		return err
	}

	runner := batch.NewRunner(app.cfg.GitHub.Concurrency)
	res := runner.RunRemote(commandContext(cmd), threads, newOp(app.client()))

	return report(cmd, res, prepared.Invalid, nonThreads)
}
