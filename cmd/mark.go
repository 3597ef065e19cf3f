package cmd

import (
	"github.com/jmcampanini/revu/internal/batch"
	"github.com/jmcampanini/revu/internal/config"
	"github.com/jmcampanini/revu/internal/ids"
	"github.com/jmcampanini/revu/internal/state"
	"github.com/spf13/cobra"
)

var markNoteFlag string

var markCmd = &cobra.Command{
	Use:   "mark <done|skip|later> <id>...",
	Short: "Record a local status for threads or nitpicks",
	Long: `Record a local triage status for one or more threads or nitpicks.

IDs are the short IDs printed by fetch, or full IDs. A new status replaces the
previous one, including its note. Nothing is sent to GitHub.`,
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{string(state.StatusDone), string(state.StatusSkip), string(state.StatusLater)},
	RunE:      runMark,
}

var clearCmd = &cobra.Command{
	Use:   "clear <id>...",
	Short: "Remove the local status of threads or nitpicks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClear,
}

func init() {
	markCmd.Flags().StringVar(&markNoteFlag, "note", "", "Note to store with the status")
	rootCmd.AddCommand(markCmd)
	rootCmd.AddCommand(clearCmd)
}

func runMark(cmd *cobra.Command, args []string) error {
	return runMarkWithDeps(cmd, args, nil, nil)
}

func runMarkWithDeps(cmd *cobra.Command, args []string, deps *appDeps, cfg *config.Config) error {
	status, err := state.ParseStatus(args[0])
	if err != nil {
		return err
	}

	return runLocalBatch(cmd, args[1:], deps, cfg, func(st *state.State, id ids.ID) error {
		st.SetStatusID(id, status, markNoteFlag)
		return nil
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return runClearWithDeps(cmd, args, nil, nil)
}

func runClearWithDeps(cmd *cobra.Command, args []string, deps *appDeps, cfg *config.Config) error {
	return runLocalBatch(cmd, args, deps, cfg, func(st *state.State, id ids.ID) error {
		st.ClearID(id)
		return nil
	})
}

// runLocalBatch resolves tokens against saved state, applies op to each and
// saves once.
func runLocalBatch(cmd *cobra.Command, tokens []string, deps *appDeps, cfg *config.Config, op batch.LocalOp) error {
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

	res, err := batch.RunLocal(app.store, st, prepared.Resolved, op)
	if err != nil {
		return err
	}

	return report(cmd, res, prepared.Invalid, nil)
}

// report prints res and turns an incomplete batch into errBatchIncomplete.
func report(cmd *cobra.Command, res batch.Result, invalid []string, nonThreads []batch.Item) error {
	ok, err := batch.Report(cmd.OutOrStdout(), res, invalid, nonThreads)
	if err != nil {
		return err
	}
	if !ok {
		return errBatchIncomplete
	}
	return nil
}
