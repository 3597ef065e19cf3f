package cmd

import (
	"fmt"

	"github.com/jmcampanini/revu/internal/config"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget all local state of a pull request",
	Long: `Forget every status, note, short ID and cached cursor recorded for a pull
request. The next fetch starts from scratch.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	return runResetWithDeps(cmd, nil, nil)
}

func runResetWithDeps(cmd *cobra.Command, deps *appDeps, cfg *config.Config) error {
	app, err := initAppContext(deps, cfg)
	if err != nil {
		return err
	}

	ref, st, err := app.loadState(commandContext(cmd), prFlag)
	if err != nil {
		return err
	}

	st.Reset()
	if err := app.store.Save(st); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Reset state for %s\n", ref)
	return err
}
