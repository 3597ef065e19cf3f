package cmd

import (
	"errors"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "n/a"

var (
	debugFlag bool
	prFlag    string
)

// errBatchIncomplete is returned after a batch report that contains failures,
// so the process exits non-zero without printing the error again.
var errBatchIncomplete = errors.New("some items were not processed")

var rootCmd = &cobra.Command{
	Use:   "revu",
	Short: "Pull request review thread triage",
	Long: `Revu fetches the review threads of a pull request, gives each one a short
ID and lets you triage, reply to, resolve and react to them in batches.

The pull request defaults to the one opened from the current branch. Use --pr
to pick another one by number, owner/repo#number or URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if debugFlag {
			clog.SetLevel(clog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&prFlag, "pr", "", "Pull request (number, owner/repo#number or URL)")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if errors.Is(err, errBatchIncomplete) {
		return err
	}
	if err != nil {
		clog.Error(err)
	}
	return err
}
