package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "easysweep",
		Short: "Run a benchmark across every combination of its parameters",
		Long: `Easysweep runs a benchmark program once for every combination of
environment variables and command-line options, repeats each combination,
extracts performance metrics from the program's output and appends one row
per run to a CSV or SQLite results table.

A JSON summary of every sweep is printed on stdout; narration and logs go to
stderr.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	return root
}

func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
