package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zinc-sig/easysweep/cmd/config"
	"github.com/zinc-sig/easysweep/cmd/helpers"
)

func newPlanCmd() *cobra.Command {
	sf := &config.SweepFlags{}
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Validate a sweep plan and count its runs",
		Long: `Load a YAML sweep plan, resolve every sweep and validate it exactly as
'run' would, then print the number of combinations and runs of each sweep.
Nothing is executed.`,
		Example: `  easysweep plan life_mpi.yaml
  easysweep plan life_mpi.yaml --sweep scaling`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf.Plan = args[0]
			cfgs, err := helpers.SweepConfigs(cmd, sf, &config.CommonFlags{}, nil)
			if err != nil {
				return err
			}
			lines, err := helpers.PreparePlan(cfgs)
			if err != nil {
				return err
			}
			return helpers.PrintPlan(cmd.OutOrStdout(), lines)
		},
	}
	cmd.Flags().StringArrayVar(&sf.Sweeps, "sweep", nil, "Show only the named sweep (can be used multiple times)")
	return cmd
}
