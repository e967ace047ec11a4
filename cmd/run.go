package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/easysweep/cmd/config"
	"github.com/zinc-sig/easysweep/cmd/helpers"
	"github.com/zinc-sig/easysweep/internal/logging"
	"github.com/zinc-sig/easysweep/internal/output"
	"github.com/zinc-sig/easysweep/internal/sweep"
)

type runOptions struct {
	common  config.CommonFlags
	sweep   config.SweepFlags
	upload  config.UploadConfig
	webhook config.WebhookConfig

	logger *slog.Logger
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] [-- <program> [args...]]",
		Short: "Run a parameter sweep",
		Long: `Run every combination of the environment (--env) and option (--opt)
candidates, --repetitions times each, and append one row per run to the
results table. Repeating a name adds a candidate. The program is given after
'--' or with --program; alternatively --plan runs the sweeps of a YAML plan.

Interrupting easysweep stops the sweep before the next run. Rows already
written are kept and --skip resumes from where the sweep stopped.`,
		Example: `  easysweep run -o life.csv --env OMP_NUM_THREADS=1 --env OMP_NUM_THREADS=4 \
      --opt=-k=life --opt=-s=512 --opt=-s=1024 -r 3 -- ./run
  easysweep run --plan life_mpi.yaml --timeout 2m --log-format json
  easysweep run --plan life_mpi.yaml --sweep scaling --skip 40 --dry-run`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return o.complete(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	helpers.SetupCommonFlags(cmd, &o.common)
	helpers.SetupSweepFlags(cmd, &o.sweep)
	helpers.SetupUploadFlags(cmd, &o.upload)
	helpers.SetupWebhookFlags(cmd, &o.webhook)
	return cmd
}

func (o *runOptions) complete(cmd *cobra.Command) error {
	timeout, err := helpers.ParseTimeout(o.common.TimeoutStr)
	if err != nil {
		return err
	}
	o.common.Timeout = timeout

	o.logger, err = logging.New(cmd.ErrOrStderr(), o.common.LogFormat, o.common.Verbose)
	return err
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	cfgs, err := helpers.SweepConfigs(cmd, &o.sweep, &o.common, args)
	if err != nil {
		return err
	}

	client, err := helpers.NewWebhookClient(&o.webhook, o.logger)
	if err != nil {
		return err
	}
	provider, uploadConf, err := helpers.SetupUploadProvider(&o.upload)
	if err != nil {
		return err
	}
	if provider != nil && (o.common.Verbose || o.common.DryRun) {
		helpers.PrintUploadInfo(cmd.ErrOrStderr(), provider, uploadConf)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := &sweep.Sweeper{Logger: o.logger, Progress: cmd.ErrOrStderr()}
	for _, cfg := range cfgs {
		summary, runErr := sweeper.Run(ctx, cfg)
		if summary == nil {
			return runErr
		}
		if runErr != nil {
			// A second interrupt terminates the process while the summary
			// is being delivered.
			stop()
		}

		// Report even when the sweep was interrupted.
		after := context.WithoutCancel(ctx)
		out := output.FromSweep(summary, cfg.DryRun, runErr)
		if provider != nil && !cfg.DryRun {
			remote, err := helpers.HandleUploads(after, provider, summary, o.logger)
			if err != nil {
				o.logger.Error("upload failed", "sweep", summary.ID, "provider", provider.Name(), "error", err)
				out.UploadError = err.Error()
			}
			out.Uploaded = remote
		}

		if err := helpers.OutputJSONAndWebhook(after, cmd.OutOrStdout(), out, client, o.logger); err != nil {
			return err
		}
		if runErr != nil {
			return runErr
		}
		if out.UploadError != "" {
			return fmt.Errorf("failed to upload results of sweep %s: %s", summary.ID, out.UploadError)
		}
	}
	return nil
}
