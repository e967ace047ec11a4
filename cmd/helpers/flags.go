package helpers

import (
	"github.com/spf13/cobra"

	"github.com/zinc-sig/easysweep/cmd/config"
)

// Flags that describe a sweep and therefore conflict with --plan.
var sweepDefinitionFlags = []string{
	"name", "program", "base-path", "opt", "env", "metric",
	"repetitions", "label", "results", "summary",
}

// SetupCommonFlags adds commonly used flags to a command
func SetupCommonFlags(cmd *cobra.Command, flags *config.CommonFlags) {
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Narrate every run and show the children's stderr")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Print every invocation without executing or writing anything")
	cmd.Flags().StringVarP(&flags.TimeoutStr, "timeout", "t", "", "Per-run timeout (e.g., 30s, 2m, 500ms)")
	cmd.Flags().StringVar(&flags.LogFormat, "log-format", "text", "Log format: text or json")
}

// SetupSweepFlags adds the flags that define or select sweeps.
func SetupSweepFlags(cmd *cobra.Command, cfg *config.SweepFlags) {
	cmd.Flags().StringVarP(&cfg.Plan, "plan", "p", "", "YAML plan file describing one or more sweeps")
	cmd.Flags().StringArrayVar(&cfg.Sweeps, "sweep", nil, "Run only the named plan sweep (can be used multiple times)")

	cmd.Flags().StringVar(&cfg.Name, "name", "", "Sweep name used in logs and the summary")
	cmd.Flags().StringVar(&cfg.Program, "program", "", "Program prefix, e.g. './run' or 'mpirun -np 2 ./run'")
	cmd.Flags().StringVar(&cfg.BasePath, "base-path", "", "Working directory of every run; relative program paths resolve against it")
	cmd.Flags().StringArrayVar(&cfg.Options, "opt", nil, "Option candidate NAME=VALUE (repeat a name to add candidates; NAME alone is a bare flag)")
	cmd.Flags().StringArrayVar(&cfg.Env, "env", nil, "Environment candidate NAME=VALUE (repeat a name to add candidates)")
	cmd.Flags().StringArrayVar(&cfg.Metrics, "metric", nil, "Extra metric NAME=REGEX; the regex has one capture group holding the value")
	cmd.Flags().IntVarP(&cfg.Repetitions, "repetitions", "r", 1, "Runs per combination")
	cmd.Flags().StringVar(&cfg.Label, "label", "", "Value of the label column")
	cmd.Flags().StringVarP(&cfg.Results, "results", "o", "", "Results table (.csv, or .db/.sqlite for SQLite); overrides -of")
	cmd.Flags().StringVar(&cfg.Summary, "summary", "", "Table receiving per-combination averages")
	cmd.Flags().IntVar(&cfg.Skip, "skip", 0, "Skip the first N runs, to resume an interrupted sweep")
	cmd.Flags().BoolVar(&cfg.ExtractOnFailure, "extract-on-failure", false, "Parse metrics from failed runs too")
	cmd.Flags().StringVar(&cfg.Schema, "schema", "widen", "How new columns are handled: widen or strict")
}

// SetupUploadFlags adds upload-related flags to a command
func SetupUploadFlags(cmd *cobra.Command, cfg *config.UploadConfig) {
	cmd.Flags().StringVar(&cfg.Provider, "upload-provider", "", "Upload provider type (minio or dir)")
	cmd.Flags().StringVar(&cfg.Config, "upload-config", "", "Upload configuration as JSON string")
	cmd.Flags().StringArrayVar(&cfg.ConfigKV, "upload-config-kv", nil, "Upload config key=value pairs (can be used multiple times)")
	cmd.Flags().StringVar(&cfg.ConfigFile, "upload-config-file", "", "Path to JSON or YAML file containing upload configuration")
}

// SetupWebhookFlags adds webhook-related flags to a command
func SetupWebhookFlags(cmd *cobra.Command, cfg *config.WebhookConfig) {
	cmd.Flags().StringVar(&cfg.URL, "webhook-url", "", "Webhook URL to send sweep summaries to")
	cmd.Flags().StringVar(&cfg.Method, "webhook-method", "POST", "HTTP method to use: GET, POST, PUT, PATCH, DELETE")
	cmd.Flags().StringVar(&cfg.AuthType, "webhook-auth-type", "none", "Authentication type: none, bearer, api-key")
	cmd.Flags().StringVar(&cfg.AuthToken, "webhook-auth-token", "", "Authentication token (use with --webhook-auth-type)")
	cmd.Flags().IntVar(&cfg.Retries, "webhook-retries", 3, "Maximum webhook retry attempts (0 = no retries)")
	cmd.Flags().StringVar(&cfg.RetryDelay, "webhook-retry-delay", "1s", "Initial delay between webhook retries")
	cmd.Flags().StringVar(&cfg.Timeout, "webhook-timeout", "30s", "Total timeout for webhook including retries")

	cmd.Flags().StringVar(&cfg.Config, "webhook-config", "", "Webhook configuration as JSON string")
	cmd.Flags().StringArrayVar(&cfg.ConfigKV, "webhook-config-kv", nil, "Webhook config key=value pairs (can be used multiple times)")
	cmd.Flags().StringVar(&cfg.ConfigFile, "webhook-config-file", "", "Path to JSON or YAML file containing webhook configuration")
}
