// Package sweep drives a benchmark across the cartesian product of an
// environment parameter set and an option parameter set, one child process at
// a time, and appends one result row per run.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zinc-sig/easysweep/internal/logging"
	"github.com/zinc-sig/easysweep/internal/metrics"
	"github.com/zinc-sig/easysweep/internal/param"
	"github.com/zinc-sig/easysweep/internal/runner"
	"github.com/zinc-sig/easysweep/internal/table"
)

// Config is one sweep.
type Config struct {
	// Name identifies the sweep in logs and summaries.
	Name string
	// Program is the program prefix, e.g. "./run" or "mpirun -np 2 ./run".
	Program  string
	BasePath string
	Env      param.ParameterSet
	Options  param.ParameterSet
	// Repetitions defaults to 1.
	Repetitions int
	Label       string
	// ResultsPath overrides the output-file option.
	ResultsPath string
	// SummaryPath, when set, receives one row per combination with the mean
	// of every metric over its successful repetitions.
	SummaryPath string
	Timeout     time.Duration
	Verbose     bool
	DryRun      bool
	// Skip leaves out the first Skip runs, for resuming an interrupted sweep.
	Skip int
	// ExtractOnFailure parses the output of failed runs too.
	ExtractOnFailure bool
	Policy           table.SchemaPolicy
	Patterns         []metrics.Pattern
}

// Executor runs one child process.
type Executor interface {
	Execute(ctx context.Context, config *runner.Config) (*runner.Result, error)
}

// ExecutorFunc adapts a function such as runner.Execute to Executor.
type ExecutorFunc func(ctx context.Context, config *runner.Config) (*runner.Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, config *runner.Config) (*runner.Result, error) {
	return f(ctx, config)
}

// Summary counts what a sweep did.
type Summary struct {
	ID           string
	Name         string
	ResultsPath  string
	SummaryPath  string
	Combinations int
	Planned      int
	Executed     int
	Succeeded    int
	Failed       int
	TimedOut     int
	Errored      int
	Skipped      int
	StartedAt    time.Time
	Duration     time.Duration
}

// Sweeper runs sweeps. The zero value runs real child processes, inherits
// the current environment and narrates on stderr.
type Sweeper struct {
	Executor Executor
	Logger   *slog.Logger
	// Progress receives run narration and, when verbose, the children's stderr.
	Progress io.Writer
	// Environ returns the base environment of every child.
	Environ func() []string
	// OpenSink opens a results table.
	OpenSink func(path string, policy table.SchemaPolicy) (table.Sink, error)
}

// Run executes cfg with a default Sweeper.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	return (&Sweeper{}).Run(ctx, cfg)
}

// Prepared is a validated sweep ready to run.
type Prepared struct {
	cfg         Config
	program     string
	leading     []string
	envs        []param.Combination
	opts        []param.Combination
	reps        int
	resultsPath string
	extractor   *metrics.Extractor
}

// Prepare validates cfg and derives the run space. Every ConfigError is
// reported here, before any run starts.
func Prepare(cfg Config) (*Prepared, error) {
	p := &Prepared{cfg: cfg, reps: cfg.Repetitions}
	if p.reps == 0 {
		p.reps = 1
	}
	if p.reps < 0 {
		return nil, configErrorf("repetitions must be positive, got %d", cfg.Repetitions)
	}
	if cfg.Skip < 0 {
		return nil, configErrorf("skip must not be negative, got %d", cfg.Skip)
	}
	if cfg.Timeout < 0 {
		return nil, configErrorf("timeout must not be negative, got %s", cfg.Timeout)
	}

	program, leading, err := ResolveProgram(cfg.Program, cfg.BasePath)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	p.program, p.leading = program, leading

	options := cfg.Options
	b := param.From(options)
	for _, name := range OutputFileOptions {
		candidates, ok := options.Candidates(name)
		if !ok {
			continue
		}
		if len(candidates) != 1 {
			return nil, configErrorf("option %s must have exactly one candidate, has %d", name, len(candidates))
		}
		if p.resultsPath != "" {
			return nil, configErrorf("both %s and %s are set", OutputFileOptions[0], OutputFileOptions[1])
		}
		p.resultsPath = candidates[0].String()
		if !filepath.IsAbs(p.resultsPath) && cfg.BasePath != "" {
			p.resultsPath = filepath.Join(cfg.BasePath, p.resultsPath)
		}
		b.Unset(name)
	}
	if cfg.ResultsPath != "" {
		p.resultsPath = cfg.ResultsPath
	}
	if p.resultsPath == "" && !cfg.DryRun {
		return nil, configErrorf("no results table: set a results path or an %s option", OutputFileOptions[0])
	}
	if cfg.SummaryPath != "" && samePath(cfg.SummaryPath, p.resultsPath) {
		return nil, configErrorf("summary table %s is the results table", cfg.SummaryPath)
	}
	if options, err = b.Build(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	for _, name := range cfg.Env.Names() {
		if name == "" || strings.ContainsAny(name, "= \t") {
			return nil, configErrorf("invalid environment variable name %q", name)
		}
	}

	if p.envs, err = param.Expand(cfg.Env); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("environment: %w", err)}
	}
	if p.opts, err = param.Expand(options); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("options: %w", err)}
	}
	if total := len(p.envs) * len(p.opts); total > param.MaxCombinations/p.reps {
		return nil, configErrorf("%d combinations x %d repetitions exceeds %d runs", total, p.reps, param.MaxCombinations)
	}

	p.extractor = metrics.NewExtractor(cfg.Patterns...)
	if err := checkColumns(cfg.Env, options, p.extractor.Names()); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return p, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// Total is the number of runs, skipped ones included.
func (p *Prepared) Total() int { return len(p.envs) * len(p.opts) * p.reps }

// Combinations is the number of environment and option pairs.
func (p *Prepared) Combinations() int { return len(p.envs) * len(p.opts) }

// ResultsPath is the resolved results table.
func (p *Prepared) ResultsPath() string { return p.resultsPath }

func checkColumns(env, options param.ParameterSet, metricNames []string) error {
	owner := map[string]string{
		ColumnLabel:     "reserved column",
		ColumnRep:       "reserved column",
		ColumnStatus:    "reserved column",
		ColumnElapsedMS: "reserved column",
		ColumnRuns:      "reserved column",
		ColumnSucceeded: "reserved column",
	}
	// SQLite column names are case-insensitive.
	claim := func(column, by string) error {
		key := strings.ToLower(column)
		if prev, ok := owner[key]; ok {
			return fmt.Errorf("column %q of %s collides with %s", column, by, prev)
		}
		owner[key] = by
		return nil
	}

	for _, name := range env.Names() {
		if err := claim(name, "environment variable "+name); err != nil {
			return err
		}
	}
	for _, name := range options.Names() {
		if name == LabelOption {
			continue
		}
		column := ColumnName(name)
		if column == "" {
			return fmt.Errorf("option %q has no column name", name)
		}
		if err := claim(column, "option "+name); err != nil {
			return err
		}
	}
	for _, name := range metricNames {
		if err := claim(name, "metric "+name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return logging.Discard()
}

func (s *Sweeper) progress() io.Writer {
	if s.Progress != nil {
		return s.Progress
	}
	return os.Stderr
}

func (s *Sweeper) executor() Executor {
	if s.Executor != nil {
		return s.Executor
	}
	return ExecutorFunc(runner.Execute)
}

func (s *Sweeper) environ() []string {
	if s.Environ != nil {
		return s.Environ()
	}
	return os.Environ()
}

func (s *Sweeper) openSink(path string, policy table.SchemaPolicy) (table.Sink, error) {
	if s.OpenSink != nil {
		return s.OpenSink(path, policy)
	}
	return table.Open(path, policy)
}

// Run executes the sweep: environment combinations, then option
// combinations, then repetitions. A failing run is recorded and the sweep
// goes on; a row that cannot be written stops it with a PersistenceError.
// Cancelling ctx stops the sweep before the next run.
func (s *Sweeper) Run(ctx context.Context, cfg Config) (summary *Summary, err error) {
	p, err := Prepare(cfg)
	if err != nil {
		return nil, err
	}

	log := s.logger()
	summary = &Summary{
		ID:           uuid.NewString(),
		Name:         cfg.Name,
		ResultsPath:  p.resultsPath,
		Combinations: p.Combinations(),
		Planned:      p.Total(),
		StartedAt:    time.Now(),
	}
	if !cfg.DryRun {
		summary.SummaryPath = cfg.SummaryPath
	}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	log = log.With("sweep", summary.ID)
	if cfg.Name != "" {
		log = log.With("name", cfg.Name)
	}
	log.Info("starting sweep",
		"runs", summary.Planned,
		"combinations", summary.Combinations,
		"repetitions", p.reps,
		"results", p.resultsPath,
		"dry_run", cfg.DryRun)

	var results, averages table.Sink
	if !cfg.DryRun {
		if results, err = s.openSink(p.resultsPath, cfg.Policy); err != nil {
			return summary, &PersistenceError{Path: p.resultsPath, Err: err}
		}
		defer closeSink(results, p.resultsPath, &err)

		if cfg.SummaryPath != "" {
			if averages, err = s.openSink(cfg.SummaryPath, cfg.Policy); err != nil {
				return summary, &PersistenceError{Path: cfg.SummaryPath, Err: err}
			}
			defer closeSink(averages, cfg.SummaryPath, &err)
		}
	}

	out := s.progress()
	exec := s.executor()
	base := s.environ()
	timeout := ""
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout.String()
	}

	// A strict table cannot widen, so its header must hold every metric
	// from the first row on.
	fixedSchema := cfg.Policy == table.StrictSchema

	index := 0
	for _, envC := range p.envs {
		overlay := Overlay(envC)
		childEnv := BuildEnv(base, overlay)

		for _, optC := range p.opts {
			args := BuildArgs(p.leading, optC)
			label := cfg.Label
			if label == "" {
				if v, ok := optC.Get(LabelOption); ok {
					label = v.String()
				}
			}
			agg := newAggregate(p.extractor.Names(), fixedSchema)

			for rep := 1; rep <= p.reps; rep++ {
				index++
				if err := ctx.Err(); err != nil {
					log.Warn("sweep interrupted", "run", index, "error", err)
					return summary, err
				}
				if index <= cfg.Skip {
					summary.Skipped++
					continue
				}

				spec := RunSpec{
					Index:      index,
					Env:        envC,
					Options:    optC,
					Repetition: rep,
					Program:    p.program,
					Args:       args,
					Overlay:    overlay,
					Dir:        cfg.BasePath,
				}

				if cfg.Verbose || cfg.DryRun {
					runner.PrintPreExecution(out, runner.Execution{
						Index:       index,
						Total:       summary.Planned,
						CommandLine: spec.CommandLine(),
						Dir:         spec.Dir,
						Overlay:     overlay,
						Timeout:     timeout,
						DryRun:      cfg.DryRun,
					})
				}
				if cfg.DryRun {
					continue
				}

				status, exitCode, elapsed, found, stopped := s.invoke(ctx, exec, p, spec, childEnv, log)
				if stopped != nil {
					log.Warn("sweep interrupted", "run", index, "error", stopped)
					return summary, stopped
				}

				summary.Executed++
				switch status {
				case runner.StatusSuccess:
					summary.Succeeded++
				case runner.StatusTimeout:
					summary.TimedOut++
				case runner.StatusError:
					summary.Errored++
				default:
					summary.Failed++
				}
				agg.add(status == runner.StatusSuccess, found)

				if cfg.Verbose {
					runner.PrintPostExecution(out, status, exitCode, elapsed, found.String())
				}

				row := resultRow(envC, optC, label, p.extractor.Names(), found, fixedSchema)
				row = insertRunColumns(row, envC.Len()+columnCount(optC), rep, status, elapsed)
				if err := results.Append(row); err != nil {
					log.Error("failed to persist row", "run", index, "path", p.resultsPath, "error", err)
					return summary, &PersistenceError{Path: p.resultsPath, Err: err}
				}
			}

			if averages != nil && agg.runs > 0 {
				if err := averages.Append(agg.row(envC, optC, label)); err != nil {
					log.Error("failed to persist summary row", "path", cfg.SummaryPath, "error", err)
					return summary, &PersistenceError{Path: cfg.SummaryPath, Err: err}
				}
			}
		}
	}

	log.Info("sweep finished",
		"executed", summary.Executed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"timed_out", summary.TimedOut,
		"errored", summary.Errored,
		"skipped", summary.Skipped)
	return summary, nil
}

// invoke runs one leaf. stopped is non-nil when ctx was cancelled while the
// child ran; such a run is not recorded.
func (s *Sweeper) invoke(ctx context.Context, exec Executor, p *Prepared, spec RunSpec, env []string, log *slog.Logger) (status runner.Status, exitCode int, elapsed int64, found metrics.Metrics, stopped error) {
	result, err := exec.Execute(ctx, &runner.Config{
		Command: spec.Program,
		Args:    spec.Args,
		Env:     env,
		Dir:     spec.Dir,
		Timeout: p.cfg.Timeout,
		Verbose: p.cfg.Verbose,
		Stderr:  s.progress(),
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", 0, 0, nil, ctxErr
	}

	found = metrics.Metrics{}
	if err != nil {
		log.Warn("run could not start",
			"run", spec.Index,
			"status", runner.StatusError,
			"exit_code", -1,
			"command", spec.CommandLine(),
			"error", err)
		return runner.StatusError, -1, 0, found, nil
	}

	if result.Status == runner.StatusSuccess || p.cfg.ExtractOnFailure {
		found = p.extractor.Extract(result.Stdout)
	}
	if result.Status != runner.StatusSuccess {
		log.Warn("run failed",
			"run", spec.Index,
			"status", result.Status,
			"exit_code", result.ExitCode,
			"command", spec.CommandLine())
	} else {
		log.Debug("run finished",
			"run", spec.Index,
			"elapsed_ms", result.ExecutionTime,
			"metrics", found.String())
	}
	return result.Status, result.ExitCode, result.ExecutionTime, found, nil
}

func closeSink(sink table.Sink, path string, err *error) {
	if cerr := sink.Close(); cerr != nil && *err == nil {
		*err = &PersistenceError{Path: path, Err: cerr}
	}
}

func columnCount(opts param.Combination) int {
	n := 0
	for _, a := range opts.Assignments() {
		if a.Name != LabelOption {
			n++
		}
	}
	return n
}

// resultRow lays out [env][options] label [metrics]; insertRunColumns adds
// the per-run columns after label.
// resultRow lays out [env][options] label [metrics]. With allMetrics every
// name in metricNames gets a column, empty when the run did not report it.
func resultRow(env, opts param.Combination, label string, metricNames []string, found metrics.Metrics, allMetrics bool) table.Row {
	row := make(table.Row, 0, env.Len()+opts.Len()+4+len(found))
	for _, a := range env.Assignments() {
		row = append(row, table.Field{Name: a.Name, Value: a.Value.String()})
	}
	for _, a := range opts.Assignments() {
		if a.Name == LabelOption {
			continue
		}
		row = append(row, table.Field{Name: ColumnName(a.Name), Value: a.Value.String()})
	}
	row = append(row, table.Field{Name: ColumnLabel, Value: label})
	for _, name := range metricNames {
		if v, ok := found[name]; ok {
			row = append(row, table.Field{Name: name, Value: v.String()})
		} else if allMetrics {
			row = append(row, table.Field{Name: name})
		}
	}
	return row
}

func insertRunColumns(row table.Row, paramColumns, rep int, status runner.Status, elapsed int64) table.Row {
	at := paramColumns + 1
	run := table.Row{
		{Name: ColumnRep, Value: strconv.Itoa(rep)},
		{Name: ColumnStatus, Value: string(status)},
		{Name: ColumnElapsedMS, Value: strconv.FormatInt(elapsed, 10)},
	}
	out := make(table.Row, 0, len(row)+len(run))
	out = append(out, row[:at]...)
	out = append(out, run...)
	return append(out, row[at:]...)
}

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
