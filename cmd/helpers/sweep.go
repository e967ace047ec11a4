package helpers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zinc-sig/easysweep/cmd/config"
	"github.com/zinc-sig/easysweep/internal/metrics"
	"github.com/zinc-sig/easysweep/internal/param"
	"github.com/zinc-sig/easysweep/internal/plan"
	"github.com/zinc-sig/easysweep/internal/sweep"
	"github.com/zinc-sig/easysweep/internal/table"
)

// ParseAssignments turns NAME=VALUE pairs into a parameter set. A repeated
// name adds a candidate; a pair without '=' is a bare flag.
func ParseAssignments(pairs []string) (param.ParameterSet, error) {
	b := param.NewBuilder()
	for _, pair := range pairs {
		name, raw, hasValue := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return param.ParameterSet{}, fmt.Errorf("invalid assignment %q: empty name", pair)
		}
		value := param.Text("")
		if hasValue {
			value = param.ParseValue(raw)
		}
		b.Add(name, value)
	}
	return b.Build()
}

// ParseMetrics compiles NAME=REGEX pairs on top of the default patterns.
func ParseMetrics(pairs []string) ([]metrics.Pattern, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	patterns := metrics.DefaultPatterns()
	for _, pair := range pairs {
		name, expr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid metric %q, expected NAME=REGEX", pair)
		}
		p, err := metrics.NewPattern(strings.TrimSpace(name), expr, '.')
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// SweepConfigs builds the sweeps to run: the selected sweeps of --plan, or a
// single sweep described by flags and the program after '--'.
func SweepConfigs(cmd *cobra.Command, sf *config.SweepFlags, cf *config.CommonFlags, args []string) ([]sweep.Config, error) {
	program, err := ProgramFromArgs(cmd, args)
	if err != nil {
		return nil, err
	}

	var cfgs []sweep.Config
	if sf.Plan != "" {
		if program != "" {
			return nil, fmt.Errorf("a program after '--' cannot be combined with --plan")
		}
		for _, name := range sweepDefinitionFlags {
			if cmd.Flags().Changed(name) {
				return nil, fmt.Errorf("--%s cannot be combined with --plan", name)
			}
		}
		cfgs, err = planConfigs(sf.Plan, sf.Sweeps)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("schema") {
			policy, err := table.ParseSchemaPolicy(sf.Schema)
			if err != nil {
				return nil, err
			}
			for i := range cfgs {
				cfgs[i].Policy = policy
			}
		}
		if cmd.Flags().Changed("extract-on-failure") {
			for i := range cfgs {
				cfgs[i].ExtractOnFailure = sf.ExtractOnFailure
			}
		}
	} else {
		if len(sf.Sweeps) > 0 {
			return nil, fmt.Errorf("--sweep requires --plan")
		}
		cfg, err := flagConfig(sf, program)
		if err != nil {
			return nil, err
		}
		cfgs = []sweep.Config{cfg}
	}

	if sf.Skip != 0 && len(cfgs) > 1 {
		return nil, fmt.Errorf("--skip applies to a single sweep; select one with --sweep")
	}
	for i := range cfgs {
		cfgs[i].Verbose = cf.Verbose
		cfgs[i].DryRun = cf.DryRun
		cfgs[i].Skip = sf.Skip
		if cf.Timeout > 0 {
			cfgs[i].Timeout = cf.Timeout
		}
	}
	return cfgs, nil
}

func planConfigs(path string, selected []string) ([]sweep.Config, error) {
	p, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	all, err := p.Resolve()
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return all, nil
	}

	var out []sweep.Config
	for _, name := range selected {
		i := slices.IndexFunc(all, func(c sweep.Config) bool { return c.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("plan %s has no sweep named %q", path, name)
		}
		out = append(out, all[i])
	}
	return out, nil
}

func flagConfig(sf *config.SweepFlags, program string) (sweep.Config, error) {
	if program != "" && sf.Program != "" {
		return sweep.Config{}, fmt.Errorf("give the program either with --program or after '--', not both")
	}
	if program == "" {
		program = sf.Program
	}
	if strings.TrimSpace(program) == "" {
		return sweep.Config{}, fmt.Errorf("no program: pass --plan, --program or '-- <program> [args...]'")
	}

	env, err := ParseAssignments(sf.Env)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("--env: %w", err)
	}
	opts, err := ParseAssignments(sf.Options)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("--opt: %w", err)
	}
	patterns, err := ParseMetrics(sf.Metrics)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("--metric: %w", err)
	}
	policy, err := table.ParseSchemaPolicy(sf.Schema)
	if err != nil {
		return sweep.Config{}, err
	}

	return sweep.Config{
		Name:             sf.Name,
		Program:          program,
		BasePath:         sf.BasePath,
		Env:              env,
		Options:          opts,
		Repetitions:      sf.Repetitions,
		Label:            sf.Label,
		ResultsPath:      sf.Results,
		SummaryPath:      sf.Summary,
		ExtractOnFailure: sf.ExtractOnFailure,
		Policy:           policy,
		Patterns:         patterns,
	}, nil
}
