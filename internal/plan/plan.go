// Package plan loads sweep plans: YAML files describing one or more sweeps
// that run in order, where later sweeps may derive their parameter sets from
// earlier ones.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zinc-sig/easysweep/internal/metrics"
	"github.com/zinc-sig/easysweep/internal/param"
	"github.com/zinc-sig/easysweep/internal/sweep"
	"github.com/zinc-sig/easysweep/internal/table"
)

// Plan is a decoded plan file.
type Plan struct {
	Defaults `yaml:",inline"`

	Schema           string          `yaml:"schema,omitempty"`
	ExtractOnFailure bool            `yaml:"extract_on_failure,omitempty"`
	Metrics          []MetricPattern `yaml:"metrics,omitempty"`
	Sweeps           []Sweep         `yaml:"sweeps"`

	// dir is the directory of the plan file; relative paths are resolved
	// against it.
	dir string
}

// Defaults are the settings a sweep inherits when it does not set them.
type Defaults struct {
	Program     string `yaml:"program,omitempty"`
	BasePath    string `yaml:"base_path,omitempty"`
	Repetitions int    `yaml:"repetitions,omitempty"`
	Label       string `yaml:"label,omitempty"`
	Results     string `yaml:"results,omitempty"`
	Summary     string `yaml:"summary,omitempty"`
	Timeout     string `yaml:"timeout,omitempty"`
}

// Sweep is one entry of the sweeps list.
type Sweep struct {
	Defaults `yaml:",inline"`

	Name    string   `yaml:"name,omitempty"`
	Extends string   `yaml:"extends,omitempty"`
	Env     ParamMap `yaml:"env,omitempty"`
	Options ParamMap `yaml:"options,omitempty"`
	Unset   Unset    `yaml:"unset,omitempty"`
}

// Unset lists inherited parameters to drop.
type Unset struct {
	Env     []string `yaml:"env,omitempty"`
	Options []string `yaml:"options,omitempty"`
}

// MetricPattern declares a metric recognised in run output.
type MetricPattern struct {
	Name             string `yaml:"name"`
	Pattern          string `yaml:"pattern"`
	DecimalSeparator string `yaml:"decimal_separator,omitempty"`
}

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// Parse decodes a plan document. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("plan is empty")
		}
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if len(p.Sweeps) == 0 {
		return nil, errors.New("plan.sweeps must be non-empty")
	}
	if _, err := p.Resolve(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Patterns compiles the plan's metric patterns.
func (p *Plan) Patterns() ([]metrics.Pattern, error) {
	if len(p.Metrics) == 0 {
		return nil, nil
	}
	// Declared patterns extend the defaults; a pattern with a default name
	// replaces it.
	patterns := metrics.DefaultPatterns()
	for i, m := range p.Metrics {
		var sep rune
		switch m.DecimalSeparator {
		case "", ".":
			sep = '.'
		case ",":
			sep = ','
		default:
			return nil, fmt.Errorf("plan.metrics[%d].decimal_separator must be \".\" or \",\"", i)
		}
		pat, err := metrics.NewPattern(m.Name, m.Pattern, sep)
		if err != nil {
			return nil, fmt.Errorf("plan.metrics[%d]: %w", i, err)
		}
		patterns = append(patterns, pat)
	}
	return patterns, nil
}

// Resolve turns every sweep into a sweep configuration. A sweep that
// extends another starts from that sweep's resolved parameter sets and
// settings; the earlier sweep is left unchanged.
func (p *Plan) Resolve() ([]sweep.Config, error) {
	policy, err := table.ParseSchemaPolicy(p.Schema)
	if err != nil {
		return nil, fmt.Errorf("plan.schema: %w", err)
	}
	patterns, err := p.Patterns()
	if err != nil {
		return nil, err
	}

	resolved := make([]sweep.Config, 0, len(p.Sweeps))
	byName := make(map[string]int, len(p.Sweeps))

	for i, s := range p.Sweeps {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = fmt.Sprintf("sweep-%d", i+1)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("plan.sweeps[%d].name must be unique (duplicate %q)", i, name)
		}

		cfg := sweep.Config{
			Program:          p.Program,
			BasePath:         p.resolvePath(p.BasePath),
			Repetitions:      p.Repetitions,
			Label:            p.Label,
			ResultsPath:      p.resolvePath(p.Results),
			SummaryPath:      p.resolvePath(p.Summary),
			ExtractOnFailure: p.ExtractOnFailure,
			Policy:           policy,
			Patterns:         patterns,
		}
		timeout := p.Timeout

		envBuilder, optBuilder := param.NewBuilder(), param.NewBuilder()
		if s.Extends != "" {
			j, ok := byName[s.Extends]
			if !ok {
				return nil, fmt.Errorf("plan.sweeps[%d].extends: no earlier sweep named %q", i, s.Extends)
			}
			cfg = resolved[j]
			timeout = ""
			envBuilder = param.From(cfg.Env)
			optBuilder = param.From(cfg.Options)
		}
		cfg.Name = name

		for _, n := range s.Unset.Env {
			envBuilder.Unset(n)
		}
		for _, n := range s.Unset.Options {
			optBuilder.Unset(n)
		}
		for _, prm := range s.Env.Params {
			envBuilder.Set(prm.Name, prm.Candidates...)
		}
		for _, prm := range s.Options.Params {
			optBuilder.Set(prm.Name, prm.Candidates...)
		}
		if cfg.Env, err = envBuilder.Build(); err != nil {
			return nil, fmt.Errorf("plan.sweeps[%d].env: %w", i, err)
		}
		if cfg.Options, err = optBuilder.Build(); err != nil {
			return nil, fmt.Errorf("plan.sweeps[%d].options: %w", i, err)
		}

		overrideString(&cfg.Program, s.Program)
		overrideString(&cfg.BasePath, p.resolvePath(s.BasePath))
		overrideString(&cfg.Label, s.Label)
		overrideString(&cfg.ResultsPath, p.resolvePath(s.Results))
		overrideString(&cfg.SummaryPath, p.resolvePath(s.Summary))
		if s.Repetitions != 0 {
			cfg.Repetitions = s.Repetitions
		}
		if s.Repetitions < 0 {
			return nil, fmt.Errorf("plan.sweeps[%d].repetitions must be positive", i)
		}
		overrideString(&timeout, s.Timeout)
		if timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("plan.sweeps[%d].timeout: invalid duration %q", i, timeout)
			}
			cfg.Timeout = d
		}

		if strings.TrimSpace(cfg.Program) == "" {
			return nil, fmt.Errorf("plan.sweeps[%d].program is required", i)
		}

		byName[name] = len(resolved)
		resolved = append(resolved, cfg)
	}
	return resolved, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (p *Plan) resolvePath(path string) string {
	if path == "" || p.dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.dir, path)
}
