// Package metrics extracts named numeric performance indicators from the
// textual output of a benchmark run.
package metrics

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Pattern recognises one metric. Expr must contain exactly one capture
// group holding the number.
type Pattern struct {
	Name string
	Expr *regexp.Regexp
	// DecimalSeparator is the separator used by the metric's unit; '.' when zero.
	DecimalSeparator rune
}

// Metrics maps metric names to values.
type Metrics map[string]decimal.Decimal

// String renders the metrics sorted by name.
func (m Metrics) String() string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + m[name].String()
	}
	return strings.Join(parts, " ")
}

const number = `([-+]?[0-9][0-9.,]*(?:[eE][-+]?[0-9]+)?)`

// DefaultPatterns are the indicators printed by easypap-style kernels.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Name: "gcells", Expr: regexp.MustCompile(number + `\s*Gcell/s`)},
		{Name: "time_s", Expr: regexp.MustCompile(`(?i)time:\s*` + number + `\s*s\b`)},
		{Name: "time_ms", Expr: regexp.MustCompile(number + `\s*ms\b`)},
		{Name: "iterations", Expr: regexp.MustCompile(`(?i)completed after\s+` + number + `\s+iterations?`)},
	}
}

// NewPattern compiles expr and checks that it has exactly one capture group.
func NewPattern(name, expr string, separator rune) (Pattern, error) {
	if name == "" {
		return Pattern{}, fmt.Errorf("metric pattern has no name")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("metric %q: invalid pattern: %w", name, err)
	}
	if re.NumSubexp() != 1 {
		return Pattern{}, fmt.Errorf("metric %q: pattern must have exactly one capture group, has %d", name, re.NumSubexp())
	}
	if separator != 0 && separator != '.' && separator != ',' {
		return Pattern{}, fmt.Errorf("metric %q: unsupported decimal separator %q", name, separator)
	}
	return Pattern{Name: name, Expr: re, DecimalSeparator: separator}, nil
}

// Extractor applies a fixed list of patterns to run output.
type Extractor struct {
	patterns []Pattern
}

// NewExtractor returns an extractor for patterns. With no patterns it uses
// DefaultPatterns. Later patterns with the same name replace earlier ones.
func NewExtractor(patterns ...Pattern) *Extractor {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	e := &Extractor{}
	for _, p := range patterns {
		replaced := false
		for i := range e.patterns {
			if e.patterns[i].Name == p.Name {
				e.patterns[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			e.patterns = append(e.patterns, p)
		}
	}
	return e
}

// Names returns metric names in pattern declaration order. Result tables use
// this order for metric columns.
func (e *Extractor) Names() []string {
	names := make([]string, len(e.patterns))
	for i, p := range e.patterns {
		names[i] = p.Name
	}
	return names
}

// Extract returns every metric recognised in output. When a pattern matches
// several times the last match wins, so a final report overrides progress
// lines. A malformed number leaves the metric missing.
func (e *Extractor) Extract(output string) Metrics {
	found := make(Metrics)
	for _, p := range e.patterns {
		matches := p.Expr.FindAllStringSubmatch(output, -1)
		if len(matches) == 0 {
			continue
		}
		if v, ok := parseNumber(matches[len(matches)-1][1], p.DecimalSeparator); ok {
			found[p.Name] = v
		}
	}
	return found
}

func parseNumber(text string, separator rune) (decimal.Decimal, bool) {
	if separator == ',' {
		if strings.Contains(text, ".") {
			return decimal.Zero, false
		}
		text = strings.Replace(text, ",", ".", 1)
	} else if strings.Contains(text, ",") {
		return decimal.Zero, false
	}

	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
