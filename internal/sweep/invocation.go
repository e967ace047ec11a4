package sweep

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zinc-sig/easysweep/internal/param"
)

// Options with a meaning for the driver itself.
var (
	OutputFileOptions = []string{"-of", "--output-file"}
	LabelOption       = "--label"
)

// Reserved result columns.
const (
	ColumnLabel     = "label"
	ColumnRep       = "rep"
	ColumnStatus    = "status"
	ColumnElapsedMS = "elapsed_ms"
	ColumnRuns      = "runs"
	ColumnSucceeded = "succeeded"
)

// RunSpec is one leaf of the sweep: a pair of combinations, a repetition and
// the invocation derived from them.
type RunSpec struct {
	Index      int // 1-based, over the whole sweep
	Env        param.Combination
	Options    param.Combination
	Repetition int // 1-based
	Program    string
	Args       []string
	Overlay    []string
	Dir        string
}

// CommandLine renders the invocation the way a shell user would type it.
func (r RunSpec) CommandLine() string {
	return CommandLine(r.Overlay, r.Program, r.Args)
}

// CommandLine joins overlay, program and args, quoting tokens that contain
// whitespace.
func CommandLine(overlay []string, program string, args []string) string {
	tokens := make([]string, 0, len(overlay)+1+len(args))
	tokens = append(tokens, overlay...)
	tokens = append(tokens, program)
	tokens = append(tokens, args...)
	for i, tok := range tokens {
		if tok == "" || strings.ContainsAny(tok, " \t\n") {
			tokens[i] = strconv.Quote(tok)
		}
	}
	return strings.Join(tokens, " ")
}

// BuildArgs returns leading followed by name and value tokens for every
// option in declaration order. A bare flag contributes only its name. Values
// are never split, so a value containing whitespace stays one token.
func BuildArgs(leading []string, opts param.Combination) []string {
	args := make([]string, 0, len(leading)+2*opts.Len())
	args = append(args, leading...)
	for _, a := range opts.Assignments() {
		args = append(args, a.Name)
		if !a.Value.IsBareFlag() {
			args = append(args, a.Value.String())
		}
	}
	return args
}

// Overlay renders env as KEY=VALUE pairs in declaration order.
func Overlay(env param.Combination) []string {
	out := make([]string, 0, env.Len())
	for _, a := range env.Assignments() {
		out = append(out, a.Name+"="+a.Value.String())
	}
	return out
}

// BuildEnv returns a copy of base with overlay applied. Base entries for an
// overlaid name are dropped; the overlay is appended in order. base itself is
// not modified.
func BuildEnv(base, overlay []string) []string {
	set := make(map[string]bool, len(overlay))
	for _, kv := range overlay {
		name, _, _ := strings.Cut(kv, "=")
		set[name] = true
	}

	env := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if set[name] {
			continue
		}
		env = append(env, kv)
	}
	return append(env, overlay...)
}

// ResolveProgram splits prefix into the program and its leading arguments.
// A relative program path containing a separator is resolved against
// basePath; bare names are left for PATH lookup.
func ResolveProgram(prefix, basePath string) (string, []string, error) {
	tokens := strings.Fields(prefix)
	if len(tokens) == 0 {
		return "", nil, fmt.Errorf("program is empty")
	}

	program := tokens[0]
	if strings.ContainsRune(program, '/') && !filepath.IsAbs(program) {
		base := basePath
		if base == "" {
			base = "."
		}
		abs, err := filepath.Abs(filepath.Join(base, program))
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve program %q: %w", program, err)
		}
		program = abs
	}
	return program, tokens[1:], nil
}

// ColumnName is the result column for an option or environment name.
func ColumnName(name string) string {
	return strings.TrimLeft(name, "-")
}

