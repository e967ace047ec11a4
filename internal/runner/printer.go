package runner

import (
	"fmt"
	"io"
	"strings"
)

// Execution describes a run about to start, for narration.
type Execution struct {
	Index       int // 1-based
	Total       int
	CommandLine string
	Dir         string
	Overlay     []string // KEY=VALUE pairs applied on top of the inherited environment
	Timeout     string
	DryRun      bool
}

// PrintPreExecution prints run details before execution
func PrintPreExecution(w io.Writer, e Execution) {
	header := fmt.Sprintf("Run %d/%d", e.Index, e.Total)
	if e.DryRun {
		header += " (DRY RUN)"
	}

	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Command: %s\n", e.CommandLine)
	if e.Dir != "" {
		fmt.Fprintf(w, "Dir:     %s\n", e.Dir)
	}
	if len(e.Overlay) > 0 {
		fmt.Fprintf(w, "Env:     %s\n", strings.Join(e.Overlay, " "))
	}
	if e.Timeout != "" {
		fmt.Fprintf(w, "Timeout: %s\n", e.Timeout)
	}
	fmt.Fprintln(w, "----------------------------------------")
	if e.DryRun {
		fmt.Fprintln(w, "[DRY RUN] Command would be executed here")
		fmt.Fprintln(w, "----------------------------------------")
	}
}

// PrintPostExecution prints execution results after command completion
func PrintPostExecution(w io.Writer, status Status, exitCode int, executionTime int64, metrics string) {
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "Status:         %s\n", status)
	fmt.Fprintf(w, "Exit Code:      %d\n", exitCode)
	fmt.Fprintf(w, "Execution Time: %d ms\n", executionTime)
	if metrics != "" {
		fmt.Fprintf(w, "Metrics:        %s\n", metrics)
	}
	fmt.Fprintln(w, "========================================")
}
