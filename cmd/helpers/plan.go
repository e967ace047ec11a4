package helpers

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/zinc-sig/easysweep/internal/sweep"
)

// PlanLine describes one prepared sweep.
type PlanLine struct {
	Name         string
	Combinations int
	Repetitions  int
	Runs         int
	Results      string
}

// PreparePlan validates every sweep the way a run would, without executing
// anything.
func PreparePlan(cfgs []sweep.Config) ([]PlanLine, error) {
	lines := make([]PlanLine, 0, len(cfgs))
	for i, cfg := range cfgs {
		p, err := sweep.Prepare(cfg)
		if err != nil {
			name := cfg.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return nil, fmt.Errorf("sweep %s: %w", name, err)
		}
		reps := cfg.Repetitions
		if reps == 0 {
			reps = 1
		}
		lines = append(lines, PlanLine{
			Name:         cfg.Name,
			Combinations: p.Combinations(),
			Repetitions:  reps,
			Runs:         p.Total(),
			Results:      p.ResultsPath(),
		})
	}
	return lines, nil
}

// PrintPlan prints one line per sweep and the total number of runs.
func PrintPlan(w io.Writer, lines []PlanLine) error {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Sweep Plan")
	fmt.Fprintln(w, "========================================")

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SWEEP\tCOMBINATIONS\tREPETITIONS\tRUNS\tRESULTS")
	total := 0
	for _, l := range lines {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", l.Name, l.Combinations, l.Repetitions, l.Runs, l.Results)
		total += l.Runs
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "Total runs:     %d\n", total)
	return nil
}
