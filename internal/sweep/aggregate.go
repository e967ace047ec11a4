package sweep

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/zinc-sig/easysweep/internal/metrics"
	"github.com/zinc-sig/easysweep/internal/param"
	"github.com/zinc-sig/easysweep/internal/table"
)

// aggregate accumulates the repetitions of one combination.
type aggregate struct {
	names     []string
	all       bool
	runs      int
	succeeded int
	sums      map[string]decimal.Decimal
	counts    map[string]int
}

func newAggregate(names []string, allMetrics bool) *aggregate {
	return &aggregate{
		names:  names,
		all:    allMetrics,
		sums:   make(map[string]decimal.Decimal),
		counts: make(map[string]int),
	}
}

// add records a run. Only successful runs contribute to the means.
func (a *aggregate) add(success bool, found metrics.Metrics) {
	a.runs++
	if !success {
		return
	}
	a.succeeded++
	for name, v := range found {
		a.sums[name] = a.sums[name].Add(v)
		a.counts[name]++
	}
}

// Mean returns the mean of metric name over the successful runs that
// reported it.
func (a *aggregate) Mean(name string) (decimal.Decimal, bool) {
	n := a.counts[name]
	if n == 0 {
		return decimal.Zero, false
	}
	return a.sums[name].Div(decimal.NewFromInt(int64(n))), true
}

// row lays out [env][options] label runs succeeded [means].
func (a *aggregate) row(env, opts param.Combination, label string) table.Row {
	row := resultRow(env, opts, label, nil, nil, false)
	row = append(row,
		table.Field{Name: ColumnRuns, Value: strconv.Itoa(a.runs)},
		table.Field{Name: ColumnSucceeded, Value: strconv.Itoa(a.succeeded)},
	)
	for _, name := range a.names {
		if mean, ok := a.Mean(name); ok {
			row = append(row, table.Field{Name: name, Value: mean.String()})
		} else if a.all {
			row = append(row, table.Field{Name: name})
		}
	}
	return row
}
