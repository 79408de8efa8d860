/*
Package benchmark measures matcher tick latency against a frame budget.

A run plays a sim scenario several times and collects the wall time of
every Update call. The report gives percentiles and how many ticks went
over budget, which is what matters for a game frame: a tick that blows
the budget shows up as a hitch even when the mean is low.
*/
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khanglvm/posematch/internal/sim"
)

// DefaultBudget is the share of a 60 Hz frame a tick may take.
const DefaultBudget = 500 * time.Microsecond

// Options configures a benchmark run.
type Options struct {
	// Iterations is how many times the scenario is played.
	Iterations int
	Budget     time.Duration
}

// Result contains the latency distribution of a run.
type Result struct {
	Scenario   string        `json:"scenario"`
	Iterations int           `json:"iterations"`
	Ticks      int           `json:"ticks"`
	Searches   int           `json:"searches"`
	Budget     time.Duration `json:"budget"`

	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	P99  time.Duration `json:"p99"`
	Max  time.Duration `json:"max"`

	OverBudget        int     `json:"overBudget"`
	OverBudgetPercent float64 `json:"overBudgetPercent"`
}

// WithinBudget reports whether the 99th percentile fits the budget.
func (r *Result) WithinBudget() bool { return r.P99 <= r.Budget }

// Run plays sc opts.Iterations times on d and measures every tick.
func Run(ctx context.Context, d *sim.Driver, sc sim.Scenario, opts Options) (*Result, error) {
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}

	var samples []time.Duration
	searches := 0
	for i := 0; i < opts.Iterations; i++ {
		sum, err := d.Run(ctx, sc, func(t sim.Tick) {
			samples = append(samples, t.Elapsed)
		})
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		searches += sum.Searches
	}

	r := Summarize(samples, opts.Budget)
	r.Scenario = sc.Name
	r.Iterations = opts.Iterations
	r.Searches = searches
	return r, nil
}

// Summarize computes the distribution of samples.
func Summarize(samples []time.Duration, budget time.Duration) *Result {
	r := &Result{Ticks: len(samples), Budget: budget}
	if len(samples) == 0 {
		return r
	}

	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, s := range sorted {
		total += s
		if s > budget {
			r.OverBudget++
		}
	}
	r.Mean = total / time.Duration(len(sorted))
	r.P50 = percentile(sorted, 50)
	r.P95 = percentile(sorted, 95)
	r.P99 = percentile(sorted, 99)
	r.Max = sorted[len(sorted)-1]
	r.OverBudgetPercent = float64(r.OverBudget) / float64(len(sorted)) * 100
	return r
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// FormatResult formats the benchmark result for display.
func FormatResult(r *Result) string {
	var sb strings.Builder

	row := func(format string, args ...any) {
		sb.WriteString(fmt.Sprintf("║  %-60s║\n", fmt.Sprintf(format, args...)))
	}
	sep := "╠══════════════════════════════════════════════════════════════╣\n"

	sb.WriteString("╔══════════════════════════════════════════════════════════════╗\n")
	sb.WriteString("║                TICK LATENCY BENCHMARK RESULTS                ║\n")
	sb.WriteString(sep)
	row("Scenario:   %s", r.Scenario)
	row("Iterations: %d", r.Iterations)
	row("Ticks:      %d (%d searched)", r.Ticks, r.Searches)
	sb.WriteString(sep)
	row("Mean: %-10v P50: %v", r.Mean, r.P50)
	row("P95:  %-10v P99: %v", r.P95, r.P99)
	row("Max:  %v", r.Max)
	sb.WriteString(sep)
	row("Budget:      %v", r.Budget)
	row("Over budget: %d (%.1f%%)", r.OverBudget, r.OverBudgetPercent)
	if r.WithinBudget() {
		row("Verdict:     OK")
	} else {
		row("Verdict:     P99 over budget")
	}
	sb.WriteString("╚══════════════════════════════════════════════════════════════╝\n")

	return sb.String()
}
