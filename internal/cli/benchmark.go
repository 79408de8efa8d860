package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/benchmark"
	"github.com/khanglvm/posematch/internal/build"
	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/sim"
)

// NewBenchmarkCmd creates the 'benchmark' command for tick latency testing.
func NewBenchmarkCmd() *cobra.Command {
	var (
		iterations int
		budget     time.Duration
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "benchmark [name|dir]...",
		Short: "Measure matcher tick latency against a frame budget",
		Long: `Play the locomotion scenario several times against fully built
databases and report the latency distribution of matcher updates.

The verdict compares the 99th percentile with the budget. Databases
default to the enabled configured ones; a generated locomotion database
is used when none is configured.`,
		Example: `  # Benchmark the configured databases
  posematch benchmark

  # Tighter budget, more samples
  posematch benchmark --budget 200us --iterations 20

  # Output as JSON
  posematch benchmark --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd, args, iterations, budget, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 5, "Times the scenario is played")
	cmd.Flags().DurationVarP(&budget, "budget", "b", benchmark.DefaultBudget, "Per-tick latency budget")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func runBenchmark(cmd *cobra.Command, refs []string, iterations int, budget time.Duration, jsonOutput bool) error {
	ctx := cmd.Context()

	s, err := newSession(cmd, refs)
	if err != nil {
		return err
	}

	svc := build.NewService(s.Workers())
	defer svc.Close()
	if err := svc.BuildAll(ctx, s.DBs); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	driver := &sim.Driver{
		Matcher:        matching.NewMatcher(svc),
		Assets:         s.Assets(),
		Params:         s.Params,
		Responsiveness: 8,
	}
	result, err := benchmark.Run(ctx, driver, sim.Locomotion(), benchmark.Options{
		Iterations: iterations,
		Budget:     budget,
	})
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprint(out, benchmark.FormatResult(result))
	return nil
}
