package cli

import (
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/build"
	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/search"
	"github.com/khanglvm/posematch/internal/sim"
	"github.com/khanglvm/posematch/internal/telemetry"
	"github.com/khanglvm/posematch/internal/trace"
)

// simulateOptions holds the 'simulate' flags.
type simulateOptions struct {
	deltaTime      float64
	responsiveness float64
	lazy           bool
	trace          bool
	traceDB        string
	candidates     bool
	metrics        bool
	verbose        bool
}

// NewSimulateCmd creates the 'simulate' command.
func NewSimulateCmd() *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate [name|dir]...",
		Short: "Run the matcher against a scripted locomotion trajectory",
		Long: `Drive the matcher with a character that idles, walks, runs, turns,
strafes and stops, and report which motions were selected.

Databases default to the enabled configured ones. When none is configured
a generated locomotion database is used. With --lazy indexes are built in
the background while the simulation runs, so early ticks hold the pose.

--trace records every tick to the SQLite trace database; see
'posematch trace export'.`,
		Example: `  posematch simulate
  posematch simulate locomotion --verbose
  posematch simulate --trace --candidates
  posematch simulate --lazy --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, args, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.deltaTime, "dt", 1.0/30, "Tick length in seconds")
	cmd.Flags().Float64Var(&opts.responsiveness, "responsiveness", 8, "How fast the character follows the script (1/s, 0 snaps)")
	cmd.Flags().BoolVar(&opts.lazy, "lazy", false, "Build indexes in the background during the run")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Record ticks to the trace database")
	cmd.Flags().StringVar(&opts.traceDB, "trace-db", "", "Trace database path (default: config or ~/.posematch/trace.db)")
	cmd.Flags().BoolVar(&opts.candidates, "candidates", false, "Also record evaluated candidates")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print collected metrics")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print every tick whose selection changed")
	return cmd
}

func runSimulate(cmd *cobra.Command, refs []string, opts simulateOptions) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	s, err := newSession(cmd, refs)
	if err != nil {
		return err
	}

	svc := build.NewService(s.Workers())
	defer svc.Close()
	if !opts.lazy {
		if err := svc.BuildAll(ctx, s.DBs); err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
	}

	var hooks search.Hooks
	var metrics *telemetry.Metrics
	if opts.metrics {
		metrics = telemetry.NewMetrics()
		hooks = append(hooks, metrics)
	}

	var recorder *trace.Recorder
	if opts.trace || s.Trace().Enabled {
		store, err := openTraceStore(s.cfg, s.cfgPath, opts.traceDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if keep := retention(s.cfg); keep > 0 {
			if err := store.Cleanup(keep); err != nil {
				log.Printf("Warning: trace cleanup failed: %v", err)
			}
		}
		recorder = trace.NewRecorder(store, opts.candidates || s.Trace().Candidates)
		hooks = append(hooks, recorder)
	}

	var matcherOpts []matching.Option
	if len(hooks) > 0 {
		matcherOpts = append(matcherOpts, matching.WithTraceHook(hooks))
	}

	driver := &sim.Driver{
		Matcher:        matching.NewMatcher(svc, matcherOpts...),
		Assets:         s.Assets(),
		Params:         s.Params,
		DeltaTime:      opts.deltaTime,
		Responsiveness: opts.responsiveness,
	}

	sc := sim.Locomotion()
	last := ""
	summary, err := driver.Run(ctx, sc, func(t sim.Tick) {
		if metrics != nil {
			metrics.ObserveTick(t.Elapsed)
		}
		if !opts.verbose {
			return
		}
		name := selectionName(t.Output.Result)
		if name != last {
			fmt.Fprintf(out, "%6.2fs  segment %d  %-24s cost %s  rate %.2f\n",
				t.Time, t.Segment, name, formatCost(t.Output.Result), t.Output.WantedPlayRate)
			last = name
		}
	})
	if recorder != nil {
		recorder.Stop()
	}
	if err != nil {
		return err
	}

	if s.Synthetic {
		fmt.Fprintln(out, "Using generated locomotion database (no databases configured)")
	}
	printSummary(out, summary)
	if recorder != nil {
		fmt.Fprintf(out, "\nTrace session: %s", recorder.SessionID())
		if n := recorder.Dropped(); n > 0 {
			fmt.Fprintf(out, " (%d ticks dropped)", n)
		}
		fmt.Fprintln(out)
	}
	if metrics != nil {
		text, err := metrics.Summary()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nMetrics:\n%s\n", text)
	}
	return nil
}

// selectionName names the motion a result plays.
func selectionName(r search.Result) string {
	if !r.IsValid() {
		return "(hold)"
	}
	if m := r.Motion(); m != nil {
		if r.Mirrored {
			return m.Name + " (mirrored)"
		}
		return m.Name
	}
	return fmt.Sprintf("pose %d", r.PoseIdx)
}

func formatCost(r search.Result) string {
	if !r.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%.4f", r.Cost.Total())
}

func printSummary(out io.Writer, s sim.Summary) {
	fmt.Fprintf(out, "Scenario:     %s\n", s.Scenario)
	fmt.Fprintf(out, "Ticks:        %d\n", s.Ticks)
	fmt.Fprintf(out, "Searches:     %d (continuing %d)\n", s.Searches, s.ContinuingSearches)
	fmt.Fprintf(out, "Pose jumps:   %d\n", s.Jumps)
	fmt.Fprintf(out, "Held ticks:   %d (building %d)\n", s.Invalid, s.AsyncBuilds)
	if s.Ticks > 0 {
		fmt.Fprintf(out, "Mean update:  %v\n", (s.Elapsed / time.Duration(s.Ticks)).Round(time.Microsecond/10))
	}

	names := make([]string, 0, len(s.Selections))
	for name := range s.Selections {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.Selections[names[i]], s.Selections[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	if len(names) > 0 {
		fmt.Fprintln(out, "\nSelections:")
		for _, name := range names {
			fmt.Fprintf(out, "  %-24s %5d ticks\n", name, s.Selections[name])
		}
	}
}
