package benchmark

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/sim"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestSummarize(t *testing.T) {
	var samples []time.Duration
	for i := 100; i >= 1; i-- {
		samples = append(samples, ms(i))
	}

	r := Summarize(samples, ms(90))
	if r.Ticks != 100 {
		t.Errorf("expected 100 ticks, got %d", r.Ticks)
	}
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"p50", r.P50, ms(50)},
		{"p95", r.P95, ms(95)},
		{"p99", r.P99, ms(99)},
		{"max", r.Max, ms(100)},
		{"mean", r.Mean, 50500 * time.Microsecond},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if r.OverBudget != 10 {
		t.Errorf("expected 10 ticks over budget, got %d", r.OverBudget)
	}
	if r.OverBudgetPercent != 10 {
		t.Errorf("expected 10%% over budget, got %.1f", r.OverBudgetPercent)
	}
	if r.WithinBudget() {
		t.Error("p99 of 99ms should not fit a 90ms budget")
	}
}

func TestSummarizeEdgeCases(t *testing.T) {
	r := Summarize(nil, ms(1))
	if r.Ticks != 0 || r.Max != 0 || !r.WithinBudget() {
		t.Errorf("empty run should report nothing: %+v", r)
	}

	r = Summarize([]time.Duration{ms(3)}, ms(5))
	if r.P50 != ms(3) || r.P99 != ms(3) || r.OverBudget != 0 {
		t.Errorf("single sample should be every percentile: %+v", r)
	}
}

func TestRun(t *testing.T) {
	db, err := sim.Generate(sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := posedb.Build(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	d := &sim.Driver{
		Matcher: matching.NewMatcher(nil),
		Assets:  []posedb.Asset{db},
		Params:  matching.DefaultParams(),
	}
	sc := sim.Scenario{Name: "walk", Segments: []sim.Segment{{Duration: 1, Velocity: sim.Locomotion().Segments[1].Velocity}}}

	r, err := Run(context.Background(), d, sc, Options{Iterations: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if r.Ticks != 90 {
		t.Errorf("expected 90 ticks, got %d", r.Ticks)
	}
	if r.Iterations != 3 || r.Scenario != "walk" || r.Budget != DefaultBudget {
		t.Errorf("unexpected run metadata: %+v", r)
	}
	if r.Searches == 0 {
		t.Error("expected searches")
	}
	if r.Max < r.P99 || r.P99 < r.P50 {
		t.Errorf("percentiles out of order: %+v", r)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &sim.Driver{Matcher: matching.NewMatcher(nil)}
	if _, err := Run(ctx, d, sim.Locomotion(), Options{}); err == nil {
		t.Error("expected error from cancelled run")
	}
}

func TestFormatResult(t *testing.T) {
	r := Summarize([]time.Duration{ms(1), ms(2)}, ms(5))
	r.Scenario = "locomotion"
	r.Iterations = 1

	out := FormatResult(r)
	for _, want := range []string{"TICK LATENCY BENCHMARK", "locomotion", "Verdict:     OK", "Over budget: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("report should contain %q:\n%s", want, out)
		}
	}
}
