package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/search"
)

func validResult() search.Result {
	return search.Result{
		Database:     posedb.NewDatabase("loco", nil),
		PoseIdx:      3,
		EventPoseIdx: search.InvalidIndex,
		Cost:         search.Cost{Dissimilarity: 0.5},
	}
}

func TestMetrics_OnTick(t *testing.T) {
	m := NewMetrics()

	m.OnTick(search.TickTrace{
		Result:         validResult(),
		Searched:       true,
		Jumped:         true,
		QueryBuilds:    1,
		QueryCacheHits: 1,
		Candidates:     make([]search.Candidate, 12),
	})
	held := validResult()
	held.IsContinuingPose = true
	m.OnTick(search.TickTrace{Result: held})
	m.OnTick(search.TickTrace{Result: search.InvalidResult(), AsyncBuildInProgress: true})

	if got := testutil.ToFloat64(m.ticks.WithLabelValues("searched")); got != 1 {
		t.Errorf("expected 1 searched tick, got %f", got)
	}
	if got := testutil.ToFloat64(m.ticks.WithLabelValues("held")); got != 1 {
		t.Errorf("expected 1 held tick, got %f", got)
	}
	if got := testutil.ToFloat64(m.ticks.WithLabelValues("building")); got != 1 {
		t.Errorf("expected 1 building tick, got %f", got)
	}
	if got := testutil.ToFloat64(m.jumps); got != 1 {
		t.Errorf("expected 1 jump, got %f", got)
	}
	if got := testutil.ToFloat64(m.selections.WithLabelValues("loco", "true")); got != 1 {
		t.Errorf("expected 1 continuing selection, got %f", got)
	}
	if got := testutil.ToFloat64(m.queryHits); got != 1 {
		t.Errorf("expected 1 query cache hit, got %f", got)
	}
}

func TestMetrics_Summary(t *testing.T) {
	m := NewMetrics()
	m.OnTick(search.TickTrace{Result: validResult(), Searched: true, QueryBuilds: 1})
	m.ObserveTick(250 * time.Microsecond)

	summary, err := m.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	for _, want := range []string{
		`posematch_ticks_total{outcome="searched"} 1`,
		`posematch_query_builds_total 1`,
		`posematch_tick_duration_seconds_count 1`,
		`posematch_selections_total{continuing="false",database="loco"} 1`,
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
