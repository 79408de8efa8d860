/*
Package telemetry exposes matcher activity as Prometheus metrics.

Metrics implements search.TraceHook. Each instance owns its registry so
several matchers, or tests, never collide on metric names.
*/
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/khanglvm/posematch/internal/search"
)

// Metrics collects per-tick counters and distributions.
type Metrics struct {
	registry *prometheus.Registry

	ticks        *prometheus.CounterVec
	selections   *prometheus.CounterVec
	jumps        prometheus.Counter
	candidates   prometheus.Histogram
	bestCost     prometheus.Histogram
	queryBuilds  prometheus.Counter
	queryHits    prometheus.Counter
	tickDuration prometheus.Histogram
}

// NewMetrics creates the metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "posematch_ticks_total",
			Help: "Matcher ticks by outcome",
		}, []string{"outcome"}),
		selections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "posematch_selections_total",
			Help: "Selected poses by database",
		}, []string{"database", "continuing"}),
		jumps: f.NewCounter(prometheus.CounterOpts{
			Name: "posematch_pose_jumps_total",
			Help: "Ticks that jumped away from the continuing pose",
		}),
		candidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "posematch_candidates_per_tick",
			Help:    "Poses evaluated per searching tick",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		}),
		bestCost: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "posematch_best_cost",
			Help:    "Total cost of the selected pose",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 50},
		}),
		queryBuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "posematch_query_builds_total",
			Help: "Query vectors built",
		}),
		queryHits: f.NewCounter(prometheus.CounterOpts{
			Name: "posematch_query_cache_hits_total",
			Help: "Query vectors reused from the per-tick cache",
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "posematch_tick_duration_seconds",
			Help:    "Wall time of one matcher update",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// OnTick implements search.TraceHook.
func (m *Metrics) OnTick(tr search.TickTrace) {
	outcome := "held"
	switch {
	case tr.AsyncBuildInProgress && !tr.Result.IsValid():
		outcome = "building"
	case !tr.Result.IsValid():
		outcome = "invalid"
	case tr.Searched:
		outcome = "searched"
	}
	m.ticks.WithLabelValues(outcome).Inc()

	if tr.Result.IsValid() {
		m.selections.WithLabelValues(tr.Result.Database.Name, fmt.Sprint(tr.Result.IsContinuingPose)).Inc()
		m.bestCost.Observe(float64(tr.Result.Cost.Total()))
	}
	if tr.Jumped {
		m.jumps.Inc()
	}
	if tr.Searched {
		m.candidates.Observe(float64(len(tr.Candidates)))
	}
	m.queryBuilds.Add(float64(tr.QueryBuilds))
	m.queryHits.Add(float64(tr.QueryCacheHits))
}

// ObserveTick records the duration of one update.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// Summary renders every metric as "name{labels} value" lines, sorted.
// Histograms are reported as their sample count and sum.
func (m *Metrics) Summary() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			name := mf.GetName() + labelString(metric.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s %g", name, metric.GetCounter().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count %d", name, h.GetSampleCount()),
					fmt.Sprintf("%s_sum %g", name, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func labelString(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
