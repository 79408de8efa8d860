package matching

import (
	"context"
	"testing"

	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/search"
)

// speedDatabase holds one motion whose poses have planar velocities
// (speed, 0).
func speedDatabase(t *testing.T, speeds ...float32) *posedb.Database {
	t.Helper()
	schema := &posedb.Schema{ID: "speed", Cardinality: 2, SampleRate: 10, SpeedChannel: 0}
	frames := make([]posedb.Frame, len(speeds))
	for i, s := range speeds {
		frames[i] = posedb.Frame{Features: []float32{s, 0}}
	}
	frames[len(frames)-1].Events = []string{"land"}

	db := posedb.NewDatabase("speed", schema)
	db.Add(&posedb.Motion{
		Name:     "run",
		Length:   float64(len(speeds)-1) / 10,
		Variants: []posedb.Variant{{Frames: frames}},
	})
	if err := posedb.Build(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func resultAt(db *posedb.Database, pose int) search.Result {
	return search.Result{
		Database:     db,
		PoseIdx:      pose,
		EventPoseIdx: search.InvalidIndex,
		AssetTime:    db.RealAssetTime(pose),
	}
}

func TestWantedPlayRate_InvalidInterval(t *testing.T) {
	for _, r := range []posedb.Interval{{Min: 2, Max: 1}, {Min: 0, Max: 1}, {Min: -1, Max: 1}} {
		if got := WantedPlayRate(PlayRateInput{PlayRate: r, Previous: 1.5}); got != 1 {
			t.Errorf("interval %v: expected 1, got %f", r, got)
		}
	}
}

func TestWantedPlayRate_Degenerate(t *testing.T) {
	in := PlayRateInput{PlayRate: posedb.Interval{Min: 1, Max: 1}, SpeedMultiplier: 2}
	if got := WantedPlayRate(in); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	in.SpeedMultiplier = 0
	if got := WantedPlayRate(in); got != 1 {
		t.Errorf("expected 1 without multiplier, got %f", got)
	}
}

func TestWantedPlayRate_SpeedRatioClamped(t *testing.T) {
	db := speedDatabase(t, 0, 1, 2, 4)
	interval := posedb.Interval{Min: 0.5, Max: 2}

	tests := []struct {
		pose       int
		querySpeed float32
		want       float64
	}{
		{2, 2, 1},
		{2, 3, 1.5},
		{1, 10, 2},
		{3, 0.4, 0.5},
		{0, 3, 1}, // standing pose
	}
	for _, tt := range tests {
		got := WantedPlayRate(PlayRateInput{
			Result:   resultAt(db, tt.pose),
			Query:    []float32{tt.querySpeed, 0},
			PlayRate: interval,
			Previous: 1,
		})
		if got != tt.want {
			t.Errorf("pose %d query %f: expected %f, got %f", tt.pose, tt.querySpeed, tt.want, got)
		}
		if got < interval.Min || got > interval.Max {
			t.Errorf("rate %f outside %v", got, interval)
		}
	}

	// without a query the previous rate is kept, clamped
	got := WantedPlayRate(PlayRateInput{Result: resultAt(db, 1), PlayRate: interval, Previous: 3})
	if got != 2 {
		t.Errorf("expected clamped previous rate 2, got %f", got)
	}
}

func TestWantedPlayRate_Event(t *testing.T) {
	db := speedDatabase(t, 1, 1, 1, 1, 1)
	ev := &search.Event{Tag: "land", TimeToEvent: 0.2}

	// the event pose is 0.4s away and the caller wants it in 0.2s
	r := resultAt(db, 0)
	r.EventPoseIdx = 4
	got := WantedPlayRate(PlayRateInput{
		Result:   r,
		PlayRate: posedb.Interval{Min: 0.8, Max: 1.2},
		Event:    ev,
		Previous: 1,
	})
	if got != 2 {
		t.Errorf("expected 2 (outside the interval), got %f", got)
	}

	// event reached: keep the previous rate
	r = resultAt(db, 4)
	r.EventPoseIdx = 4
	got = WantedPlayRate(PlayRateInput{Result: r, Event: ev, Previous: 1.7, PlayRate: posedb.Interval{Min: 1, Max: 1}})
	if got != 1.7 {
		t.Errorf("expected previous rate 1.7, got %f", got)
	}

	// another tag falls through to the interval
	r.EventPoseIdx = 4
	got = WantedPlayRate(PlayRateInput{
		Result:   r,
		Event:    &search.Event{Tag: "jump", TimeToEvent: 1},
		PlayRate: posedb.Interval{Min: 1, Max: 1},
	})
	if got != 1 {
		t.Errorf("expected fixed rate 1 for another tag, got %f", got)
	}
}
