package sim

import (
	"context"
	"math"
	"testing"

	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/trajectory"
)

func TestGenerateLocomotion(t *testing.T) {
	db, err := Generate(Options{Name: "loco"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if db.Name != "loco" {
		t.Errorf("expected name loco, got %s", db.Name)
	}
	if len(db.Motions) != len(LocomotionSpecs()) {
		t.Fatalf("expected %d motions, got %d", len(LocomotionSpecs()), len(db.Motions))
	}
	if db.Schema.Cardinality != len(DefaultOffsets)*4 {
		t.Errorf("unexpected cardinality %d", db.Schema.Cardinality)
	}

	tests := []struct {
		name     string
		variants int
		frames   int
	}{
		{"idle", 1, 60},
		{"walk_forward", 1, 36},
		{"walk_turn_left", 2, 46},
		{"walk_start", 1, 25},
		{"strafe", 2, 30},
	}
	for _, tt := range tests {
		m := db.MotionByName(tt.name)
		if m == nil {
			t.Errorf("motion %s missing", tt.name)
			continue
		}
		if len(m.Variants) != tt.variants {
			t.Errorf("%s: expected %d variants, got %d", tt.name, tt.variants, len(m.Variants))
		}
		if n := len(m.Variants[0].Frames); n != tt.frames {
			t.Errorf("%s: expected %d frames, got %d", tt.name, tt.frames, n)
		}
	}

	if err := posedb.Build(context.Background(), db); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	idx := db.Index()
	if len(idx.Events["stop"]) != 1 || len(idx.Events["foot_plant"]) != 1 {
		t.Errorf("unexpected events: %v", idx.Events)
	}
	if idx.MinCostAddend != 0 {
		t.Errorf("expected min cost addend 0, got %g", idx.MinCostAddend)
	}
}

func TestGenerateFeatures(t *testing.T) {
	spec := MotionSpec{
		Name:    "walk",
		Length:  1,
		Looping: true,
		Profile: Constant(trajectory.Point{Z: 1.5}),
	}
	db, err := Generate(Options{Offsets: []float64{-0.5, 0, 0.5}, SampleRate: 10}, spec)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	f := db.Motions[0].Variants[0].Frames[3].Features
	want := []float32{0, -0.75, 0, 1.5, 0, 0, 0, 1.5, 0, 0.75, 0, 1.5}
	if len(f) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(f))
	}
	for i := range want {
		if math.Abs(float64(f[i]-want[i])) > 1e-4 {
			t.Errorf("feature %d: got %g, want %g", i, f[i], want[i])
		}
	}
}

func TestGenerateMirror(t *testing.T) {
	spec := MotionSpec{Name: "turn", Length: 1, Profile: Arc(1, 1), Mirror: true}
	db, err := Generate(Options{Offsets: []float64{0.5}, SampleRate: 10}, spec)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	m := db.Motions[0]
	if !m.Variants[1].Mirrored {
		t.Fatal("second variant should be mirrored")
	}
	a, b := m.Variants[0].Frames[2].Features, m.Variants[1].Frames[2].Features
	if a[0] == 0 || math.Abs(float64(a[0]+b[0])) > 1e-6 || a[1] != b[1] {
		t.Errorf("mirrored features should negate X only: %v vs %v", a, b)
	}
}

func TestGenerateBlockTailAndEvents(t *testing.T) {
	spec := MotionSpec{
		Name:      "stop",
		Length:    1,
		Profile:   Constant(trajectory.Point{}),
		BlockTail: 0.2,
		Events:    map[string][]float64{"halt": {0.5, 5}},
	}
	db, err := Generate(Options{SampleRate: 10}, spec)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	frames := db.Motions[0].Variants[0].Frames
	if len(frames) != 11 {
		t.Fatalf("expected 11 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if want := i >= 9; f.BlockTransition != want {
			t.Errorf("frame %d: BlockTransition = %v, want %v", i, f.BlockTransition, want)
		}
	}
	if len(frames[5].Events) != 1 || frames[5].Events[0] != "halt" {
		t.Errorf("expected halt event on frame 5, got %v", frames[5].Events)
	}
}

func TestGenerateRejectsBadSpecs(t *testing.T) {
	if _, err := Generate(Options{}, MotionSpec{Name: "empty", Length: 1}); err == nil {
		t.Error("expected error without a profile")
	}
	if _, err := Generate(Options{}, MotionSpec{Name: "zero", Profile: Constant(trajectory.Point{})}); err == nil {
		t.Error("expected error for zero length")
	}
}
