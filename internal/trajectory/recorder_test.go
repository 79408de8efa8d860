package trajectory

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecorder_AdvanceAndSample(t *testing.T) {
	r := NewRecorder(2)

	for i := 0; i < 10; i++ {
		r.Advance(0.1, Point{X: 1})
	}

	if got := r.Position().X; !almostEqual(got, 1.0) {
		t.Fatalf("expected position 1.0, got %f", got)
	}

	s, ok := r.GetPoseAt(-0.5)
	if !ok {
		t.Fatal("expected sample half a second ago")
	}
	if !almostEqual(s.Position.X, 0.5) {
		t.Errorf("expected x=0.5, got %f", s.Position.X)
	}
	if s.Time != -0.5 {
		t.Errorf("expected relative time -0.5, got %f", s.Time)
	}
}

func TestRecorder_HistoryIsBounded(t *testing.T) {
	r := NewRecorder(0.5)

	for i := 0; i < 100; i++ {
		r.Advance(0.1, Point{Z: 1})
	}

	if _, ok := r.GetPoseAt(-0.5); !ok {
		t.Error("expected sample at the edge of the history window")
	}
	if _, ok := r.GetPoseAt(-3); ok {
		t.Error("expected no sample far outside the history window")
	}

	traj := r.GetTrajectory()
	if len(traj) > 10 {
		t.Errorf("expected pruned history, got %d samples", len(traj))
	}
	for i := 1; i < len(traj); i++ {
		if traj[i].Time < traj[i-1].Time {
			t.Fatalf("trajectory not ordered at %d", i)
		}
	}
}

func TestRecorder_PredictsDesiredVelocity(t *testing.T) {
	r := NewRecorder(1)
	r.SetDesiredVelocity(Point{X: 2})

	s, ok := r.GetPoseAt(1)
	if !ok {
		t.Fatal("expected future sample")
	}
	if !almostEqual(s.Velocity.X, 2) {
		t.Errorf("expected desired velocity 2, got %f", s.Velocity.X)
	}
	// 0.5s blend from 0 to 2 covers 0.5, then 0.5s at 2 covers 1.0
	if !almostEqual(s.Position.X, 1.5) {
		t.Errorf("expected x=1.5, got %f", s.Position.X)
	}
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder(1)
	r.Advance(0.5, Point{X: 1})
	r.Reset()

	if r.Position() != (Point{}) {
		t.Errorf("expected origin after reset, got %+v", r.Position())
	}
	if _, ok := r.GetPoseAt(-0.25); ok {
		t.Error("expected no history after reset")
	}
}

func TestStatic_GetPoseAt(t *testing.T) {
	s := Static{
		{Time: -1, Position: Point{X: -1}},
		{Time: 0, Position: Point{X: 0}},
		{Time: 1, Position: Point{X: 2}},
	}

	tests := []struct {
		name  string
		t     float64
		wantX float64
		ok    bool
	}{
		{"exact", 0, 0, true},
		{"past", -0.5, -0.5, true},
		{"future", 0.5, 1, true},
		{"before", -2, 0, false},
		{"after", 2, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.GetPoseAt(tt.t)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !almostEqual(got.Position.X, tt.wantX) {
				t.Errorf("x = %f, want %f", got.Position.X, tt.wantX)
			}
		})
	}
}
