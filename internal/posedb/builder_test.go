package posedb

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"
)

func TestBuildIndex_Layout(t *testing.T) {
	db := NewDatabase("db", newTestSchema())
	walk := newTestMotion("walk", 4, false)
	walk.Variants[0].Frames[1].CostAddend = -0.5
	walk.Variants[0].Frames[2].BlockTransition = true
	walk.Variants[0].Frames[3].Events = []string{"footstep"}
	run := newTestMotion("run", 3, true)
	run.Variants[0].Frames[0].Events = []string{"footstep"}
	run.DisableReselection = true
	db.Add(walk)
	db.Add(run)

	idx, err := BuildIndex(context.Background(), db)
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	if idx.NumPoses() != 7 {
		t.Fatalf("expected 7 poses, got %d", idx.NumPoses())
	}
	if len(idx.Assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(idx.Assets))
	}
	if idx.Assets[1].FirstPose != 4 || idx.Assets[1].NumPoses != 3 {
		t.Errorf("unexpected run range: %+v", idx.Assets[1])
	}
	if !idx.Assets[1].Looping || !idx.Assets[1].DisableReselection {
		t.Errorf("expected run flags to be copied: %+v", idx.Assets[1])
	}
	if idx.MinCostAddend != -0.5 {
		t.Errorf("expected MinCostAddend -0.5, got %f", idx.MinCostAddend)
	}
	if !idx.Poses[2].BlockTransition {
		t.Error("expected pose 2 to block transitions")
	}
	if got := idx.Events["footstep"]; len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("unexpected footstep poses: %v", got)
	}
	if !idx.HasEvent(4, "footstep") || idx.HasEvent(5, "footstep") {
		t.Error("HasEvent returned wrong answers")
	}
	if a := idx.AssetForPose(5); a == nil || a.Motion != run {
		t.Error("expected pose 5 to belong to run")
	}
	if got := idx.AssetIndexesFor(run); len(got) != 1 || got[0] != 1 {
		t.Errorf("AssetIndexesFor(run) = %v", got)
	}
}

func TestBuildIndex_DimensionMismatch(t *testing.T) {
	db := NewDatabase("db", newTestSchema())
	m := newTestMotion("bad", 2, false)
	m.Variants[0].Frames[1].Features = []float32{1, 2, 3}
	db.Add(m)

	_, err := BuildIndex(context.Background(), db)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestBuildIndex_Cancelled(t *testing.T) {
	db := NewDatabase("db", newTestSchema())
	db.Add(newTestMotion("walk", 2, false))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := BuildIndex(ctx, db); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestVPTree_MatchesBruteForce(t *testing.T) {
	const dim = 3
	rng := rand.New(rand.NewSource(7))
	values := make([]float32, 200*dim)
	for i := range values {
		values[i] = rng.Float32()
	}
	weights := []float32{1, 2, 0.5}
	tree := BuildVPTree(values, dim, weights)

	if tree.Len() != 200 {
		t.Fatalf("expected 200 nodes, got %d", tree.Len())
	}

	for q := 0; q < 20; q++ {
		query := []float32{rng.Float32(), rng.Float32(), rng.Float32()}
		got := tree.Nearest(query, 5)

		type pd struct {
			pose int
			dist float64
		}
		all := make([]pd, 0, 200)
		for p := 0; p < 200; p++ {
			all = append(all, pd{p, tree.distance(query, tree.row(p))})
		}
		sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })
		want := make([]int, 5)
		for i := range want {
			want[i] = all[i].pose
		}
		sort.Ints(want)

		if len(got) != len(want) {
			t.Fatalf("query %d: got %d neighbors, want %d", q, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("query %d: got %v, want %v", q, got, want)
				break
			}
		}
	}
}

func TestVPTree_EmptyAndInvalid(t *testing.T) {
	tree := BuildVPTree(nil, 2, []float32{1, 1})
	if got := tree.Nearest([]float32{0, 0}, 3); got != nil {
		t.Errorf("expected nil from empty tree, got %v", got)
	}

	tree = BuildVPTree([]float32{0, 0, 1, 1}, 2, []float32{1, 1})
	if got := tree.Nearest([]float32{0}, 1); got != nil {
		t.Errorf("expected nil for wrong query dimension, got %v", got)
	}
	if got := tree.Nearest([]float32{0.9, 0.9}, 10); len(got) != 2 {
		t.Errorf("expected all poses when k exceeds size, got %v", got)
	}
}

func TestVPTree_NearestFilteredSkipsPoses(t *testing.T) {
	values := make([]float32, 40)
	for i := range values {
		values[i] = float32(i) * 0.5
	}
	tree := BuildVPTree(values, 1, []float32{1})

	// the six poses closest to 5.0 are excluded
	skip := func(pose int) bool { return pose >= 7 && pose <= 12 }
	got := tree.NearestFiltered([]float32{5}, 4, skip)

	want := []int{5, 6, 13, 14}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if all := tree.NearestFiltered([]float32{5}, 4, func(int) bool { return true }); len(all) != 0 {
		t.Errorf("expected no neighbors when every pose is skipped, got %v", all)
	}
}
