package search

import (
	"testing"

	"github.com/khanglvm/posematch/internal/posedb"
)

func TestResolve_DatabaseSearchesEverything(t *testing.T) {
	q := float32(0)
	walk := motionOf("walk", false, 0)
	db := builtDatabase(t, "locomotion", constSchema("s", &q), walk)
	walk.AddBranchIn(db)

	r := NewResolver(newFakeBuilds())
	ctx := NewContext(Config{})

	// a motion first, then its database: the database widens the subset
	subsets := r.Resolve([]posedb.Asset{walk, db, db}, ctx)
	if subsets.Len() != 1 {
		t.Fatalf("expected 1 database, got %d", subsets.Len())
	}
	entry, ok := subsets.Get(db)
	if !ok || !entry.SearchesEverything() {
		t.Errorf("expected the whole database to be searched, got %+v", entry)
	}
	if ctx.IsAsyncBuildInProgress() {
		t.Error("built database should not flag async build")
	}
}

func TestResolve_MotionSubsets(t *testing.T) {
	q := float32(0)
	walk := motionOf("walk", false, 0)
	run := motionOf("run", false, 1)
	db := builtDatabase(t, "locomotion", constSchema("s", &q), walk, run)
	walk.AddBranchIn(db)
	run.AddBranchIn(db)

	subsets := NewResolver(nil).Resolve([]posedb.Asset{walk, run, walk}, NewContext(Config{}))
	entry, ok := subsets.Get(db)
	if !ok {
		t.Fatal("expected database to be searchable")
	}
	if len(entry.Assets) != 2 || entry.Assets[0] != walk || entry.Assets[1] != run {
		t.Errorf("expected [walk run], got %d assets", len(entry.Assets))
	}

	// resolving twice gives the same answer
	again := NewResolver(nil).Resolve([]posedb.Asset{walk, run, walk}, NewContext(Config{}))
	e2, _ := again.Get(db)
	if len(e2.Assets) != len(entry.Assets) {
		t.Error("expected resolution to be idempotent")
	}
}

func TestResolve_SkipsBadMarkers(t *testing.T) {
	q := float32(0)
	walk := motionOf("walk", false, 0)
	stray := motionOf("stray", false, 0)
	db := builtDatabase(t, "locomotion", constSchema("s", &q), walk)

	stray.AddBranchIn(db)
	stray.BranchIns = append(stray.BranchIns, posedb.BranchIn{Name: "missing"})
	walk.AddBranchIn(nil)

	subsets := NewResolver(nil).Resolve([]posedb.Asset{stray, walk, nil}, NewContext(Config{}))
	if subsets.Len() != 0 {
		t.Errorf("expected no searchable database, got %d", subsets.Len())
	}
	if len(subsets.Requested()) != 1 {
		t.Errorf("expected the non-member database to still be requested, got %d", len(subsets.Requested()))
	}
}

func TestResolve_NotReady(t *testing.T) {
	q := float32(0)
	building := posedb.NewDatabase("building", constSchema("s", &q))
	failed := posedb.NewDatabase("failed", constSchema("s", &q))

	builds := newFakeBuilds()
	builds.status[failed] = posedb.BuildFailed

	ctx := NewContext(Config{})
	subsets := NewResolver(builds).Resolve([]posedb.Asset{building, failed}, ctx)
	if subsets.Len() != 0 {
		t.Errorf("expected nothing searchable, got %d", subsets.Len())
	}
	if !ctx.IsAsyncBuildInProgress() {
		t.Error("expected async build flag for the building database")
	}
	if builds.requests != 2 {
		t.Errorf("expected 2 build requests, got %d", builds.requests)
	}

	ctx = NewContext(Config{})
	NewResolver(builds).Resolve([]posedb.Asset{failed}, ctx)
	if ctx.IsAsyncBuildInProgress() {
		t.Error("a failed build should not flag async build")
	}
}

func TestResolveContinuing(t *testing.T) {
	q := float32(0)
	s := constSchema("s", &q)
	walk := motionOf("walk", false, 0)
	idle := motionOf("idle", false, 1)
	loco := builtDatabase(t, "locomotion", s, walk, idle)
	other := builtDatabase(t, "other", s, idle)
	idle.AddBranchIn(loco)
	idle.AddBranchIn(other)

	r := NewResolver(nil)

	subsets := r.ResolveContinuing([]posedb.Asset{loco, other}, walk, NewContext(Config{}))
	if subsets.Len() != 1 {
		t.Fatalf("expected only the database containing walk, got %d", subsets.Len())
	}
	entry, _ := subsets.Get(loco)
	if len(entry.Assets) != 1 || entry.Assets[0] != walk {
		t.Error("expected the continuing subset to hold the playing motion")
	}

	// branch-in databases of requested motions are candidates too
	subsets = r.ResolveContinuing([]posedb.Asset{idle}, idle, NewContext(Config{}))
	if subsets.Len() != 2 {
		t.Errorf("expected both branch-in databases, got %d", subsets.Len())
	}

	if r.ResolveContinuing([]posedb.Asset{loco}, nil, NewContext(Config{})).Len() != 0 {
		t.Error("expected nothing without a playing motion")
	}
	if r.ResolveContinuing([]posedb.Asset{loco}, loco, NewContext(Config{})).Len() != 0 {
		t.Error("expected nothing when a database is reported as playing")
	}
}
