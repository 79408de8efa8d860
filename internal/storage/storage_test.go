package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s := NewStorageAt(filepath.Join(t.TempDir(), "trace.db"))
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func cost(v float64) *float64 { return &v }

func TestNewStorage(t *testing.T) {
	s := NewStorage()
	if s == nil {
		t.Fatal("NewStorage returned nil")
	}
	if s.enabled && filepath.Base(s.Path()) != "trace.db" {
		t.Errorf("unexpected default path %s", s.Path())
	}
}

func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "trace.db")
	s := NewStorageAt(dbPath)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file not created")
	}
	if !s.Enabled() {
		t.Error("expected storage to be enabled")
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("expected migration version 2, got %d", version)
	}
}

func TestRecordAndGetTicks(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()

	ticks := []TickRecord{
		{
			TickID: "t1", SessionID: "s", Timestamp: now.Add(-2 * time.Second),
			DeltaTime: 1.0 / 30, Database: "loco", Motion: "walk", PoseIdx: 12,
			AssetTime: 0.4, Cost: cost(0.25), WantedPlayRate: 1.1,
			Searched: true, Jumped: true, QueryBuilds: 1, QueryCacheHits: 1,
			Candidates: []CandidateRecord{
				{Database: "loco", PoseIdx: 12, Cost: cost(0.25), Flags: "valid"},
				{Database: "loco", PoseIdx: 13, Flags: "pruned"},
			},
		},
		{
			TickID: "t2", SessionID: "s", Timestamp: now.Add(-1 * time.Second),
			PoseIdx: -1, WantedPlayRate: 1, AsyncBuild: true,
		},
	}
	if err := s.RecordTicks(ticks); err != nil {
		t.Fatalf("RecordTicks failed: %v", err)
	}

	got, err := s.GetTicks(now.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("GetTicks failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(got))
	}
	first := got[0]
	if first.TickID != "t1" || first.Motion != "walk" || first.PoseIdx != 12 {
		t.Errorf("unexpected first tick %+v", first)
	}
	if first.Cost == nil || *first.Cost != 0.25 {
		t.Errorf("expected cost 0.25, got %v", first.Cost)
	}
	if !first.Searched || !first.Jumped || first.Continuing {
		t.Errorf("flags not preserved: %+v", first)
	}
	if got[1].Cost != nil || !got[1].AsyncBuild || got[1].Database != "" {
		t.Errorf("unexpected empty tick %+v", got[1])
	}

	cands, err := s.GetCandidates("t1")
	if err != nil {
		t.Fatalf("GetCandidates failed: %v", err)
	}
	if len(cands) != 2 || cands[1].Flags != "pruned" || cands[1].Cost != nil {
		t.Errorf("unexpected candidates %+v", cands)
	}

	limited, _ := s.GetTicks(now.Add(-time.Hour), 1)
	if len(limited) != 1 || limited[0].TickID != "t1" {
		t.Errorf("expected the oldest tick only, got %+v", limited)
	}
}

func TestCleanup(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()

	err := s.RecordTicks([]TickRecord{
		{TickID: "old", SessionID: "s", Timestamp: now.Add(-48 * time.Hour), PoseIdx: 1,
			Candidates: []CandidateRecord{{Database: "db", PoseIdx: 1, Flags: "valid"}}},
		{TickID: "new", SessionID: "s", Timestamp: now, PoseIdx: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Cleanup(24 * time.Hour); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	got, _ := s.GetTicks(time.Time{}, 0)
	if len(got) != 1 || got[0].TickID != "new" {
		t.Errorf("expected only the new tick, got %+v", got)
	}
	if cands, _ := s.GetCandidates("old"); len(cands) != 0 {
		t.Errorf("expected candidates of old tick to be removed, got %d", len(cands))
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got, _ := s.GetTicks(time.Time{}, 0); len(got) != 0 {
		t.Errorf("expected no ticks after clear, got %d", len(got))
	}
}

func TestGracefulDegradation(t *testing.T) {
	// a regular file where the parent directory should be
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStorageAt(filepath.Join(blocker, "trace.db"))

	if err := s.Init(); err == nil {
		t.Error("expected Init to fail")
	}
	if s.Enabled() {
		t.Error("expected storage to be disabled")
	}

	if err := s.RecordTicks([]TickRecord{{TickID: "x"}}); err != nil {
		t.Errorf("RecordTicks should be a no-op on disabled storage, got: %v", err)
	}
	ticks, err := s.GetTicks(time.Now(), 0)
	if err != nil || len(ticks) != 0 {
		t.Errorf("expected empty result on disabled storage, got %d (%v)", len(ticks), err)
	}
	if err := s.Cleanup(time.Hour); err != nil {
		t.Errorf("Cleanup should be a no-op, got %v", err)
	}
}
