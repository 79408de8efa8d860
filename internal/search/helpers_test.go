package search

import (
	"context"
	"testing"

	"github.com/khanglvm/posematch/internal/posedb"
)

// constSchema returns a one-dimensional schema whose query is *query.
func constSchema(id string, query *float32) *posedb.Schema {
	s := &posedb.Schema{ID: id, Cardinality: 1, SampleRate: 10, SpeedChannel: -1}
	s.Builder = posedb.QueryBuilderFunc(func(posedb.QueryInput) []float32 {
		return []float32{*query}
	})
	return s
}

// motionOf creates a single-variant motion with one feature per frame.
func motionOf(name string, looping bool, values ...float32) *posedb.Motion {
	frames := make([]posedb.Frame, len(values))
	for i, v := range values {
		frames[i] = posedb.Frame{Features: []float32{v}}
	}
	return &posedb.Motion{
		Name:     name,
		Looping:  looping,
		Length:   float64(len(values)-1) / 10,
		Variants: []posedb.Variant{{Frames: frames}},
	}
}

// builtDatabase creates and builds a database holding motions.
func builtDatabase(t *testing.T, name string, schema *posedb.Schema, motions ...*posedb.Motion) *posedb.Database {
	t.Helper()
	db := posedb.NewDatabase(name, schema)
	for _, m := range motions {
		if err := db.Add(m); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if err := posedb.Build(context.Background(), db); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return db
}

// fakeBuilds is a BuildService with fixed answers.
type fakeBuilds struct {
	status   map[*posedb.Database]posedb.BuildStatus
	requests int
}

func newFakeBuilds() *fakeBuilds {
	return &fakeBuilds{status: make(map[*posedb.Database]posedb.BuildStatus)}
}

func (f *fakeBuilds) RequestBuild(db *posedb.Database) posedb.BuildStatus {
	f.requests++
	if s, ok := f.status[db]; ok {
		return s
	}
	if db.IsBuilt() {
		return posedb.BuildSuccess
	}
	return posedb.BuildInProgress
}
