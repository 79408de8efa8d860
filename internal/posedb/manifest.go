package posedb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	manifestFile        = "database_manifest.json"
	defaultMotionsFile  = "motions.jsonl"
	defaultFeaturesFile = "features.f32"
	lockFile            = ".posematch.lock"

	lockTimeout    = 10 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

// Manifest is the JSON header of an on-disk database.
type Manifest struct {
	Name                   string         `json:"name"`
	Schema                 SchemaManifest `json:"schema"`
	ContinuingPoseCostBias float32        `json:"continuingPoseCostBias,omitempty"`
	BaseCostBias           float32        `json:"baseCostBias,omitempty"`
	Mode                   string         `json:"mode,omitempty"`
	KNNNeighbors           int            `json:"knnNeighbors,omitempty"`
	NumFrames              int            `json:"numFrames"`
	MotionsFile            string         `json:"motionsFile,omitempty"`
	FeaturesFile           string         `json:"featuresFile,omitempty"`
	CreatedAt              string         `json:"createdAt,omitempty"`
}

// SchemaManifest describes a trajectory schema.
type SchemaManifest struct {
	ID         string    `json:"id"`
	SampleRate float64   `json:"sampleRate"`
	Offsets    []float64 `json:"offsets"`
	Weights    []float32 `json:"weights,omitempty"`
}

// MotionEntry is one line of the motions file.
type MotionEntry struct {
	Name               string         `json:"name"`
	Kind               string         `json:"kind,omitempty"`
	Looping            bool           `json:"looping,omitempty"`
	DisableReselection bool           `json:"disableReselection,omitempty"`
	Length             float64        `json:"length"`
	BranchIns          []string       `json:"branchIns,omitempty"`
	Variants           []VariantEntry `json:"variants"`
}

// VariantEntry describes the frames of one motion variant. Feature rows are
// stored in the features file in motion then variant order.
type VariantEntry struct {
	Mirrored         bool             `json:"mirrored,omitempty"`
	Blend            Vec3             `json:"blend"`
	Frames           int              `json:"frames"`
	CostAddends      []float32        `json:"costAddends,omitempty"`
	BlockTransitions []int            `json:"blockTransitions,omitempty"`
	Events           map[string][]int `json:"events,omitempty"`
}

// lockDir takes the database directory lock, shared for readers and
// exclusive for writers, retrying until lockTimeout.
func lockDir(dir string, exclusive bool) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return func() {}, fmt.Errorf("cannot create database dir %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, lockFile)
	l := flock.New(lockPath)
	deadline := time.Now().Add(lockTimeout)
	for {
		var locked bool
		var err error
		if exclusive {
			locked, err = l.TryLock()
		} else {
			locked, err = l.TryRLock()
		}
		if err != nil {
			return func() {}, fmt.Errorf("cannot acquire database lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, fmt.Errorf("database %s is locked by another process (lock: %s)", dir, lockPath)
		}
		time.Sleep(lockRetryDelay)
	}
}

// Exists reports whether dir holds a database manifest.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, manifestFile))
	return err == nil && info.Mode().IsRegular()
}
