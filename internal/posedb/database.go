package posedb

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode selects the full search algorithm of a database.
type Mode int

const (
	ModeBruteForce Mode = iota
	ModeVPTree
	// ModeEventOnly databases answer event searches only.
	ModeEventOnly
)

func (m Mode) String() string {
	switch m {
	case ModeVPTree:
		return "vptree"
	case ModeEventOnly:
		return "eventonly"
	default:
		return "bruteforce"
	}
}

// ParseMode parses the textual form produced by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "bruteforce", "brute_force":
		return ModeBruteForce, nil
	case "vptree", "vp_tree":
		return ModeVPTree, nil
	case "eventonly", "event_only":
		return ModeEventOnly, nil
	}
	return ModeBruteForce, fmt.Errorf("unknown search mode %q", s)
}

// DefaultKNNNeighbors is used when a VP-tree database does not set KNNNeighbors.
const DefaultKNNNeighbors = 10

// Database is a versioned collection of motions sharing one schema.
//
// Members and tunables are set before the first build. The search index is
// published atomically and never mutated afterwards, so a built database can
// be searched by many goroutines at once.
type Database struct {
	Name   string
	Schema *Schema

	Motions []*Motion

	ContinuingPoseCostBias float32
	BaseCostBias           float32
	Mode                   Mode
	KNNNeighbors           int

	index   atomic.Pointer[SearchIndex]
	version atomic.Uint64
}

// NewDatabase creates an empty database for schema.
func NewDatabase(name string, schema *Schema) *Database {
	return &Database{Name: name, Schema: schema}
}

// AssetName implements Asset.
func (db *Database) AssetName() string { return db.Name }

// Add appends a member motion. Databases cannot be members.
func (db *Database) Add(a Asset) error {
	switch v := a.(type) {
	case *Motion:
		if v == nil {
			return fmt.Errorf("database %s: nil motion", db.Name)
		}
		db.Motions = append(db.Motions, v)
		return nil
	case *Database:
		return fmt.Errorf("database %s: cannot add %s: %w", db.Name, v.Name, ErrNestedDatabase)
	default:
		return fmt.Errorf("database %s: unsupported asset %T", db.Name, a)
	}
}

// Contains reports whether a is a member motion. It works before the index is built.
func (db *Database) Contains(a Asset) bool {
	m, ok := a.(*Motion)
	if !ok || m == nil {
		return false
	}
	for _, member := range db.Motions {
		if member == m {
			return true
		}
	}
	return false
}

// MotionByName returns the member motion called name, or nil.
func (db *Database) MotionByName(name string) *Motion {
	for _, m := range db.Motions {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Index returns the built search index, or nil when not built.
func (db *Database) Index() *SearchIndex { return db.index.Load() }

// IsBuilt reports whether a search index is published.
func (db *Database) IsBuilt() bool { return db.index.Load() != nil }

// Version increments every time a new index is published.
func (db *Database) Version() uint64 { return db.version.Load() }

// SetIndex publishes idx after checking it matches the schema.
func (db *Database) SetIndex(idx *SearchIndex) error {
	if idx == nil {
		return fmt.Errorf("database %s: nil index", db.Name)
	}
	if db.Schema == nil || idx.Cardinality != db.Schema.Cardinality {
		return fmt.Errorf("database %s: %w", db.Name, ErrDimensionMismatch)
	}
	if len(idx.Values) != idx.NumPoses()*idx.Cardinality {
		return fmt.Errorf("database %s: %d values for %d poses: %w", db.Name, len(idx.Values), idx.NumPoses(), ErrDimensionMismatch)
	}
	db.index.Store(idx)
	db.version.Add(1)
	return nil
}

// ClearIndex drops the published index; the database becomes unsearchable.
func (db *Database) ClearIndex() {
	db.index.Store(nil)
}

// BuildQuery builds the schema query for in.
func (db *Database) BuildQuery(in QueryInput) []float32 {
	if db.Schema == nil || db.Schema.Builder == nil {
		return nil
	}
	return db.Schema.Builder.BuildQuery(in)
}

// GetPoseIndex maps a playing motion into this database. Among the index
// assets built from m with the same mirror flag, the one with the closest
// blend coordinates is chosen. It returns InvalidIndex when the database is
// not built, does not index m, or blend lies outside m's blend space.
func (db *Database) GetPoseIndex(m *Motion, t float64, mirrored bool, blend Vec3) int {
	idx := db.Index()
	if idx == nil || m == nil {
		return InvalidIndex
	}
	assetIdx := db.assetIndexFor(idx, m, mirrored, blend)
	if assetIdx == InvalidIndex {
		return InvalidIndex
	}
	return idx.Assets[assetIdx].PoseIndexFromTime(t, db.Schema.SampleRate)
}

// blendTolerance is the slack allowed outside a blend space's sample bounds.
const blendTolerance = 1e-3

func (db *Database) assetIndexFor(idx *SearchIndex, m *Motion, mirrored bool, blend Vec3) int {
	if m.Kind == KindBlendSpace && len(m.Variants) > 0 {
		lo, hi := m.BlendBounds()
		if blend.X < lo.X-blendTolerance || blend.X > hi.X+blendTolerance ||
			blend.Y < lo.Y-blendTolerance || blend.Y > hi.Y+blendTolerance ||
			blend.Z < lo.Z-blendTolerance || blend.Z > hi.Z+blendTolerance {
			return InvalidIndex
		}
	}

	best := InvalidIndex
	var bestDist float32
	for i := range idx.Assets {
		a := &idx.Assets[i]
		if a.Motion != m || a.Mirrored != mirrored {
			continue
		}
		d := a.Blend.DistSquared(blend)
		if best == InvalidIndex || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// RealAssetTime returns the asset time of pose.
func (db *Database) RealAssetTime(pose int) float64 {
	idx := db.Index()
	if idx == nil {
		return 0
	}
	a := idx.AssetForPose(pose)
	if a == nil {
		return 0
	}
	return a.TimeFromPoseIndex(pose, db.Schema.SampleRate)
}

// NormalizedAssetTime returns the asset time of pose divided by the play length.
func (db *Database) NormalizedAssetTime(pose int) float64 {
	idx := db.Index()
	if idx == nil {
		return 0
	}
	a := idx.AssetForPose(pose)
	if a == nil || a.PlayLength <= 0 {
		return 0
	}
	return a.TimeFromPoseIndex(pose, db.Schema.SampleRate) / a.PlayLength
}

// PoseValues returns the feature row of pose, or nil.
func (db *Database) PoseValues(pose int) []float32 {
	idx := db.Index()
	if idx == nil || pose < 0 || pose >= idx.NumPoses() {
		return nil
	}
	return idx.PoseValues(pose)
}
