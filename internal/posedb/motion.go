package posedb

import (
	"fmt"
	"math"
	"strings"
)

// Asset is anything a caller can ask the matcher to search: a *Database or
// a *Motion carrying branch-in markers.
type Asset interface {
	AssetName() string
}

// MotionKind tags the concrete motion variant.
type MotionKind int

const (
	KindClip MotionKind = iota
	KindComposite
	KindBlendSpace
)

func (k MotionKind) String() string {
	switch k {
	case KindComposite:
		return "composite"
	case KindBlendSpace:
		return "blendspace"
	default:
		return "clip"
	}
}

// ParseMotionKind parses the textual form produced by String.
func ParseMotionKind(s string) (MotionKind, error) {
	switch strings.ToLower(s) {
	case "", "clip":
		return KindClip, nil
	case "composite":
		return KindComposite, nil
	case "blendspace", "blend_space":
		return KindBlendSpace, nil
	}
	return KindClip, fmt.Errorf("unknown motion kind %q", s)
}

// Frame is one sampled pose of a motion variant.
type Frame struct {
	Features        []float32
	CostAddend      float32
	BlockTransition bool
	Events          []string
}

// Variant is one way of playing a motion: mirrored or not, at one blend sample.
type Variant struct {
	Mirrored bool
	Blend    Vec3
	Frames   []Frame
}

// BranchIn marks a motion as "search this database". A marker whose
// database could not be resolved keeps a nil Database and its Name.
type BranchIn struct {
	Database *Database
	Name     string
}

// Motion is a clip, composite or blend space with precomputed frames.
type Motion struct {
	Name               string
	Kind               MotionKind
	Looping            bool
	DisableReselection bool

	// Length is the play length in seconds.
	Length float64

	Variants  []Variant
	BranchIns []BranchIn
}

// AssetName implements Asset.
func (m *Motion) AssetName() string { return m.Name }

// GetLooping reports whether playback wraps around.
func (m *Motion) GetLooping() bool { return m.Looping }

// PlayLength returns the length in seconds.
func (m *Motion) PlayLength() float64 { return m.Length }

// SampleAt maps an accumulated play time to a time inside the motion.
func (m *Motion) SampleAt(t float64) float64 {
	return wrapOrClamp(t, m.Length, m.Looping)
}

// BlendBounds returns the bounding box of the variants' blend coordinates.
func (m *Motion) BlendBounds() (lo, hi Vec3) {
	for i, v := range m.Variants {
		if i == 0 {
			lo, hi = v.Blend, v.Blend
			continue
		}
		lo = Vec3{min(lo.X, v.Blend.X), min(lo.Y, v.Blend.Y), min(lo.Z, v.Blend.Z)}
		hi = Vec3{max(hi.X, v.Blend.X), max(hi.Y, v.Blend.Y), max(hi.Z, v.Blend.Z)}
	}
	return lo, hi
}

// AddBranchIn marks the motion as a branch-in of db.
func (m *Motion) AddBranchIn(db *Database) {
	name := ""
	if db != nil {
		name = db.Name
	}
	m.BranchIns = append(m.BranchIns, BranchIn{Database: db, Name: name})
}

func wrapOrClamp(t, length float64, looping bool) float64 {
	if length <= 0 {
		return 0
	}
	if looping {
		t = math.Mod(t, length)
		if t < 0 {
			t += length
		}
		return t
	}
	return math.Max(0, math.Min(length, t))
}
