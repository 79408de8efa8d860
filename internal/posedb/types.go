/*
Package posedb implements pose databases for motion matching.

A Database groups source motions that share one feature Schema. Building a
database produces an immutable SearchIndex: every motion variant (mirrored
or blend sample) becomes an IndexAsset covering a contiguous range of
poses, and every pose carries a feature vector of Schema.Cardinality
values plus metadata used by the search filters.

Databases are persisted as a directory holding a JSON manifest, a JSONL
motion list and a little-endian float32 feature blob.
*/
package posedb

import (
	"errors"
	"math"
)

// InvalidIndex marks a missing pose or asset index.
const InvalidIndex = -1

var (
	// ErrDimensionMismatch is returned when feature data does not match the schema cardinality.
	ErrDimensionMismatch = errors.New("feature dimension does not match schema cardinality")

	// ErrNotBuilt is returned when an operation needs a built search index.
	ErrNotBuilt = errors.New("database index is not built")

	// ErrNestedDatabase is returned when a database is added as a member of another database.
	ErrNestedDatabase = errors.New("databases cannot be members of other databases")
)

// Vec3 holds blend space coordinates.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// DistSquared returns the squared distance between v and o.
func (v Vec3) DistSquared(o Vec3) float32 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// Role names one participant of a query (e.g. "self", "partner").
type Role string

// DefaultRole is used when a schema does not name its roles.
const DefaultRole Role = "default"

// Interval is a closed [Min, Max] range.
type Interval struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// IsDegenerate reports whether Min == Max.
func (i Interval) IsDegenerate() bool { return i.Min == i.Max }

// Clamp restricts v to the interval.
func (i Interval) Clamp(v float64) float64 {
	return math.Max(i.Min, math.Min(i.Max, v))
}

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v float64) bool { return v >= i.Min && v <= i.Max }

// Readiness is the tri-state build status of a database.
type Readiness int

const (
	// Absent means no index exists and no build is running.
	Absent Readiness = iota
	// Building means an index build is in flight.
	Building
	// Ready means the index is built and searchable.
	Ready
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Building:
		return "building"
	default:
		return "absent"
	}
}

// BuildStatus is the answer to a build request.
type BuildStatus int

const (
	BuildSuccess BuildStatus = iota
	BuildInProgress
	BuildFailed
)

func (s BuildStatus) String() string {
	switch s {
	case BuildSuccess:
		return "success"
	case BuildInProgress:
		return "in-progress"
	default:
		return "failed"
	}
}
