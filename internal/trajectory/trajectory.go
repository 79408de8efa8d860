/*
Package trajectory provides read-only access to recently sampled and
predicted root motion for an animated role.

A Provider exposes a time-indexed view where t == 0 is "now", negative
times are history and positive times are the desired future. Query
builders sample it to assemble feature vectors.
*/
package trajectory

import (
	"math"
	"sort"
)

// Point is a position or velocity on the ground plane.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Add returns p + o.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Z: p.Z + o.Z} }

// Sub returns p - o.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Z: p.Z - o.Z} }

// Scale returns p * s.
func (p Point) Scale(s float64) Point { return Point{X: p.X * s, Z: p.Z * s} }

// Length returns the euclidean norm of p.
func (p Point) Length() float64 { return math.Hypot(p.X, p.Z) }

// Sample is one trajectory sample.
type Sample struct {
	// Time is relative to the current tick (seconds).
	Time     float64 `json:"time"`
	Position Point   `json:"position"`
	Velocity Point   `json:"velocity"`
}

// Provider is a restartable, time-indexed sequence of trajectory samples.
type Provider interface {
	// GetTrajectory returns the samples ordered by time.
	GetTrajectory() []Sample

	// GetPoseAt returns the interpolated sample at time t relative to now.
	// The boolean is false when t falls outside the recorded history.
	GetPoseAt(t float64) (Sample, bool)
}

// interpolate linearly blends two samples at time t.
func interpolate(a, b Sample, t float64) Sample {
	span := b.Time - a.Time
	if span <= 0 {
		return Sample{Time: t, Position: a.Position, Velocity: a.Velocity}
	}
	alpha := (t - a.Time) / span
	return Sample{
		Time:     t,
		Position: a.Position.Add(b.Position.Sub(a.Position).Scale(alpha)),
		Velocity: a.Velocity.Add(b.Velocity.Sub(a.Velocity).Scale(alpha)),
	}
}

// sampleAt finds t inside an ordered slice of samples.
func sampleAt(samples []Sample, t float64) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	first, last := samples[0], samples[len(samples)-1]
	if t < first.Time || t > last.Time {
		return Sample{}, false
	}
	i := sort.Search(len(samples), func(i int) bool { return samples[i].Time >= t })
	if samples[i].Time == t || i == 0 {
		s := samples[i]
		s.Time = t
		return s, true
	}
	return interpolate(samples[i-1], samples[i], t), true
}
