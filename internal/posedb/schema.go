package posedb

import (
	"fmt"
	"math"

	"github.com/khanglvm/posematch/internal/trajectory"
)

// featuresPerSample is the (dx, dz, vx, vz) layout of one trajectory sample.
const featuresPerSample = 4

// QueryInput is what a QueryBuilder can read while assembling a query.
type QueryInput interface {
	// History returns the trajectory provider bound to role, or nil.
	History(role Role) trajectory.Provider

	// CachedPoseValues returns the stored features of the continuing pose
	// when the caller allows reusing them for schema.
	CachedPoseValues(schema *Schema) ([]float32, bool)
}

// QueryBuilder assembles a query vector for a schema.
type QueryBuilder interface {
	BuildQuery(in QueryInput) []float32
}

// QueryBuilderFunc adapts a function to QueryBuilder.
type QueryBuilderFunc func(in QueryInput) []float32

// BuildQuery implements QueryBuilder.
func (f QueryBuilderFunc) BuildQuery(in QueryInput) []float32 { return f(in) }

// Schema describes the feature vector layout shared by every pose of a database.
// Databases are cache-compatible only when they point to the same Schema.
type Schema struct {
	ID          string
	Cardinality int
	SampleRate  float64
	DefaultRole Role
	Roles       []Role

	// Weights scales each dimension in the cost; nil means all ones.
	Weights []float32

	Builder QueryBuilder

	// SpeedChannel is the offset of a (vx, vz) pair used for play rate
	// estimation, or -1.
	SpeedChannel int

	// Offsets are the trajectory sample times for trajectory schemas.
	Offsets []float64
}

// Validate checks the schema is internally consistent.
func (s *Schema) Validate() error {
	if s.Cardinality <= 0 {
		return fmt.Errorf("schema %s: invalid cardinality %d", s.ID, s.Cardinality)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("schema %s: invalid sample rate %f", s.ID, s.SampleRate)
	}
	if s.Weights != nil && len(s.Weights) != s.Cardinality {
		return fmt.Errorf("schema %s: %d weights for cardinality %d: %w", s.ID, len(s.Weights), s.Cardinality, ErrDimensionMismatch)
	}
	if s.SpeedChannel >= 0 && s.SpeedChannel+1 >= s.Cardinality {
		return fmt.Errorf("schema %s: speed channel %d out of range", s.ID, s.SpeedChannel)
	}
	return nil
}

// RoleList returns the roles the schema binds.
func (s *Schema) RoleList() []Role {
	if len(s.Roles) > 0 {
		return s.Roles
	}
	if s.DefaultRole != "" {
		return []Role{s.DefaultRole}
	}
	return []Role{DefaultRole}
}

// EffectiveWeights returns the per-dimension weights.
func (s *Schema) EffectiveWeights() []float32 {
	if s.Weights != nil {
		return s.Weights
	}
	w := make([]float32, s.Cardinality)
	for i := range w {
		w[i] = 1
	}
	return w
}

// Speed reads the planar speed stored at SpeedChannel.
func (s *Schema) Speed(values []float32) (float64, bool) {
	if s.SpeedChannel < 0 || s.SpeedChannel+1 >= len(values) {
		return 0, false
	}
	vx := float64(values[s.SpeedChannel])
	vz := float64(values[s.SpeedChannel+1])
	return math.Hypot(vx, vz), true
}

// TrajectorySchema creates a schema whose features are relative position and
// velocity of the default role at each offset.
func TrajectorySchema(id string, offsets []float64, sampleRate float64) *Schema {
	s := &Schema{
		ID:           id,
		Cardinality:  len(offsets) * featuresPerSample,
		SampleRate:   sampleRate,
		DefaultRole:  DefaultRole,
		Roles:        []Role{DefaultRole},
		SpeedChannel: -1,
		Offsets:      append([]float64(nil), offsets...),
	}

	best := math.Inf(1)
	for i, off := range offsets {
		if d := math.Abs(off); d < best {
			best = d
			s.SpeedChannel = i*featuresPerSample + 2
		}
	}

	s.Builder = &TrajectoryQuery{Schema: s}
	return s
}

// TrajectoryQuery samples the default role's trajectory at the schema offsets.
type TrajectoryQuery struct {
	Schema *Schema
}

// BuildQuery implements QueryBuilder.
func (q *TrajectoryQuery) BuildQuery(in QueryInput) []float32 {
	s := q.Schema
	provider := in.History(s.RoleList()[0])
	if provider == nil {
		return nil
	}

	origin, ok := provider.GetPoseAt(0)
	if !ok {
		return nil
	}
	cached, useCached := in.CachedPoseValues(s)
	useCached = useCached && len(cached) == s.Cardinality

	out := make([]float32, s.Cardinality)
	for i, off := range s.Offsets {
		base := i * featuresPerSample
		if off < 0 && useCached {
			copy(out[base:base+featuresPerSample], cached[base:base+featuresPerSample])
			continue
		}

		sample, ok := provider.GetPoseAt(off)
		if !ok {
			// Not enough history yet: assume the character stood still.
			sample = trajectory.Sample{Time: off, Position: origin.Position}
		}
		rel := sample.Position.Sub(origin.Position)
		out[base] = float32(rel.X)
		out[base+1] = float32(rel.Z)
		out[base+2] = float32(sample.Velocity.X)
		out[base+3] = float32(sample.Velocity.Z)
	}
	return out
}
