/*
Package sim generates synthetic locomotion databases and drives a Matcher
along scripted trajectories.

Motions are described by a root velocity profile. Every frame stores, for
each schema offset, the root displacement and velocity relative to the
frame, which is the layout posedb.TrajectorySchema queries use. The
generated data is deterministic so tests and benchmarks can compare runs.
*/
package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/trajectory"
)

// DefaultOffsets samples one second of past and future.
var DefaultOffsets = []float64{-0.5, -0.2, 0, 0.2, 0.5, 1.0}

// integrationStep is the root motion integration step in seconds.
const integrationStep = 1.0 / 120

// Profile returns the root velocity at a motion-local time.
type Profile func(t float64) trajectory.Point

// MotionSpec describes one synthetic motion.
type MotionSpec struct {
	Name               string
	Kind               posedb.MotionKind
	Length             float64
	Looping            bool
	DisableReselection bool

	// Profile drives the default variant. Blend spaces use Blends instead.
	Profile Profile

	// Mirror adds a variant mirrored across the forward axis.
	Mirror bool

	// Blends maps blend sample coordinates to their profiles.
	Blends []BlendSample

	CostAddend float32

	// Events tags frames by motion-local time.
	Events map[string][]float64

	// BlockTail forbids transitions into the last BlockTail seconds.
	BlockTail float64
}

// BlendSample is one sample of a blend space.
type BlendSample struct {
	Blend   posedb.Vec3
	Profile Profile
}

// Options configures Generate.
type Options struct {
	Name       string
	SchemaID   string
	SampleRate float64
	Offsets    []float64
	Mode       posedb.Mode

	// Noise adds deterministic jitter of this amplitude to every feature.
	Noise float64
	Seed  int64
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "locomotion"
	}
	if o.SchemaID == "" {
		o.SchemaID = "trajectory"
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 30
	}
	if len(o.Offsets) == 0 {
		o.Offsets = DefaultOffsets
	}
	return o
}

// Constant returns a profile moving at v.
func Constant(v trajectory.Point) Profile {
	return func(float64) trajectory.Point { return v }
}

// Ramp returns a profile going linearly from a to b over length seconds.
func Ramp(a, b trajectory.Point, length float64) Profile {
	return func(t float64) trajectory.Point {
		alpha := math.Min(math.Max(t/length, 0), 1)
		return a.Add(b.Sub(a).Scale(alpha))
	}
}

// Arc returns a profile turning at rate radians per second while moving
// at speed, starting forward (+Z).
func Arc(speed, rate float64) Profile {
	return func(t float64) trajectory.Point {
		a := rate * t
		return trajectory.Point{X: speed * math.Sin(a), Z: speed * math.Cos(a)}
	}
}

// LocomotionSpecs returns the default motion set: idle, walk, run, a left
// turn mirrored to the right, start and stop transitions and a strafe
// blend space.
func LocomotionSpecs() []MotionSpec {
	forward := func(s float64) trajectory.Point { return trajectory.Point{Z: s} }
	return []MotionSpec{
		{Name: "idle", Length: 2, Looping: true, Profile: Constant(trajectory.Point{}), CostAddend: 0.02},
		{Name: "walk_forward", Length: 1.2, Looping: true, Profile: Constant(forward(1.5))},
		{Name: "run_forward", Length: 0.8, Looping: true, Profile: Constant(forward(4)), CostAddend: 0.05},
		{Name: "walk_turn_left", Length: 1.5, Profile: Arc(1.5, -math.Pi/3), Mirror: true, BlockTail: 0.1},
		{
			Name: "walk_start", Length: 0.8, Profile: Ramp(trajectory.Point{}, forward(1.5), 0.8),
			Events: map[string][]float64{"foot_plant": {0.4}}, BlockTail: 0.1,
		},
		{
			Name: "walk_stop", Length: 1, Profile: Ramp(forward(1.5), trajectory.Point{}, 0.7),
			DisableReselection: true,
			Events:             map[string][]float64{"stop": {0.7}},
		},
		{
			Name: "strafe", Kind: posedb.KindBlendSpace, Length: 1, Looping: true,
			Blends: []BlendSample{
				{Blend: posedb.Vec3{X: -1}, Profile: Constant(trajectory.Point{X: -1.2})},
				{Blend: posedb.Vec3{X: 1}, Profile: Constant(trajectory.Point{X: 1.2})},
			},
		},
	}
}

// Generate builds an unbuilt database from specs. With no specs it uses
// LocomotionSpecs.
func Generate(opts Options, specs ...MotionSpec) (*posedb.Database, error) {
	opts = opts.withDefaults()
	if len(specs) == 0 {
		specs = LocomotionSpecs()
	}

	schema := posedb.TrajectorySchema(opts.SchemaID, opts.Offsets, opts.SampleRate)
	db := posedb.NewDatabase(opts.Name, schema)
	db.Mode = opts.Mode

	rng := rand.New(rand.NewSource(opts.Seed))
	for _, spec := range specs {
		m, err := motionFromSpec(spec, opts, rng)
		if err != nil {
			return nil, err
		}
		if err := db.Add(m); err != nil {
			return nil, fmt.Errorf("add motion %s: %w", spec.Name, err)
		}
	}
	return db, nil
}

func motionFromSpec(spec MotionSpec, opts Options, rng *rand.Rand) (*posedb.Motion, error) {
	if spec.Length <= 0 {
		return nil, fmt.Errorf("motion %s: length must be positive", spec.Name)
	}
	if spec.Profile == nil && len(spec.Blends) == 0 {
		return nil, fmt.Errorf("motion %s: no velocity profile", spec.Name)
	}

	m := &posedb.Motion{
		Name:               spec.Name,
		Kind:               spec.Kind,
		Looping:            spec.Looping,
		DisableReselection: spec.DisableReselection,
		Length:             spec.Length,
	}

	if spec.Profile != nil {
		m.Variants = append(m.Variants, posedb.Variant{Frames: frames(spec, spec.Profile, opts, rng)})
		if spec.Mirror {
			m.Variants = append(m.Variants, posedb.Variant{
				Mirrored: true,
				Frames:   frames(spec, mirror(spec.Profile), opts, rng),
			})
		}
	}
	for _, b := range spec.Blends {
		m.Variants = append(m.Variants, posedb.Variant{Blend: b.Blend, Frames: frames(spec, b.Profile, opts, rng)})
	}
	return m, nil
}

func mirror(p Profile) Profile {
	return func(t float64) trajectory.Point {
		v := p(t)
		v.X = -v.X
		return v
	}
}

// frameCount returns how many frames a motion has. Looping motions do not
// repeat their first frame at the end.
func frameCount(length, rate float64, looping bool) int {
	n := int(math.Round(length * rate))
	if !looping {
		n++
	}
	return max(n, 1)
}

func frames(spec MotionSpec, p Profile, opts Options, rng *rand.Rand) []posedb.Frame {
	n := frameCount(spec.Length, opts.SampleRate, spec.Looping)
	out := make([]posedb.Frame, n)

	eventFrames := make(map[int][]string)
	for tag, times := range spec.Events {
		for _, t := range times {
			f := int(math.Round(t * opts.SampleRate))
			if f >= 0 && f < n {
				eventFrames[f] = append(eventFrames[f], tag)
			}
		}
	}
	blockFrom := n
	if spec.BlockTail > 0 {
		blockFrom = n - int(math.Round(spec.BlockTail*opts.SampleRate))
	}

	for i := range out {
		t := float64(i) / opts.SampleRate
		features := make([]float32, 0, len(opts.Offsets)*4)
		for _, off := range opts.Offsets {
			dx, dz := displacement(p, t, off, spec.Length, spec.Looping)
			v := velocityAt(p, t+off, spec.Length, spec.Looping)
			features = append(features, float32(dx), float32(dz), float32(v.X), float32(v.Z))
		}
		if opts.Noise > 0 {
			for j := range features {
				features[j] += float32((rng.Float64()*2 - 1) * opts.Noise)
			}
		}
		out[i] = posedb.Frame{
			Features:        features,
			CostAddend:      spec.CostAddend,
			BlockTransition: i >= blockFrom,
			Events:          eventFrames[i],
		}
	}
	return out
}

// velocityAt evaluates p at a time that may lie outside the motion.
// Looping motions wrap; others hold their boundary velocity.
func velocityAt(p Profile, t, length float64, looping bool) trajectory.Point {
	if looping {
		t = math.Mod(t, length)
		if t < 0 {
			t += length
		}
	} else {
		t = math.Min(math.Max(t, 0), length)
	}
	return p(t)
}

// displacement integrates the root velocity from t to t+off.
func displacement(p Profile, t, off, length float64, looping bool) (float64, float64) {
	if off == 0 {
		return 0, 0
	}
	steps := max(int(math.Ceil(math.Abs(off)/integrationStep)), 1)
	h := off / float64(steps)

	var pos trajectory.Point
	for i := 0; i < steps; i++ {
		mid := t + (float64(i)+0.5)*h
		pos = pos.Add(velocityAt(p, mid, length, looping).Scale(h))
	}
	return pos.X, pos.Z
}
