package sim

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/khanglvm/posematch/internal/matching"
	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/search"
	"github.com/khanglvm/posematch/internal/trajectory"
)

// Segment asks the character to move at Velocity for Duration seconds.
type Segment struct {
	Duration float64
	Velocity trajectory.Point

	// Event, when set, asks for a pose tagged Event when the segment ends.
	Event string
}

// Scenario is a scripted sequence of segments.
type Scenario struct {
	Name     string
	Segments []Segment
}

// Duration returns the total scripted time.
func (s Scenario) Duration() float64 {
	var d float64
	for _, seg := range s.Segments {
		d += seg.Duration
	}
	return d
}

// segmentAt returns the segment active at t and the time it ends.
func (s Scenario) segmentAt(t float64) (int, float64) {
	var end float64
	for i, seg := range s.Segments {
		end += seg.Duration
		if t < end {
			return i, end
		}
	}
	return len(s.Segments) - 1, end
}

// Locomotion is the default scenario: stand, walk, run, turn, then walk
// into a stop.
func Locomotion() Scenario {
	return Scenario{
		Name: "locomotion",
		Segments: []Segment{
			{Duration: 1, Velocity: trajectory.Point{}},
			{Duration: 2, Velocity: trajectory.Point{Z: 1.5}},
			{Duration: 2, Velocity: trajectory.Point{Z: 4}},
			{Duration: 1.5, Velocity: trajectory.Point{X: -1.06, Z: 1.06}},
			{Duration: 1, Velocity: trajectory.Point{X: 1.2}},
			{Duration: 1, Velocity: trajectory.Point{Z: 1.5}},
			{Duration: 1, Velocity: trajectory.Point{}, Event: "stop"},
		},
	}
}

// Tick is the outcome of one simulated update.
type Tick struct {
	Time    float64
	Segment int
	Output  matching.Output
	Elapsed time.Duration
}

// Summary aggregates a run.
type Summary struct {
	Scenario           string
	Ticks              int
	Searches           int
	ContinuingSearches int
	Jumps              int
	Invalid            int
	AsyncBuilds        int

	// Selections counts ticks per selected motion.
	Selections map[string]int

	Elapsed time.Duration
}

// Driver runs scenarios against a Matcher.
type Driver struct {
	Matcher *matching.Matcher
	Assets  []posedb.Asset
	Params  matching.Params

	// DeltaTime is the fixed tick length; zero means 30 Hz.
	DeltaTime float64

	// Responsiveness is how quickly, per second, the character's velocity
	// follows the scripted one. Zero snaps immediately.
	Responsiveness float64
}

// Run plays sc tick by tick with a fresh State, calling fn after every
// tick when it is not nil. It stops early when ctx is cancelled.
func (d *Driver) Run(ctx context.Context, sc Scenario, fn func(Tick)) (Summary, error) {
	if d.Matcher == nil {
		return Summary{}, errors.New("sim: driver has no matcher")
	}
	dt := d.DeltaTime
	if dt <= 0 {
		dt = 1.0 / 30
	}

	sum := Summary{Scenario: sc.Name, Selections: make(map[string]int)}
	if len(sc.Segments) == 0 {
		return sum, nil
	}

	rec := trajectory.NewRecorder(2)
	roles := []search.RoleBinding{{Role: posedb.DefaultRole, History: rec}}
	state := matching.NewState()

	var velocity trajectory.Point
	steps := int(math.Round(sc.Duration() / dt))
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		now := float64(i) * dt
		segIdx, segEnd := sc.segmentAt(now)
		seg := sc.Segments[segIdx]

		rec.SetDesiredVelocity(seg.Velocity)
		velocity = follow(velocity, seg.Velocity, d.Responsiveness, dt)
		rec.Advance(dt, velocity)

		req := matching.Request{
			Assets:    d.Assets,
			DeltaTime: dt,
			Roles:     roles,
			Params:    d.Params,
		}
		if seg.Event != "" {
			req.Event = &search.Event{Tag: seg.Event, TimeToEvent: max(segEnd-now-dt, 0)}
		}

		start := time.Now()
		out := d.Matcher.Update(state, req)
		elapsed := time.Since(start)

		sum.add(out, elapsed)
		if fn != nil {
			fn(Tick{Time: now + dt, Segment: segIdx, Output: out, Elapsed: elapsed})
		}
	}
	return sum, nil
}

func follow(current, target trajectory.Point, responsiveness, dt float64) trajectory.Point {
	if responsiveness <= 0 {
		return target
	}
	alpha := math.Min(responsiveness*dt, 1)
	return current.Add(target.Sub(current).Scale(alpha))
}

func (s *Summary) add(out matching.Output, elapsed time.Duration) {
	s.Ticks++
	s.Elapsed += elapsed
	if out.Searched {
		s.Searches++
	}
	if out.ContinuingSearched {
		s.ContinuingSearches++
	}
	if out.Jumped {
		s.Jumps++
	}
	if out.AsyncBuildInProgress {
		s.AsyncBuilds++
	}
	if !out.Result.IsValid() {
		s.Invalid++
		return
	}
	if a := out.Result.IndexAsset(); a != nil && a.Motion != nil {
		s.Selections[a.Motion.Name]++
	}
}
