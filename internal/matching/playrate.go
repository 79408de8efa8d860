package matching

import (
	"log"

	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/search"
)

// playRateEpsilon is the smallest time or speed treated as non-zero.
const playRateEpsilon = 1e-4

// PlayRateInput is everything WantedPlayRate looks at.
type PlayRateInput struct {
	Result search.Result

	// Query is the query built this tick for the result's schema, if any.
	Query []float32

	PlayRate        posedb.Interval
	SpeedMultiplier float64
	Event           *search.Event

	// Previous is the rate computed on the last tick.
	Previous float64
}

// WantedPlayRate returns the rate the selected motion should play at.
//
// An event search result plays at the ratio of the time the motion needs
// to reach the event to the time the caller wants to reach it; once the
// event is reached the previous rate is kept. A degenerate interval is a
// fixed rate divided by the speed multiplier. Otherwise the query speed is
// compared with the pose speed and the ratio is clamped into the interval.
func WantedPlayRate(in PlayRateInput) float64 {
	if rate, ok := eventPlayRate(in); ok {
		return rate
	}

	r := in.PlayRate
	if r.Min > r.Max || r.Min <= 0 {
		log.Printf("Warning: invalid play rate interval [%g, %g], using 1", r.Min, r.Max)
		return 1
	}
	if r.IsDegenerate() {
		if in.SpeedMultiplier != 0 {
			return r.Min / in.SpeedMultiplier
		}
		return r.Min
	}

	prev := in.Previous
	if prev <= 0 {
		prev = 1
	}
	if !in.Result.IsValid() || in.Query == nil {
		return r.Clamp(prev)
	}

	schema := in.Result.Database.Schema
	querySpeed, ok := schema.Speed(in.Query)
	if !ok {
		return r.Clamp(prev)
	}
	poseSpeed, ok := schema.Speed(in.Result.Database.PoseValues(in.Result.PoseIdx))
	if !ok {
		return r.Clamp(prev)
	}
	if poseSpeed < playRateEpsilon {
		return r.Clamp(1)
	}
	return r.Clamp(querySpeed / poseSpeed)
}

// eventPlayRate handles results found by an event search for the
// requested tag. It reports false when the result is not one.
func eventPlayRate(in PlayRateInput) (float64, bool) {
	res := in.Result
	if in.Event == nil || !res.IsValid() || !res.IsEventSearchResult() {
		return 0, false
	}
	idx := res.Database.Index()
	if idx == nil || !idx.HasEvent(res.EventPoseIdx, in.Event.Tag) {
		return 0, false
	}
	asset := idx.AssetForPose(res.EventPoseIdx)
	if asset == nil {
		return 0, false
	}

	actual := asset.TimeFromPoseIndex(res.EventPoseIdx, res.Database.Schema.SampleRate) - res.AssetTime
	desired := in.Event.TimeToEvent
	if actual <= playRateEpsilon || desired <= playRateEpsilon {
		return in.Previous, true
	}
	return actual / desired, true
}
