/*
Package search selects the best pose of one database for a query.

A Context is created per tick. It binds roles to trajectory providers,
caches one query vector per schema, and tracks the best cost seen so far
so later databases can be pruned. Search runs the full search of a
database and SearchContinuingPose evaluates only the pose the previous
selection would reach by continuing to play. The Resolver turns the
caller's asset list into the databases, and subsets of their motions, to
search this tick.
*/
package search

import (
	"fmt"
	"math"

	"github.com/khanglvm/posematch/internal/posedb"
)

// InvalidIndex marks a missing pose.
const InvalidIndex = posedb.InvalidIndex

// Cost is a pose cost split into the feature dissimilarity and the sum of
// addends (pose addend, database bias, reselection penalty).
type Cost struct {
	Dissimilarity float32
	Addend        float32
}

// InvalidCost sorts after every valid cost.
func InvalidCost() Cost {
	return Cost{Dissimilarity: float32(math.Inf(1))}
}

// Total returns the comparable cost.
func (c Cost) Total() float32 { return c.Dissimilarity + c.Addend }

// IsValid reports whether the cost is finite.
func (c Cost) IsValid() bool {
	t := c.Total()
	return !math.IsInf(float64(t), 0) && !math.IsNaN(float64(t))
}

func (c Cost) String() string {
	if !c.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%.4f (%.4f%+.4f)", c.Total(), c.Dissimilarity, c.Addend)
}

// Result is the outcome of a search.
type Result struct {
	Database        *posedb.Database
	PoseIdx         int
	EventPoseIdx    int
	Cost            Cost
	AssetTime       float64
	Mirrored        bool
	BlendParameters posedb.Vec3

	IsContinuingPose bool
}

// InvalidResult returns a result that loses against any valid one.
func InvalidResult() Result {
	return Result{PoseIdx: InvalidIndex, EventPoseIdx: InvalidIndex, Cost: InvalidCost()}
}

// IsValid reports whether the result references a pose.
func (r Result) IsValid() bool {
	return r.Database != nil && r.PoseIdx != InvalidIndex && r.Cost.IsValid()
}

// IsEventSearchResult reports whether the result was found by an event search.
func (r Result) IsEventSearchResult() bool { return r.EventPoseIdx != InvalidIndex }

// BetterThan reports whether r should replace o. Invalid results never
// win; equal costs in one database go to the lower pose index, otherwise o
// is kept.
func (r Result) BetterThan(o Result) bool {
	if !r.IsValid() {
		return false
	}
	if !o.IsValid() {
		return true
	}
	rc, oc := r.Cost.Total(), o.Cost.Total()
	if rc != oc {
		return rc < oc
	}
	return r.Database == o.Database && r.PoseIdx < o.PoseIdx
}

// IndexAsset returns the index asset of the selected pose, or nil.
func (r Result) IndexAsset() *posedb.IndexAsset {
	if r.Database == nil {
		return nil
	}
	idx := r.Database.Index()
	if idx == nil {
		return nil
	}
	return idx.AssetForPose(r.PoseIdx)
}

// Motion returns the source motion of the selected pose, or nil.
func (r Result) Motion() *posedb.Motion {
	if a := r.IndexAsset(); a != nil {
		return a.Motion
	}
	return nil
}

// ContinuingPose describes what is playing now, independent of any database.
type ContinuingPose struct {
	Motion          *posedb.Motion
	AssetTime       float64
	Mirrored        bool
	BlendParameters posedb.Vec3

	// Source is the result the pose was reconstructed from, if any.
	Source Result
}

// ContinuingPose reinterprets a valid result as a playing motion.
func (r Result) ContinuingPose() (ContinuingPose, bool) {
	a := r.IndexAsset()
	if !r.IsValid() || a == nil {
		return ContinuingPose{}, false
	}
	return ContinuingPose{
		Motion:          a.Motion,
		AssetTime:       r.AssetTime,
		Mirrored:        r.Mirrored,
		BlendParameters: r.BlendParameters,
		Source:          r,
	}, true
}

func (r Result) String() string {
	if !r.IsValid() {
		return "invalid"
	}
	name := ""
	if m := r.Motion(); m != nil {
		name = m.Name
	}
	return fmt.Sprintf("%s#%d %s@%.3fs cost=%s", r.Database.Name, r.PoseIdx, name, r.AssetTime, r.Cost)
}
