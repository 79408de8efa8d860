/*
Package matching runs motion matching one tick at a time.

A Matcher is stateless apart from its collaborators and may be shared; all
per-character data lives in a State that the caller owns and passes to
every Update. Each tick decides whether to search, runs the continuing
pose and full searches over the resolved databases, and stores the best
result together with the play rate it should be played at.
*/
package matching

import (
	"math"

	"github.com/khanglvm/posematch/internal/history"
	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/search"
)

// Params are the per-tick tunables.
type Params struct {
	// Throttle is the minimum time between searches while a valid
	// continuing pose exists. Zero searches every tick.
	Throttle float64

	PoseJumpThreshold posedb.Interval

	ReselectionWindow  float64
	ReselectionPenalty float32

	PlayRate        posedb.Interval
	SpeedMultiplier float64

	Interrupt            InterruptMode
	UseCachedChannelData bool
}

// DefaultParams returns the tunables used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Throttle:           0.1,
		PoseJumpThreshold:  posedb.Interval{Min: -0.2, Max: 0.2},
		ReselectionWindow:  1,
		ReselectionPenalty: 0.5,
		PlayRate:           posedb.Interval{Min: 0.8, Max: 1.2},
		Interrupt:          InterruptOnDatabaseChange,
	}
}

// PlayingAsset describes what is playing when the State holds no result,
// e.g. after a character switched from another animation system.
type PlayingAsset struct {
	Motion          *posedb.Motion
	AccumulatedTime float64
	Mirrored        bool
	BlendParameters posedb.Vec3
}

// Request is the input of one tick.
type Request struct {
	Assets    []posedb.Asset
	DeltaTime float64
	Roles     []search.RoleBinding
	Params    Params

	Event   *search.Event
	Playing *PlayingAsset
}

// Output is the outcome of one tick.
type Output struct {
	Result         search.Result
	WantedPlayRate float64

	Searched             bool
	ContinuingSearched   bool
	Jumped               bool
	ForceInterrupt       bool
	AsyncBuildInProgress bool
}

// State is the persistent matching state of one character.
type State struct {
	Result                search.Result
	ElapsedPoseSearchTime float64
	WantedPlayRate        float64
	History               history.PoseIndicesHistory
}

// NewState returns a state that searches on its first update.
func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset forgets the current selection and history.
func (s *State) Reset() {
	s.Result = search.InvalidResult()
	s.ElapsedPoseSearchTime = math.Inf(1)
	s.WantedPlayRate = 1
	s.History.Reset()
}

// advance moves the current result along its asset by dt at the current
// play rate, keeping its cost.
func (s *State) advance(dt float64) {
	if !s.Result.IsValid() || dt <= 0 {
		return
	}
	asset := s.Result.IndexAsset()
	if asset == nil {
		s.Result = search.InvalidResult()
		return
	}
	t := asset.WrapTime(s.Result.AssetTime + dt*s.WantedPlayRate)
	s.Result.AssetTime = t
	s.Result.PoseIdx = asset.PoseIndexFromTime(t, s.Result.Database.Schema.SampleRate)
	s.Result.EventPoseIdx = search.InvalidIndex
}
