package search

import (
	"strings"

	"github.com/khanglvm/posematch/internal/posedb"
)

// CandidateFlag describes how a candidate was treated.
type CandidateFlag uint8

const (
	// CandidateValid is set when a full cost was computed.
	CandidateValid CandidateFlag = 1 << iota
	// CandidateContinuing marks the continuing pose candidate.
	CandidateContinuing
	// CandidatePruned is set when the cost could not beat the best cost.
	CandidatePruned
	// CandidateBlockTransition marks poses that forbid transitions.
	CandidateBlockTransition
	// CandidateNonSelectable marks poses excluded around the continuing pose.
	CandidateNonSelectable
	// CandidateEvent marks candidates evaluated by an event search.
	CandidateEvent
)

func (f CandidateFlag) String() string {
	names := []struct {
		flag CandidateFlag
		name string
	}{
		{CandidateValid, "valid"},
		{CandidateContinuing, "continuing"},
		{CandidatePruned, "pruned"},
		{CandidateBlockTransition, "block-transition"},
		{CandidateNonSelectable, "non-selectable"},
		{CandidateEvent, "event"},
	}
	var parts []string
	for _, n := range names {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Candidate is one evaluated pose.
type Candidate struct {
	Database *posedb.Database
	PoseIdx  int
	Cost     Cost
	Flags    CandidateFlag
}

// TickTrace summarizes one matcher update.
type TickTrace struct {
	DeltaTime      float64
	Result         Result
	WantedPlayRate float64

	Searched             bool
	ContinuingSearched   bool
	ForceInterrupt       bool
	Jumped               bool
	AsyncBuildInProgress bool

	QueryBuilds    int
	QueryCacheHits int

	Candidates []Candidate
}

// TraceHook receives every tick's trace. Implementations must not block.
type TraceHook interface {
	OnTick(trace TickTrace)
}

// HookFunc adapts a function to TraceHook.
type HookFunc func(trace TickTrace)

// OnTick implements TraceHook.
func (f HookFunc) OnTick(trace TickTrace) { f(trace) }

// Hooks fans a trace out to several hooks.
type Hooks []TraceHook

// OnTick implements TraceHook.
func (hs Hooks) OnTick(trace TickTrace) {
	for _, h := range hs {
		if h != nil {
			h.OnTick(trace)
		}
	}
}
