package matching

import (
	"log"
	"slices"

	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/search"
)

// Matcher selects poses. It is safe for concurrent use as long as every
// goroutine passes its own State.
type Matcher struct {
	resolver *search.Resolver
	hook     search.TraceHook
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithTraceHook sends every tick's trace, candidates included, to hook.
func WithTraceHook(hook search.TraceHook) Option {
	return func(m *Matcher) { m.hook = hook }
}

// NewMatcher creates a matcher requesting index builds from builds. A nil
// builds only searches databases that are already built.
func NewMatcher(builds search.BuildService, opts ...Option) *Matcher {
	m := &Matcher{resolver: search.NewResolver(builds)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update runs one tick and mutates state in place. An invalid result in
// the output means "hold the current pose".
func (m *Matcher) Update(state *State, req Request) Output {
	dt := max(req.DeltaTime, 0)
	p := req.Params

	ctx := search.NewContext(search.Config{
		Roles:                req.Roles,
		History:              &state.History,
		ReselectionPenalty:   p.ReselectionPenalty,
		PoseJumpThreshold:    p.PoseJumpThreshold,
		Event:                req.Event,
		PlayRate:             p.PlayRate,
		UseCachedChannelData: p.UseCachedChannelData,
		CollectCandidates:    m.hook != nil,
	})

	subsets := m.resolver.Resolve(req.Assets, ctx)

	force, invalidate := EvaluateInterrupt(p.Interrupt, state.Result.Database, subsets.Requested())
	if invalidate {
		state.Result = search.InvalidResult()
	}
	previous := state.Result
	state.advance(dt)

	out := Output{ForceInterrupt: force}

	if state.Result.IsValid() && state.ElapsedPoseSearchTime < p.Throttle {
		state.ElapsedPoseSearchTime += dt
		state.Result.IsContinuingPose = true
		out.AsyncBuildInProgress = ctx.IsAsyncBuildInProgress()
		return m.finish(state, req, ctx, out)
	}

	state.ElapsedPoseSearchTime = 0
	out.Searched = true

	cp := m.continuingPose(state, req, invalidate)
	ctx.SetContinuing(cp)

	best := search.InvalidResult()
	if !force && cp != nil {
		out.ContinuingSearched = true
		cont := m.resolver.ResolveContinuing(req.Assets, cp.Motion, ctx)
		for _, e := range cont.Entries() {
			if r := search.SearchContinuingPose(e.Database, ctx); r.BetterThan(best) {
				best = r
			}
		}
	}

	var reference *posedb.Database
	for _, e := range subsets.Entries() {
		db := e.Database
		if reference == nil {
			reference = db
		} else if !sameRoles(reference.Schema, db.Schema) {
			log.Printf("Warning: database %s roles differ from %s, skipping", db.Name, reference.Name)
			continue
		}
		ctx.SetAssetsToConsider(e.Assets)
		if r := search.Search(db, ctx); r.BetterThan(best) {
			best = r
		}
	}
	ctx.SetAssetsToConsider(nil)

	out.AsyncBuildInProgress = ctx.IsAsyncBuildInProgress()
	switch {
	case best.IsValid():
		out.Jumped = previous.IsValid() && !best.IsContinuingPose &&
			(best.Database != state.Result.Database || best.PoseIdx != state.Result.PoseIdx)
		state.Result = best
	case out.AsyncBuildInProgress:
		state.Result = search.InvalidResult()
	case state.Result.IsValid():
		state.Result.IsContinuingPose = true
	}

	return m.finish(state, req, ctx, out)
}

// continuingPose returns the pose that keeps playing: the state's result,
// or the caller's playing asset when the state has none.
func (m *Matcher) continuingPose(state *State, req Request, invalidated bool) *search.ContinuingPose {
	if cp, ok := state.Result.ContinuingPose(); ok {
		return &cp
	}
	if invalidated || req.Playing == nil || req.Playing.Motion == nil {
		return nil
	}
	pa := req.Playing
	return &search.ContinuingPose{
		Motion:          pa.Motion,
		AssetTime:       pa.Motion.SampleAt(pa.AccumulatedTime),
		Mirrored:        pa.Mirrored,
		BlendParameters: pa.BlendParameters,
		Source:          search.InvalidResult(),
	}
}

// finish computes the play rate, records the selection and reports the tick.
func (m *Matcher) finish(state *State, req Request, ctx *search.Context, out Output) Output {
	p := req.Params

	var query []float32
	if state.Result.IsValid() {
		query, _ = ctx.CachedQuery(state.Result.Database.Schema)
	}
	state.WantedPlayRate = WantedPlayRate(PlayRateInput{
		Result:          state.Result,
		Query:           query,
		PlayRate:        p.PlayRate,
		SpeedMultiplier: p.SpeedMultiplier,
		Event:           req.Event,
		Previous:        state.WantedPlayRate,
	})

	state.History.Update(state.Result.Database, state.Result.PoseIdx, max(req.DeltaTime, 0), p.ReselectionWindow)

	out.Result = state.Result
	out.WantedPlayRate = state.WantedPlayRate

	if m.hook != nil {
		m.hook.OnTick(search.TickTrace{
			DeltaTime:            req.DeltaTime,
			Result:               out.Result,
			WantedPlayRate:       out.WantedPlayRate,
			Searched:             out.Searched,
			ContinuingSearched:   out.ContinuingSearched,
			ForceInterrupt:       out.ForceInterrupt,
			Jumped:               out.Jumped,
			AsyncBuildInProgress: out.AsyncBuildInProgress,
			QueryBuilds:          ctx.QueryBuilds(),
			QueryCacheHits:       ctx.QueryCacheHits(),
			Candidates:           ctx.Candidates(),
		})
	}
	return out
}

func sameRoles(a, b *posedb.Schema) bool {
	if a == b {
		return true
	}
	ra, rb := slices.Clone(a.RoleList()), slices.Clone(b.RoleList())
	slices.Sort(ra)
	slices.Sort(rb)
	return slices.Equal(ra, rb)
}
