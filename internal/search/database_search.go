package search

import (
	"log"
	"math"
	"sort"

	"github.com/khanglvm/posematch/internal/posedb"
)

// timeEpsilon absorbs float error when converting times to pose indexes.
const timeEpsilon = 1e-6

// Search runs the full search of db against the context's query. It
// updates the context's best cost and returns an invalid result when the
// database is not built or nothing can beat the current best cost.
func Search(db *posedb.Database, ctx *Context) Result {
	idx := db.Index()
	if idx == nil {
		ctx.SetAsyncBuildInProgress()
		return InvalidResult()
	}
	if idx.NumPoses() == 0 {
		return InvalidResult()
	}
	if db.Mode == posedb.ModeEventOnly && ctx.Event() == nil {
		return InvalidResult()
	}

	// no pose of this database can beat the current best
	if ctx.BestCost() <= idx.MinCostAddend+db.BaseCostBias {
		return InvalidResult()
	}

	query := ctx.GetOrBuildQuery(db)
	if query == nil {
		return InvalidResult()
	}

	s := newSearcher(db, idx, ctx, query)
	switch {
	case ctx.Event() != nil:
		s.searchEvent()
	case db.Mode == posedb.ModeVPTree:
		s.searchVPTree()
	default:
		s.searchBruteForce()
	}

	ctx.UpdateBestCost(s.result.Cost)
	return s.result
}

// SearchContinuingPose evaluates the pose the continuing motion reaches in db.
// The result is invalid when the motion cannot be mapped into db.
func SearchContinuingPose(db *posedb.Database, ctx *Context) Result {
	cp := ctx.Continuing()
	if cp == nil {
		return InvalidResult()
	}
	idx := db.Index()
	if idx == nil {
		ctx.SetAsyncBuildInProgress()
		return InvalidResult()
	}
	if ctx.BestCost() <= idx.MinCostAddend+db.ContinuingPoseCostBias {
		return InvalidResult()
	}

	pose := db.GetPoseIndex(cp.Motion, cp.AssetTime, cp.Mirrored, cp.BlendParameters)
	if pose == InvalidIndex {
		return InvalidResult()
	}

	query := ctx.GetOrBuildQuery(db)
	if query == nil {
		return InvalidResult()
	}

	addend := idx.Poses[pose].CostAddend + db.ContinuingPoseCostBias
	d, ok := weightedDistance(query, idx.PoseValues(pose), idx.Weights, ctx.BestCost()-addend)
	if !ok {
		ctx.addCandidate(db, pose, InvalidCost(), CandidateContinuing|CandidatePruned)
		return InvalidResult()
	}
	cost := Cost{Dissimilarity: d, Addend: addend}
	ctx.addCandidate(db, pose, cost, CandidateContinuing|CandidateValid)
	ctx.UpdateBestCost(cost)

	asset := idx.AssetForPose(pose)
	return Result{
		Database:         db,
		PoseIdx:          pose,
		EventPoseIdx:     InvalidIndex,
		Cost:             cost,
		AssetTime:        asset.WrapTime(cp.AssetTime),
		Mirrored:         asset.Mirrored,
		BlendParameters:  cp.BlendParameters,
		IsContinuingPose: true,
	}
}

// weightedDistance returns the weighted squared distance between a and b.
// It gives up with false as soon as the partial sum exceeds limit.
func weightedDistance(a, b, weights []float32, limit float32) (float32, bool) {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += weights[i] * d * d
		if sum > limit {
			return sum, false
		}
	}
	if sum > limit {
		return sum, false
	}
	return sum, true
}

type searcher struct {
	db    *posedb.Database
	idx   *posedb.SearchIndex
	ctx   *Context
	query []float32

	// restricted is set when only allowedAssets may be searched.
	restricted    bool
	allowedAssets []int

	nonSelectable []int

	result Result
}

func newSearcher(db *posedb.Database, idx *posedb.SearchIndex, ctx *Context, query []float32) *searcher {
	s := &searcher{db: db, idx: idx, ctx: ctx, query: query, result: InvalidResult()}
	s.populateSelectableAssets()
	s.populateNonSelectable()
	return s
}

// populateSelectableAssets collects the index assets of the motions to
// consider. A selection covering every asset is the same as no restriction.
func (s *searcher) populateSelectableAssets() {
	motions := s.ctx.AssetsToConsider()
	if len(motions) == 0 {
		return
	}
	var assets []int
	for _, m := range motions {
		assets = append(assets, s.idx.AssetIndexesFor(m)...)
	}
	sort.Ints(assets)
	assets = compactInts(assets)
	if len(assets) == len(s.idx.Assets) {
		return
	}
	s.restricted = true
	s.allowedAssets = assets
}

// populateNonSelectable excludes the poses around the continuing pose when
// it was selected from this database: every variant of its motion when the
// motion disables reselection, otherwise the poses inside the pose jump
// threshold.
func (s *searcher) populateNonSelectable() {
	cp := s.ctx.Continuing()
	if cp == nil || cp.Source.Database != s.db {
		return
	}
	pose := s.db.GetPoseIndex(cp.Motion, cp.AssetTime, cp.Mirrored, cp.BlendParameters)
	if pose == InvalidIndex {
		return
	}
	asset := s.idx.AssetForPose(pose)

	var out []int
	if asset.DisableReselection {
		for _, ai := range s.idx.AssetIndexesFor(asset.Motion) {
			a := &s.idx.Assets[ai]
			for p := a.FirstPose; p <= a.LastPose(); p++ {
				out = append(out, p)
			}
		}
	} else if thr := s.ctx.poseJumpThreshold; thr.Min != thr.Max {
		rate := s.db.Schema.SampleRate
		lo := pose + int(math.Floor(thr.Min*rate))
		hi := pose + int(math.Ceil(thr.Max*rate))
		for p := lo; p < hi; p++ {
			if asset.Looping {
				local := (p - asset.FirstPose) % asset.NumPoses
				if local < 0 {
					local += asset.NumPoses
				}
				out = append(out, asset.FirstPose+local)
			} else if asset.ContainsPose(p) {
				out = append(out, p)
			}
		}
	}
	sort.Ints(out)
	s.nonSelectable = compactInts(out)
}

func (s *searcher) assetAllowed(assetIdx int) bool {
	if !s.restricted {
		return true
	}
	i := sort.SearchInts(s.allowedAssets, assetIdx)
	return i < len(s.allowedAssets) && s.allowedAssets[i] == assetIdx
}

func (s *searcher) isNonSelectable(pose int) bool {
	i := sort.SearchInts(s.nonSelectable, pose)
	return i < len(s.nonSelectable) && s.nonSelectable[i] == pose
}

// consider evaluates one pose and keeps it if it beats the current result.
func (s *searcher) consider(pose, eventPose int, flags CandidateFlag) {
	meta := s.idx.Poses[pose]
	if meta.BlockTransition {
		s.ctx.addCandidate(s.db, pose, InvalidCost(), flags|CandidateBlockTransition)
		return
	}
	if s.isNonSelectable(pose) {
		s.ctx.addCandidate(s.db, pose, InvalidCost(), flags|CandidateNonSelectable)
		return
	}

	addend := meta.CostAddend + s.db.BaseCostBias + s.ctx.penalty(s.db, pose)
	bound := min(s.ctx.BestCost(), s.result.Cost.Total())
	d, ok := weightedDistance(s.query, s.idx.PoseValues(pose), s.idx.Weights, bound-addend)
	if !ok {
		s.ctx.addCandidate(s.db, pose, InvalidCost(), flags|CandidatePruned)
		return
	}

	cost := Cost{Dissimilarity: d, Addend: addend}
	s.ctx.addCandidate(s.db, pose, cost, flags|CandidateValid)

	total, best := cost.Total(), s.result.Cost.Total()
	if total < best || (total == best && pose < s.result.PoseIdx) {
		asset := &s.idx.Assets[meta.AssetIdx]
		s.result = Result{
			Database:        s.db,
			PoseIdx:         pose,
			EventPoseIdx:    eventPose,
			Cost:            cost,
			AssetTime:       asset.TimeFromPoseIndex(pose, s.db.Schema.SampleRate),
			Mirrored:        asset.Mirrored,
			BlendParameters: asset.Blend,
		}
	}
}

func (s *searcher) searchBruteForce() {
	if !s.restricted {
		for pose := 0; pose < s.idx.NumPoses(); pose++ {
			s.consider(pose, InvalidIndex, 0)
		}
		return
	}
	for _, ai := range s.allowedAssets {
		a := &s.idx.Assets[ai]
		for pose := a.FirstPose; pose <= a.LastPose(); pose++ {
			s.consider(pose, InvalidIndex, 0)
		}
	}
}

func (s *searcher) searchVPTree() {
	if s.idx.Tree == nil {
		log.Printf("Warning: database %s has no VP-tree, using brute force", s.db.Name)
		s.searchBruteForce()
		return
	}
	// restricted subsets are small; scanning them is exact and cheap
	if s.restricted {
		s.searchBruteForce()
		return
	}

	k := s.db.KNNNeighbors
	if k <= 0 {
		k = posedb.DefaultKNNNeighbors
	}
	// excluded poses must not take neighbour slots
	for _, pose := range s.idx.Tree.NearestFiltered(s.query, k, s.isNonSelectable) {
		s.consider(pose, InvalidIndex, 0)
	}
}

// searchEvent evaluates, for every pose tagged with the event, the poses
// from which the tagged pose is reached in TimeToEvent at a play rate
// inside the context's play rate interval.
func (s *searcher) searchEvent() {
	ev := s.ctx.Event()
	rate := s.ctx.playRate
	if rate.Min <= 0 || rate.Min > rate.Max {
		rate = posedb.Interval{Min: 1, Max: 1}
	}
	sampleRate := s.db.Schema.SampleRate

	for _, eventPose := range s.idx.Events[ev.Tag] {
		meta := s.idx.Poses[eventPose]
		if !s.assetAllowed(meta.AssetIdx) {
			continue
		}
		if ev.TimeToEvent <= eventEpsilon {
			s.consider(eventPose, eventPose, CandidateEvent)
			continue
		}

		asset := &s.idx.Assets[meta.AssetIdx]
		eventTime := asset.TimeFromPoseIndex(eventPose, sampleRate)
		start := eventTime - ev.TimeToEvent*rate.Max
		end := eventTime - ev.TimeToEvent*rate.Min

		first := asset.FirstPose + int(math.Ceil(start*sampleRate-timeEpsilon))
		last := asset.FirstPose + int(math.Floor(end*sampleRate+timeEpsilon))
		first = max(first, asset.FirstPose)
		last = min(last, eventPose)
		for pose := first; pose <= last; pose++ {
			s.consider(pose, eventPose, CandidateEvent)
		}
	}
}

func compactInts(sorted []int) []int {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
