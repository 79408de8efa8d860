package search

import (
	"log"
	"math"

	"github.com/khanglvm/posematch/internal/history"
	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/trajectory"
)

// RoleBinding binds a schema role to the trajectory of one participant.
type RoleBinding struct {
	Role    posedb.Role
	History trajectory.Provider
}

// Event asks the search to reach a tagged pose after TimeToEvent seconds.
type Event struct {
	Tag         string
	TimeToEvent float64
}

// eventEpsilon is the time to event below which an event counts as reached.
const eventEpsilon = 1e-4

// Config holds everything a Context needs for one tick.
type Config struct {
	Roles []RoleBinding

	// History and ReselectionPenalty drive the reselection penalty.
	History            *history.PoseIndicesHistory
	ReselectionPenalty float32

	// PoseJumpThreshold excludes poses around the continuing pose, in
	// seconds relative to it. An empty interval disables the filter.
	PoseJumpThreshold posedb.Interval

	Event    *Event
	PlayRate posedb.Interval

	Continuing           *ContinuingPose
	UseCachedChannelData bool

	CollectCandidates bool
}

// Context is the per-tick search state. It is not safe for concurrent use.
type Context struct {
	roles map[posedb.Role]trajectory.Provider

	queries     map[*posedb.Schema][]float32
	queryBuilds int
	queryHits   int

	bestCost float32

	continuing           *ContinuingPose
	useCachedChannelData bool

	assetsToConsider []*posedb.Motion

	history            *history.PoseIndicesHistory
	reselectionPenalty float32
	poseJumpThreshold  posedb.Interval

	event    *Event
	playRate posedb.Interval

	asyncBuildInProgress bool

	collect    bool
	candidates []Candidate
}

// NewContext creates the context of one tick.
func NewContext(cfg Config) *Context {
	c := &Context{
		roles:                make(map[posedb.Role]trajectory.Provider, len(cfg.Roles)),
		queries:              make(map[*posedb.Schema][]float32),
		bestCost:             float32(math.Inf(1)),
		continuing:           cfg.Continuing,
		useCachedChannelData: cfg.UseCachedChannelData,
		history:              cfg.History,
		reselectionPenalty:   cfg.ReselectionPenalty,
		poseJumpThreshold:    cfg.PoseJumpThreshold,
		event:                cfg.Event,
		playRate:             cfg.PlayRate,
		collect:              cfg.CollectCandidates,
	}
	for _, rb := range cfg.Roles {
		c.roles[rb.Role] = rb.History
	}
	return c
}

// History implements posedb.QueryInput.
func (c *Context) History(role posedb.Role) trajectory.Provider {
	return c.roles[role]
}

// CachedPoseValues implements posedb.QueryInput.
func (c *Context) CachedPoseValues(schema *posedb.Schema) ([]float32, bool) {
	if !c.useCachedChannelData || c.continuing == nil {
		return nil, false
	}
	src := c.continuing.Source
	if !src.IsValid() || src.Database.Schema != schema {
		return nil, false
	}
	values := src.Database.PoseValues(src.PoseIdx)
	return values, values != nil
}

// HasRoles reports whether every role of schema is bound.
func (c *Context) HasRoles(schema *posedb.Schema) bool {
	for _, r := range schema.RoleList() {
		if _, ok := c.roles[r]; !ok {
			return false
		}
	}
	return true
}

// GetOrBuildQuery returns the query for db's schema, building it at most
// once per schema. Databases sharing a schema get the identical slice.
func (c *Context) GetOrBuildQuery(db *posedb.Database) []float32 {
	if q, ok := c.queries[db.Schema]; ok {
		c.queryHits++
		return q
	}

	q := db.BuildQuery(c)
	c.queryBuilds++
	if q != nil && !posedb.Check(len(q) == db.Schema.Cardinality,
		"query for schema %s has %d values, want %d", db.Schema.ID, len(q), db.Schema.Cardinality) {
		q = nil
	}
	if q == nil {
		log.Printf("Warning: could not build query for schema %s", db.Schema.ID)
	}
	c.queries[db.Schema] = q
	return q
}

// CachedQuery returns the query built this tick for schema, if any.
func (c *Context) CachedQuery(schema *posedb.Schema) ([]float32, bool) {
	q, ok := c.queries[schema]
	return q, ok && q != nil
}

// QueryBuilds returns how many queries were built.
func (c *Context) QueryBuilds() int { return c.queryBuilds }

// QueryCacheHits returns how many query requests were served from the cache.
func (c *Context) QueryCacheHits() int { return c.queryHits }

// BestCost returns the lowest total cost found this tick.
func (c *Context) BestCost() float32 { return c.bestCost }

// UpdateBestCost lowers the pruning bound to cost when it is better.
func (c *Context) UpdateBestCost(cost Cost) {
	if cost.IsValid() && cost.Total() < c.bestCost {
		c.bestCost = cost.Total()
	}
}

// Continuing returns the continuing pose, or nil.
func (c *Context) Continuing() *ContinuingPose { return c.continuing }

// SetContinuing replaces the continuing pose. Queries already built keep
// the cached channel data they were built with.
func (c *Context) SetContinuing(cp *ContinuingPose) { c.continuing = cp }

// SetAssetsToConsider restricts the next full search to the given motions.
// An empty list means every asset of the database.
func (c *Context) SetAssetsToConsider(assets []*posedb.Motion) {
	c.assetsToConsider = assets
}

// AssetsToConsider returns the current asset restriction.
func (c *Context) AssetsToConsider() []*posedb.Motion { return c.assetsToConsider }

// SetAsyncBuildInProgress records that a requested database is still building.
func (c *Context) SetAsyncBuildInProgress() { c.asyncBuildInProgress = true }

// IsAsyncBuildInProgress reports whether a requested database is still building.
func (c *Context) IsAsyncBuildInProgress() bool { return c.asyncBuildInProgress }

// Event returns the event to search for, or nil.
func (c *Context) Event() *Event { return c.event }

// Candidates returns the candidates evaluated this tick.
func (c *Context) Candidates() []Candidate { return c.candidates }

func (c *Context) addCandidate(db *posedb.Database, pose int, cost Cost, flags CandidateFlag) {
	if !c.collect {
		return
	}
	c.candidates = append(c.candidates, Candidate{Database: db, PoseIdx: pose, Cost: cost, Flags: flags})
}

func (c *Context) penalty(db *posedb.Database, pose int) float32 {
	if c.history == nil || c.reselectionPenalty == 0 {
		return 0
	}
	return c.history.Penalty(db, pose, c.reselectionPenalty)
}
