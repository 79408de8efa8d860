package search

import (
	"log"
	"slices"

	"github.com/khanglvm/posematch/internal/posedb"
)

// BuildService builds database indexes in the background.
type BuildService interface {
	RequestBuild(db *posedb.Database) posedb.BuildStatus
}

// DatabaseAssets is one database to search and the motions to restrict the
// search to. No motions means the whole database.
type DatabaseAssets struct {
	Database *posedb.Database
	Assets   []*posedb.Motion
}

// SearchesEverything reports whether the whole database is searched.
func (d DatabaseAssets) SearchesEverything() bool { return len(d.Assets) == 0 }

// Subsets maps databases to the motions to search, in insertion order.
type Subsets struct {
	entries   []DatabaseAssets
	positions map[*posedb.Database]int
	requested []*posedb.Database
}

func newSubsets() *Subsets {
	return &Subsets{positions: make(map[*posedb.Database]int)}
}

// Entries returns the searchable databases in resolution order.
func (s *Subsets) Entries() []DatabaseAssets { return s.entries }

// Len returns the number of searchable databases.
func (s *Subsets) Len() int { return len(s.entries) }

// Requested returns every database the assets referenced, searchable or not.
func (s *Subsets) Requested() []*posedb.Database { return s.requested }

// Get returns the entry of db.
func (s *Subsets) Get(db *posedb.Database) (DatabaseAssets, bool) {
	i, ok := s.positions[db]
	if !ok {
		return DatabaseAssets{}, false
	}
	return s.entries[i], true
}

func (s *Subsets) request(db *posedb.Database) {
	if !slices.Contains(s.requested, db) {
		s.requested = append(s.requested, db)
	}
}

// addEverything registers db with the "search everything" subset.
func (s *Subsets) addEverything(db *posedb.Database) {
	if i, ok := s.positions[db]; ok {
		s.entries[i].Assets = nil
		return
	}
	s.positions[db] = len(s.entries)
	s.entries = append(s.entries, DatabaseAssets{Database: db})
}

// addMotion adds m to db's subset unless db is already searched entirely.
func (s *Subsets) addMotion(db *posedb.Database, m *posedb.Motion) {
	i, ok := s.positions[db]
	if !ok {
		s.positions[db] = len(s.entries)
		s.entries = append(s.entries, DatabaseAssets{Database: db, Assets: []*posedb.Motion{m}})
		return
	}
	e := &s.entries[i]
	if e.SearchesEverything() || slices.Contains(e.Assets, m) {
		return
	}
	e.Assets = append(e.Assets, m)
}

// Resolver turns the caller's assets into databases to search.
type Resolver struct {
	builds BuildService
}

// NewResolver creates a resolver. With a nil build service only databases
// that already have an index are searchable.
func NewResolver(builds BuildService) *Resolver {
	return &Resolver{builds: builds}
}

// Resolve maps assets to databases and motion subsets. Databases that are
// not ready are skipped and flagged on ctx.
func (r *Resolver) Resolve(assets []posedb.Asset, ctx *Context) *Subsets {
	s := newSubsets()
	for _, a := range assets {
		switch v := a.(type) {
		case *posedb.Database:
			if v == nil {
				continue
			}
			s.request(v)
			if r.ready(v, ctx) {
				s.addEverything(v)
			}
		case *posedb.Motion:
			if v == nil {
				continue
			}
			for _, b := range v.BranchIns {
				db := r.branchInDatabase(v, b)
				if db == nil {
					continue
				}
				s.request(db)
				if !db.Contains(v) {
					log.Printf("Error: motion %s has a branch-in to %s but is not a member of it", v.Name, db.Name)
					continue
				}
				if r.ready(db, ctx) {
					s.addMotion(db, v)
				}
			}
		case nil:
		default:
			log.Printf("Warning: unsupported asset %T (%s) skipped", a, a.AssetName())
		}
	}
	return s
}

// ResolveContinuing finds the databases able to continue playing. Every
// requested database containing playing is a candidate, as is every
// branch-in database of a requested motion that contains playing.
func (r *Resolver) ResolveContinuing(assets []posedb.Asset, playing posedb.Asset, ctx *Context) *Subsets {
	s := newSubsets()
	if playing == nil {
		return s
	}
	if db, ok := playing.(*posedb.Database); ok {
		posedb.Check(false, "playing asset %s is a database", db.Name)
		return s
	}
	m, ok := playing.(*posedb.Motion)
	if !ok || m == nil {
		return s
	}

	consider := func(db *posedb.Database) {
		if db == nil || !db.Contains(m) {
			return
		}
		s.request(db)
		if r.ready(db, ctx) {
			s.addMotion(db, m)
		}
	}

	for _, a := range assets {
		switch v := a.(type) {
		case *posedb.Database:
			consider(v)
		case *posedb.Motion:
			if v == nil {
				continue
			}
			for _, b := range v.BranchIns {
				consider(b.Database)
			}
		}
	}
	return s
}

func (r *Resolver) branchInDatabase(m *posedb.Motion, b posedb.BranchIn) *posedb.Database {
	if b.Database == nil {
		if b.Name != "" {
			log.Printf("Error: motion %s has a branch-in to unknown database %q", m.Name, b.Name)
		} else {
			log.Printf("Error: motion %s has a branch-in with no database", m.Name)
		}
		return nil
	}
	return b.Database
}

// ready reports whether db can be searched this tick, requesting a build
// when it is not.
func (r *Resolver) ready(db *posedb.Database, ctx *Context) bool {
	if r.builds == nil {
		if db.IsBuilt() {
			return true
		}
		ctx.SetAsyncBuildInProgress()
		return false
	}

	switch r.builds.RequestBuild(db) {
	case posedb.BuildSuccess:
		if db.IsBuilt() {
			return true
		}
		ctx.SetAsyncBuildInProgress()
		return false
	case posedb.BuildInProgress:
		ctx.SetAsyncBuildInProgress()
		return false
	default:
		log.Printf("Warning: index build failed for database %s, skipping", db.Name)
		return false
	}
}
