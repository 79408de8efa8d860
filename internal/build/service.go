/*
Package build builds database search indexes in the background.

The matcher never blocks on a build: RequestBuild starts one when needed
and reports its status, and the matcher skips the database until the index
is published. Concurrent requests for the same database share one build.
*/
package build

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/khanglvm/posematch/internal/posedb"
)

// ErrClosed is returned by builds requested after Close.
var ErrClosed = errors.New("build service closed")

type entry struct {
	status   posedb.BuildStatus
	err      error
	done     chan struct{}
	duration time.Duration
}

// Service tracks the index builds of many databases.
type Service struct {
	mu      sync.Mutex
	entries map[*posedb.Database]*entry
	group   singleflight.Group
	sem     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewService creates a service running at most workers builds at once.
// A non-positive workers uses GOMAXPROCS.
func NewService(workers int) *Service {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		entries: make(map[*posedb.Database]*entry),
		sem:     make(chan struct{}, workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RequestBuild reports the build status of db, starting a background build
// when db has no index and none is running. A failed build is not retried
// until Invalidate is called.
func (s *Service) RequestBuild(db *posedb.Database) posedb.BuildStatus {
	if db == nil {
		return posedb.BuildFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[db]; ok {
		return e.status
	}
	if db.IsBuilt() {
		return posedb.BuildSuccess
	}
	if s.closed {
		return posedb.BuildFailed
	}

	e := &entry{status: posedb.BuildInProgress, done: make(chan struct{})}
	s.entries[db] = e
	s.wg.Add(1)
	go s.run(db, e)
	return posedb.BuildInProgress
}

// Readiness reports whether db can be searched.
func (s *Service) Readiness(db *posedb.Database) posedb.Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[db]; ok && e.status == posedb.BuildInProgress {
		return posedb.Building
	}
	if db.IsBuilt() {
		return posedb.Ready
	}
	return posedb.Absent
}

// Err returns the error of the last failed build of db.
func (s *Service) Err(db *posedb.Database) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[db]; ok {
		return e.err
	}
	return nil
}

// Duration returns how long the last finished build of db took.
func (s *Service) Duration(db *posedb.Database) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[db]; ok {
		return e.duration
	}
	return 0
}

func (s *Service) run(db *posedb.Database, e *entry) {
	defer s.wg.Done()

	start := time.Now()
	err := s.BuildNow(s.ctx, db)

	s.mu.Lock()
	e.duration = time.Since(start)
	if err != nil {
		e.status = posedb.BuildFailed
		e.err = err
		log.Printf("Warning: failed to build index for %s: %v", db.Name, err)
	} else {
		e.status = posedb.BuildSuccess
	}
	close(e.done)
	s.mu.Unlock()
}

// BuildNow builds db synchronously. Concurrent calls for one database share
// a single build.
func (s *Service) BuildNow(ctx context.Context, db *posedb.Database) error {
	key := fmt.Sprintf("%p", db)
	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ctx.Done():
			return nil, ErrClosed
		}
		defer func() { <-s.sem }()

		if err := posedb.Build(ctx, db); err != nil {
			return nil, fmt.Errorf("build %s: %w", db.Name, err)
		}
		return nil, nil
	})
	return err
}

// BuildAll builds every database that has no index, in parallel, and
// returns the first error.
func (s *Service) BuildAll(ctx context.Context, dbs []*posedb.Database) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(s.sem))
	for _, db := range dbs {
		if db.IsBuilt() {
			continue
		}
		g.Go(func() error {
			return s.BuildNow(gctx, db)
		})
	}
	return g.Wait()
}

// Wait blocks until the background build of db finishes or ctx is done.
func (s *Service) Wait(ctx context.Context, db *posedb.Database) (posedb.BuildStatus, error) {
	s.mu.Lock()
	e, ok := s.entries[db]
	s.mu.Unlock()
	if !ok {
		if db.IsBuilt() {
			return posedb.BuildSuccess, nil
		}
		return posedb.BuildFailed, posedb.ErrNotBuilt
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return posedb.BuildInProgress, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return e.status, e.err
}

// Invalidate drops db's index and forgets its build state so the next
// request rebuilds it. A running build is left to finish.
func (s *Service) Invalidate(db *posedb.Database) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[db]; ok && e.status == posedb.BuildInProgress {
		return
	}
	delete(s.entries, db)
	db.ClearIndex()
}

// Close cancels running builds and waits for them to return.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
