package trace

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/posematch/internal/search"
	"github.com/khanglvm/posematch/internal/storage"
)

const (
	// queueSize is the buffer of pending ticks. When full, ticks are dropped.
	queueSize = 4096

	// batchFlushSize triggers an immediate flush.
	batchFlushSize = 64

	// flushInterval is how often pending ticks are written.
	flushInterval = 50 * time.Millisecond
)

// Recorder persists matcher ticks in the background.
type Recorder struct {
	storage        storage.Storage
	sessionID      string
	withCandidates bool

	queue    chan storage.TickRecord
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.RWMutex
	enabled bool
	dropped int
}

// NewRecorder starts a recorder writing to s under a new session id.
// Candidates are stored only when withCandidates is set. A nil s yields a
// disabled recorder.
func NewRecorder(s storage.Storage, withCandidates bool) *Recorder {
	r := &Recorder{
		storage:        s,
		sessionID:      uuid.NewString(),
		withCandidates: withCandidates,
		queue:          make(chan storage.TickRecord, queueSize),
		stopChan:       make(chan struct{}),
		enabled:        true,
	}

	if r.storage == nil {
		r.enabled = false
	} else if err := r.storage.Init(); err != nil {
		log.Printf("Warning: trace storage initialization failed: %v", err)
		r.enabled = false
	}

	r.wg.Add(1)
	go r.process()

	return r
}

// SessionID identifies the ticks recorded by r.
func (r *Recorder) SessionID() string { return r.sessionID }

// OnTick implements search.TraceHook. It never blocks.
func (r *Recorder) OnTick(tr search.TickTrace) {
	if !r.IsEnabled() {
		return
	}

	select {
	case r.queue <- ToRecord(r.sessionID, tr, r.withCandidates):
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		if n == 1 || n%1000 == 0 {
			log.Printf("Warning: trace queue full, %d ticks dropped", n)
		}
	}
}

// Dropped returns how many ticks were dropped because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Stop flushes pending ticks and stops the background writer.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
	})
}

// Disable makes OnTick a no-op.
func (r *Recorder) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// Enable resumes recording.
func (r *Recorder) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// IsEnabled reports whether ticks are recorded.
func (r *Recorder) IsEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled && r.storage != nil
}

// Pending returns the number of queued ticks.
func (r *Recorder) Pending() int {
	return len(r.queue)
}

func (r *Recorder) process() {
	defer r.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]storage.TickRecord, 0, batchFlushSize)
	flush := func() {
		r.flush(batch)
		batch = make([]storage.TickRecord, 0, batchFlushSize)
	}

	for {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
			if len(batch) >= batchFlushSize {
				flush()
			}

		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}

		case <-r.stopChan:
			// drain what is already queued
			for {
				select {
				case rec := <-r.queue:
					batch = append(batch, rec)
					if len(batch) >= batchFlushSize {
						flush()
					}
				default:
					r.flush(batch)
					return
				}
			}
		}
	}
}

func (r *Recorder) flush(records []storage.TickRecord) {
	if len(records) == 0 {
		return
	}
	if err := r.storage.RecordTicks(records); err != nil {
		log.Printf("Warning: failed to record %d ticks: %v", len(records), err)
	}
}
