/*
Package trace records matcher ticks to persistent storage.

A Recorder is a search.TraceHook. OnTick converts the trace to a storage
record and queues it without blocking; a background goroutine writes the
queue to storage in batches.
*/
package trace

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/posematch/internal/search"
	"github.com/khanglvm/posematch/internal/storage"
)

func costPtr(c search.Cost) *float64 {
	if !c.IsValid() {
		return nil
	}
	v := float64(c.Total())
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// ToRecord converts a tick trace into a storage record. Candidates are
// kept only when withCandidates is set.
func ToRecord(sessionID string, tr search.TickTrace, withCandidates bool) storage.TickRecord {
	rec := storage.TickRecord{
		TickID:         uuid.NewString(),
		SessionID:      sessionID,
		Timestamp:      time.Now(),
		DeltaTime:      tr.DeltaTime,
		PoseIdx:        search.InvalidIndex,
		WantedPlayRate: tr.WantedPlayRate,
		Searched:       tr.Searched,
		Jumped:         tr.Jumped,
		ForceInterrupt: tr.ForceInterrupt,
		AsyncBuild:     tr.AsyncBuildInProgress,
		QueryBuilds:    tr.QueryBuilds,
		QueryCacheHits: tr.QueryCacheHits,
	}

	if r := tr.Result; r.IsValid() {
		rec.Database = r.Database.Name
		if m := r.Motion(); m != nil {
			rec.Motion = m.Name
		}
		rec.PoseIdx = r.PoseIdx
		rec.AssetTime = r.AssetTime
		rec.Cost = costPtr(r.Cost)
		rec.Continuing = r.IsContinuingPose
	}

	if withCandidates && len(tr.Candidates) > 0 {
		rec.Candidates = make([]storage.CandidateRecord, 0, len(tr.Candidates))
		for _, c := range tr.Candidates {
			name := ""
			if c.Database != nil {
				name = c.Database.Name
			}
			rec.Candidates = append(rec.Candidates, storage.CandidateRecord{
				Database: name,
				PoseIdx:  c.PoseIdx,
				Cost:     costPtr(c.Cost),
				Flags:    c.Flags.String(),
			})
		}
	}
	return rec
}
