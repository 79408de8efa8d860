package storage

import "time"

// TickRecord is one persisted matcher tick.
type TickRecord struct {
	// TickID is a unique identifier for the tick (UUID).
	TickID string `json:"tick_id"`

	// SessionID groups the ticks of one recording session.
	SessionID string `json:"session_id"`

	Timestamp time.Time `json:"timestamp"`
	DeltaTime float64   `json:"delta_time"`

	// Database, Motion and PoseIdx identify the selected pose. They are
	// empty (PoseIdx -1) when the tick produced no result.
	Database  string  `json:"database,omitempty"`
	Motion    string  `json:"motion,omitempty"`
	PoseIdx   int     `json:"pose_idx"`
	AssetTime float64 `json:"asset_time"`

	// Cost is nil for an invalid result.
	Cost *float64 `json:"cost,omitempty"`

	WantedPlayRate float64 `json:"wanted_play_rate"`

	Continuing     bool `json:"continuing"`
	Searched       bool `json:"searched"`
	Jumped         bool `json:"jumped"`
	ForceInterrupt bool `json:"force_interrupt"`
	AsyncBuild     bool `json:"async_build"`

	QueryBuilds    int `json:"query_builds"`
	QueryCacheHits int `json:"query_cache_hits"`

	Candidates []CandidateRecord `json:"candidates,omitempty"`
}

// CandidateRecord is one evaluated pose of a tick.
type CandidateRecord struct {
	Database string   `json:"database"`
	PoseIdx  int      `json:"pose_idx"`
	Cost     *float64 `json:"cost,omitempty"`
	Flags    string   `json:"flags"`
}
