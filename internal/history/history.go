/*
Package history keeps the rolling record of recently selected poses.

Entries are ordered by the time they were recorded on an internal clock
that advances with each update's delta time. Entries older than the
look-back window are pruned on every update, and recently played poses
receive a penalty that decays linearly to zero at the edge of the window.
*/
package history

import "github.com/khanglvm/posematch/internal/posedb"

// Entry is one recorded selection.
type Entry struct {
	Database *posedb.Database
	PoseIdx  int
	Time     float64
}

type poseKey struct {
	db   *posedb.Database
	pose int
}

// PoseIndicesHistory is owned by one motion matching state.
type PoseIndicesHistory struct {
	entries []Entry
	clock   float64
	window  float64

	// latest holds the newest recording time of every entry's pose.
	latest map[poseKey]float64
}

// Update advances the clock by deltaTime, records (db, poseIdx) when it is
// valid and prunes entries older than window. A non-positive window clears
// the history.
func (h *PoseIndicesHistory) Update(db *posedb.Database, poseIdx int, deltaTime, window float64) {
	if window <= 0 {
		h.Reset()
		return
	}
	if deltaTime > 0 {
		h.clock += deltaTime
	}
	h.window = window

	if db != nil && poseIdx != posedb.InvalidIndex {
		h.entries = append(h.entries, Entry{Database: db, PoseIdx: poseIdx, Time: h.clock})
		if h.latest == nil {
			h.latest = make(map[poseKey]float64)
		}
		h.latest[poseKey{db, poseIdx}] = h.clock
	}

	drop := 0
	for drop < len(h.entries) && h.clock-h.entries[drop].Time > window {
		e := h.entries[drop]
		key := poseKey{e.Database, e.PoseIdx}
		if t, ok := h.latest[key]; ok && t <= e.Time {
			delete(h.latest, key)
		}
		drop++
	}
	if drop > 0 {
		h.entries = append(h.entries[:0], h.entries[drop:]...)
	}
}

// Reset forgets every entry.
func (h *PoseIndicesHistory) Reset() {
	h.entries = h.entries[:0]
	h.clock = 0
	h.window = 0
	clear(h.latest)
}

// Len returns the number of entries.
func (h *PoseIndicesHistory) Len() int { return len(h.entries) }

// Entries returns a copy of the entries, oldest first.
func (h *PoseIndicesHistory) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}

// Clock returns the internal clock.
func (h *PoseIndicesHistory) Clock() float64 { return h.clock }

// Age returns the time since pose was last recorded.
func (h *PoseIndicesHistory) Age(db *posedb.Database, poseIdx int) (float64, bool) {
	t, ok := h.latest[poseKey{db, poseIdx}]
	if !ok {
		return 0, false
	}
	return h.clock - t, true
}

// Penalty returns scale at age 0, decreasing linearly to 0 at the window
// used by the last Update. Poses outside the window get no penalty.
func (h *PoseIndicesHistory) Penalty(db *posedb.Database, poseIdx int, scale float32) float32 {
	if h == nil || scale == 0 || h.window <= 0 || len(h.entries) == 0 {
		return 0
	}
	age, ok := h.Age(db, poseIdx)
	if !ok || age >= h.window {
		return 0
	}
	return scale * float32(1-age/h.window)
}
