package trajectory

import "sync"

// Recorder integrates a character's root motion tick by tick, keeping a
// bounded history and extrapolating the future from a desired velocity.
type Recorder struct {
	mu sync.RWMutex

	maxHistory float64
	now        float64
	position   Point
	velocity   Point
	desired    Point

	// history uses absolute times, oldest first.
	history []Sample
}

// NewRecorder creates a recorder that keeps maxHistory seconds of samples.
func NewRecorder(maxHistory float64) *Recorder {
	if maxHistory < 0 {
		maxHistory = 0
	}
	r := &Recorder{maxHistory: maxHistory}
	r.history = append(r.history, Sample{})
	return r
}

// SetDesiredVelocity sets the velocity used to predict the future.
func (r *Recorder) SetDesiredVelocity(v Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.desired = v
}

// Advance moves the character by velocity for dt seconds and records a sample.
func (r *Recorder) Advance(dt float64, velocity Point) {
	if dt <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.now += dt
	r.position = r.position.Add(velocity.Scale(dt))
	r.velocity = velocity
	r.history = append(r.history, Sample{Time: r.now, Position: r.position, Velocity: velocity})

	cutoff := r.now - r.maxHistory
	drop := 0
	// keep one sample at or before the cutoff so interpolation still covers it
	for drop+1 < len(r.history) && r.history[drop+1].Time <= cutoff {
		drop++
	}
	if drop > 0 {
		r.history = append(r.history[:0], r.history[drop:]...)
	}
}

// Reset restarts the recording at the origin.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = 0
	r.position = Point{}
	r.velocity = Point{}
	r.desired = Point{}
	r.history = append(r.history[:0], Sample{})
}

// Position returns the current world position.
func (r *Recorder) Position() Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.position
}

// GetTrajectory returns the recorded history relative to now followed by
// a single predicted sample one second ahead.
func (r *Recorder) GetTrajectory() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sample, 0, len(r.history)+1)
	for _, s := range r.history {
		s.Time -= r.now
		out = append(out, s)
	}
	out = append(out, r.predict(1))
	return out
}

// GetPoseAt implements Provider.
func (r *Recorder) GetPoseAt(t float64) (Sample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t > 0 {
		return r.predict(t), true
	}

	abs := r.now + t
	s, ok := sampleAt(r.history, abs)
	if !ok {
		return Sample{}, false
	}
	s.Time = t
	return s, true
}

// predict extrapolates t seconds ahead, blending from the current velocity
// to the desired one over the first half second.
func (r *Recorder) predict(t float64) Sample {
	const blendTime = 0.5

	var pos Point
	var vel Point
	if t <= blendTime {
		alpha := t / blendTime
		vel = r.velocity.Add(r.desired.Sub(r.velocity).Scale(alpha))
		pos = r.position.Add(r.velocity.Add(vel).Scale(0.5 * t))
	} else {
		mid := r.position.Add(r.velocity.Add(r.desired).Scale(0.5 * blendTime))
		vel = r.desired
		pos = mid.Add(r.desired.Scale(t - blendTime))
	}
	return Sample{Time: t, Position: pos, Velocity: vel}
}

// Static is a fixed list of samples with times relative to now.
type Static []Sample

// GetTrajectory implements Provider.
func (s Static) GetTrajectory() []Sample { return s }

// GetPoseAt implements Provider.
func (s Static) GetPoseAt(t float64) (Sample, bool) { return sampleAt(s, t) }
