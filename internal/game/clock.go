package game

import "time"

// FrameClock turns host timestamps into capped simulation deltas.
type FrameClock struct {
	last     time.Time
	started  bool
	maxDelta float64
}

// NewFrameClock creates a clock whose deltas never exceed maxDelta seconds.
func NewFrameClock(maxDelta float64) *FrameClock {
	return &FrameClock{maxDelta: maxDelta}
}

// Reset makes the next Tick measure from now. Used when a run resumes so
// the time spent paused is not simulated.
func (c *FrameClock) Reset(now time.Time) {
	c.last = now
	c.started = true
}

// Tick returns the seconds elapsed since the previous tick, capped.
// The first tick after construction returns 0.
func (c *FrameClock) Tick(now time.Time) float64 {
	if !c.started {
		c.Reset(now)
		return 0
	}
	dt := now.Sub(c.last).Seconds()
	c.last = now
	if dt < 0 {
		return 0
	}
	if c.maxDelta > 0 && dt > c.maxDelta {
		return c.maxDelta
	}
	return dt
}
