package device

import "time"

// CaptureClock derives the duration of a media capture. Platform recorder
// callbacks fire with uncertain timing, so the clock keeps two measurements
// and reconciles them once at stop: the wall-clock span since Start and an
// accumulator of recorder progress ticks. The larger of the two wins.
type CaptureClock struct {
	startedAt   time.Time
	accumulated time.Duration
	now         func() time.Time
}

// NewCaptureClock returns an unstarted clock.
func NewCaptureClock() *CaptureClock {
	return &CaptureClock{now: time.Now}
}

// Start records the capture start instant and clears any prior ticks.
func (c *CaptureClock) Start() {
	c.startedAt = c.now()
	c.accumulated = 0
}

// Tick adds one recorder progress interval. Ticks may arrive late or not at
// all when the platform throttles the callback.
func (c *CaptureClock) Tick(d time.Duration) {
	if d > 0 {
		c.accumulated += d
	}
}

// Stop computes the authoritative duration, in whole seconds rounded up.
// Called exactly once when the capture ends.
func (c *CaptureClock) Stop() int {
	elapsed := c.now().Sub(c.startedAt)
	if c.accumulated > elapsed {
		elapsed = c.accumulated
	}
	if elapsed <= 0 {
		return 0
	}
	secs := int(elapsed / time.Second)
	if elapsed%time.Second != 0 {
		secs++
	}
	return secs
}
