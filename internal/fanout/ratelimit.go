package fanout

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter throttles location-update delivery per (session, responder)
// pair. Ingestion runs every 30 seconds but responder devices only need a
// position refresh every couple of minutes.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{
		interval: interval,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

func (rl *rateLimiter) allow(sessionID, responderID string) bool {
	if rl.interval <= 0 {
		return true
	}
	key := sessionID + "\x00" + responderID

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if last, ok := rl.last[key]; ok && now.Sub(last) < rl.interval {
		return false
	}
	rl.last[key] = now
	return true
}

// forget drops all throttle state for a session once it ends.
func (rl *rateLimiter) forget(sessionID string) {
	prefix := sessionID + "\x00"

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key := range rl.last {
		if strings.HasPrefix(key, prefix) {
			delete(rl.last, key)
		}
	}
}
