package device

import (
	"testing"
	"time"
)

func TestCaptureClockWallClockWins(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewCaptureClock()
	clock.now = func() time.Time { return current }

	clock.Start()
	// Recorder ticks stalled: only 2s of progress reported over 10s.
	clock.Tick(time.Second)
	clock.Tick(time.Second)
	current = current.Add(10 * time.Second)

	if got := clock.Stop(); got != 10 {
		t.Fatalf("Stop() = %d, want 10", got)
	}
}

func TestCaptureClockAccumulatorWins(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewCaptureClock()
	clock.now = func() time.Time { return current }

	clock.Start()
	// App backgrounded mid-capture: wall clock barely moves, ticks carry on.
	for i := 0; i < 8; i++ {
		clock.Tick(time.Second)
	}
	current = current.Add(3 * time.Second)

	if got := clock.Stop(); got != 8 {
		t.Fatalf("Stop() = %d, want 8", got)
	}
}

func TestCaptureClockRoundsUpPartialSeconds(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewCaptureClock()
	clock.now = func() time.Time { return current }

	clock.Start()
	current = current.Add(1500 * time.Millisecond)

	if got := clock.Stop(); got != 2 {
		t.Fatalf("Stop() = %d, want 2", got)
	}
}

func TestCaptureClockRestartClearsTicks(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewCaptureClock()
	clock.now = func() time.Time { return current }

	clock.Start()
	clock.Tick(30 * time.Second)
	clock.Start()
	current = current.Add(2 * time.Second)

	if got := clock.Stop(); got != 2 {
		t.Fatalf("Stop() = %d, want 2 after restart", got)
	}
}

func TestCaptureClockIgnoresNonPositiveTicks(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewCaptureClock()
	clock.now = func() time.Time { return current }

	clock.Start()
	clock.Tick(0)
	clock.Tick(-time.Second)

	if got := clock.Stop(); got != 0 {
		t.Fatalf("Stop() = %d, want 0", got)
	}
}
