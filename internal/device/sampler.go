package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/safeguardhq/safeguard/internal/emergency"
)

// DefaultSampleInterval is the foreground sampling cadence.
const DefaultSampleInterval = 30 * time.Second

// Source produces the device's current position. Implementations wrap the
// platform location API and return ErrPermissionDenied when the grant is
// missing.
type Source interface {
	Current(ctx context.Context) (emergency.TrackPoint, error)
}

// Sink receives sampled points, normally the server's ingest endpoint.
type Sink interface {
	IngestLocation(ctx context.Context, sessionID string, p emergency.TrackPoint) error
}

// Sampler pushes periodic location samples for one active session. The OS
// may suspend it for arbitrary stretches; every tick stands alone, so gaps
// resume cleanly without replaying missed intervals.
type Sampler struct {
	source   Source
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSampler(source Source, sink Sink, logger *slog.Logger, interval, timeout time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sampler{
		source:   source,
		sink:     sink,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

var errAlreadyRunning = errors.New("sampler already running")

// Start begins sampling for sessionID. The first sample is sent immediately.
func (s *Sampler) Start(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sample(ctx, sessionID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.sample(ctx, sessionID) {
					return
				}
			}
		}
	}()
	return nil
}

// sample captures and ships one point. Returns false when sampling should
// stop because the session is no longer active on the server.
func (s *Sampler) sample(ctx context.Context, sessionID string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.source.Current(ctx)
	if errors.Is(err, ErrPermissionDenied) {
		s.logger.Error("location grant revoked mid-session", "session_id", sessionID)
		return true
	}
	if err != nil {
		s.logger.Warn("location fix failed", "session_id", sessionID, "error", err)
		return true
	}

	err = s.sink.IngestLocation(ctx, sessionID, p)
	switch {
	case errors.Is(err, emergency.ErrSessionNotActive):
		s.logger.Info("session resolved server-side, stopping sampler", "session_id", sessionID)
		return false
	case err != nil:
		// Transient failure; the next tick tries again with a fresh fix.
		s.logger.Warn("location ingest failed", "session_id", sessionID, "error", err)
	}
	return true
}

// Stop cancels sampling and waits for the in-flight tick to finish. It must
// complete before the UI confirms that tracking has stopped.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a sampling loop is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
