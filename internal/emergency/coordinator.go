package emergency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/safeguardhq/safeguard/internal/geo"
)

// ErrNotOwner is returned when a caller operates on a session they do not own.
var ErrNotOwner = errors.New("caller does not own session")

// Notifier receives session lifecycle events. Delivery is best-effort: the
// coordinator never fails an operation because a notification could not be
// delivered.
type Notifier interface {
	SessionStarted(ctx context.Context, sess Session, at geo.Point)
	LocationUpdate(ctx context.Context, sess Session, at geo.Point)
	SessionEnded(ctx context.Context, sess Session)
}

// ActivateResult is the tagged outcome of an activation: either a session was
// opened (possibly an existing one, when the call is an idempotent repeat) or
// the category routed to the emergency-service contact directory.
type ActivateResult struct {
	Session  *Session      `json:"session,omitempty"`
	Created  bool          `json:"created,omitempty"`
	Contacts []ContactCard `json:"contacts,omitempty"`
}

// Coordinator drives the session state machine: none → active → resolved.
// Transitions for one session are serialized; sessions of different owners
// proceed independently.
type Coordinator struct {
	store    Store
	index    *geo.Index
	notifier Notifier
	logger   *slog.Logger

	owners   *kmutex // serializes activation per owner+kind
	sessions *kmutex // serializes ingest/deactivate per session
	now      func() time.Time
}

func NewCoordinator(store Store, index *geo.Index, notifier Notifier, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		index:    index,
		notifier: notifier,
		logger:   logger,
		owners:   newKmutex(),
		sessions: newKmutex(),
		now:      time.Now,
	}
}

// Rebuild seeds the spatial index from active sessions. Called once at
// startup so a restart does not orphan live sessions out of responder view.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	sessions, err := c.store.ActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("loading active sessions: %w", err)
	}
	for _, sess := range sessions {
		last, err := c.store.LastLocation(ctx, sess.ID)
		if err != nil {
			c.logger.Warn("skipping session without location", "session_id", sess.ID, "error", err)
			continue
		}
		c.index.Upsert(sess.ID, last.Point)
	}
	if len(sessions) > 0 {
		c.logger.Info("rebuilt session index", "count", len(sessions))
	}
	return nil
}

// Activate opens a session for the owner, or returns the already-active one.
// Medical and fire categories never open a session; they resolve to the
// contact directory instead.
func (c *Coordinator) Activate(ctx context.Context, ownerID string, kind Kind, category Category, loc TrackPoint) (ActivateResult, error) {
	if !loc.Point.Valid() {
		return ActivateResult{}, fmt.Errorf("%w: location out of bounds", ErrValidation)
	}
	switch kind {
	case KindPanic:
		if !category.Valid() {
			return ActivateResult{}, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
		}
	case KindEscort:
		category = CategoryOther
	default:
		return ActivateResult{}, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}

	if kind == KindPanic && category.RoutesToContacts() {
		contacts, err := c.store.Contacts(ctx)
		if err != nil {
			return ActivateResult{}, fmt.Errorf("loading contacts: %w", err)
		}
		return ActivateResult{Contacts: contacts}, nil
	}

	if loc.CapturedAt.IsZero() {
		loc.CapturedAt = c.now()
	}

	key := ownerID + "/" + string(kind)
	c.owners.lock(key)
	defer c.owners.unlock(key)

	sess, created, err := c.store.CreateIfNoneActive(ctx, ownerID, kind, category, loc)
	if err != nil {
		return ActivateResult{}, err
	}

	if created {
		c.index.Upsert(sess.ID, loc.Point)
		c.notifier.SessionStarted(ctx, sess, loc.Point)
		c.logger.Info("session activated",
			"session_id", sess.ID,
			"kind", sess.Kind,
			"category", sess.Category,
		)
	}
	return ActivateResult{Session: &sess, Created: created}, nil
}

// IngestLocation appends a sample to the session's history. Out-of-order and
// duplicate samples are dropped without error; interrupting an emergency
// flow over one lost sample is worse than dropping it.
func (c *Coordinator) IngestLocation(ctx context.Context, callerID, sessionID string, p TrackPoint) error {
	if !p.Point.Valid() || p.CapturedAt.IsZero() {
		return fmt.Errorf("%w: sample needs coordinates and a capture time", ErrValidation)
	}

	c.sessions.lock(sessionID)
	defer c.sessions.unlock(sessionID)

	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.OwnerID != callerID {
		return ErrNotOwner
	}
	if sess.Status != StatusActive {
		return ErrSessionNotActive
	}

	stored, err := c.store.AppendLocation(ctx, sessionID, p)
	if err != nil {
		return err
	}
	if !stored {
		c.logger.Debug("dropped stale location sample",
			"session_id", sessionID,
			"captured_at", p.CapturedAt,
		)
		return nil
	}

	c.index.Upsert(sessionID, p.Point)
	c.notifier.LocationUpdate(ctx, sess, p.Point)
	return nil
}

// Deactivate resolves the session. The transition is one-way: a second call
// returns ErrSessionNotActive and leaves the first resolution untouched.
// Escort sessions purge their location history on stop.
func (c *Coordinator) Deactivate(ctx context.Context, callerID, sessionID string) error {
	c.sessions.lock(sessionID)
	defer c.sessions.unlock(sessionID)

	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.OwnerID != callerID {
		return ErrNotOwner
	}

	purge := sess.Kind == KindEscort
	if err := c.store.Resolve(ctx, sessionID, c.now(), purge); err != nil {
		return err
	}

	c.index.Remove(sessionID)
	sess.Status = StatusResolved
	c.notifier.SessionEnded(ctx, sess)
	c.logger.Info("session resolved", "session_id", sessionID, "kind", sess.Kind)
	return nil
}

// Status answers the device reconciler's "is anything really active" check.
// Panic wins over escort when both are somehow active.
func (c *Coordinator) Status(ctx context.Context, ownerID string) (ActiveStatus, error) {
	for _, kind := range []Kind{KindPanic, KindEscort} {
		sess, err := c.store.ActiveByOwner(ctx, ownerID, kind)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return ActiveStatus{}, err
		}
		return ActiveStatus{
			Active:    true,
			SessionID: sess.ID,
			Kind:      sess.Kind,
			Category:  sess.Category,
		}, nil
	}
	return ActiveStatus{}, nil
}

// NearbySession is one active session visible to a responder.
type NearbySession struct {
	Session    Session   `json:"session"`
	Location   geo.Point `json:"location"`
	DistanceKm float64   `json:"distanceKm"`
}

// Nearby returns active sessions within radiusKm of p, closest first is not
// guaranteed; callers sort if they care.
func (c *Coordinator) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]NearbySession, error) {
	matches := c.index.Query(p, radiusKm)
	out := make([]NearbySession, 0, len(matches))
	for _, m := range matches {
		sess, err := c.store.Get(ctx, m.ID)
		if errors.Is(err, ErrNotFound) {
			c.index.Remove(m.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if sess.Status != StatusActive {
			c.index.Remove(m.ID)
			continue
		}
		out = append(out, NearbySession{Session: sess, Location: m.Point, DistanceKm: m.DistanceKm})
	}
	return out, nil
}

// Respond records a responder acknowledgment. It never mutates the session.
func (c *Coordinator) Respond(ctx context.Context, responderID, sessionID string) error {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusActive {
		return ErrSessionNotActive
	}
	return c.store.RecordResponse(ctx, sessionID, responderID, c.now())
}

// History returns the session's location history for its owner.
func (c *Coordinator) History(ctx context.Context, callerID, sessionID string) ([]TrackPoint, error) {
	sess, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	return c.store.History(ctx, sessionID)
}

// Contacts returns the emergency-service directory.
func (c *Coordinator) Contacts(ctx context.Context) ([]ContactCard, error) {
	return c.store.Contacts(ctx)
}
