package emergency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a session id does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned for writes against a resolved session.
	ErrSessionNotActive = errors.New("session not active")
	// ErrValidation is returned for malformed input that must not be retried.
	ErrValidation = errors.New("invalid payload")
)

// ActiveStatus is the status-check payload consumed by the device reconciler.
type ActiveStatus struct {
	Active    bool     `json:"active"`
	SessionID string   `json:"sessionId,omitempty"`
	Kind      Kind     `json:"kind,omitempty"`
	Category  Category `json:"category,omitempty"`
}

// Store is the authoritative session record.
type Store interface {
	// CreateIfNoneActive atomically creates an active session for owner and
	// kind, or returns the existing active one with created=false. This is
	// the activation idempotency point; it must not race under concurrent
	// activation from the same owner.
	CreateIfNoneActive(ctx context.Context, ownerID string, kind Kind, category Category, seed TrackPoint) (Session, bool, error)

	// Get returns a session by id.
	Get(ctx context.Context, sessionID string) (Session, error)

	// ActiveByOwner returns the owner's active session of the given kind,
	// or ErrNotFound.
	ActiveByOwner(ctx context.Context, ownerID string, kind Kind) (Session, error)

	// AppendLocation appends a point to the session history. Points whose
	// capture time is not strictly after the last stored point are dropped;
	// the return value reports whether the point was stored. Resolved
	// sessions return ErrSessionNotActive.
	AppendLocation(ctx context.Context, sessionID string, p TrackPoint) (bool, error)

	// LastLocation returns the most recent history point for the session.
	LastLocation(ctx context.Context, sessionID string) (TrackPoint, error)

	// History returns the session's location history ordered by capture time.
	History(ctx context.Context, sessionID string) ([]TrackPoint, error)

	// Resolve transitions the session to resolved at the given time. A
	// second resolve returns ErrSessionNotActive. purgeHistory deletes the
	// location history in the same transaction (escort stop semantics).
	Resolve(ctx context.Context, sessionID string, at time.Time, purgeHistory bool) error

	// RecordResponse stores a responder acknowledgment against a session.
	// It is responder-side bookkeeping only and never mutates the session.
	RecordResponse(ctx context.Context, sessionID, responderID string, at time.Time) error

	// ActiveSessions returns every active session. Used to rebuild the
	// spatial index at startup.
	ActiveSessions(ctx context.Context) ([]Session, error)

	// Contacts returns the emergency-service contact directory ordered by
	// descending priority.
	Contacts(ctx context.Context) ([]ContactCard, error)
}
