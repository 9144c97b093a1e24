// Package presence tracks ephemeral responder locations for proximity
// queries. Entries expire after a staleness window; expired responders must
// not receive fanout.
package presence

import (
	"context"
	"time"

	"github.com/safeguardhq/safeguard/internal/geo"
)

// DefaultTTL is the staleness window for responder heartbeats.
const DefaultTTL = 5 * time.Minute

// Responder is one live presence entry.
type Responder struct {
	ID         string    `json:"responderId"`
	Point      geo.Point `json:"location"`
	DistanceKm float64   `json:"distanceKm"`
}

// Store records responder heartbeats and answers radius queries.
type Store interface {
	// Heartbeat refreshes the responder's position and staleness window.
	Heartbeat(ctx context.Context, responderID string, p geo.Point) error

	// Nearby returns responders within radiusKm whose last heartbeat is
	// inside the staleness window.
	Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]Responder, error)
}

// MemoryStore is the in-process Store used by default and in tests.
type MemoryStore struct {
	index *geo.Index
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{index: geo.NewIndex(ttl)}
}

func (m *MemoryStore) Heartbeat(_ context.Context, responderID string, p geo.Point) error {
	m.index.Upsert(responderID, p)
	return nil
}

func (m *MemoryStore) Nearby(_ context.Context, p geo.Point, radiusKm float64) ([]Responder, error) {
	matches := m.index.Query(p, radiusKm)
	out := make([]Responder, 0, len(matches))
	for _, match := range matches {
		out = append(out, Responder{ID: match.ID, Point: match.Point, DistanceKm: match.DistanceKm})
	}
	return out, nil
}
