// Package fanout distributes session lifecycle events to nearby responders.
// Delivery is best-effort everywhere: a civilian-facing operation never fails
// because a responder could not be reached.
package fanout

import (
	"encoding/json"
	"sync"

	"github.com/safeguardhq/safeguard/internal/geo"
)

// Event is the payload pushed to responder subscribers.
type Event struct {
	Type       string     `json:"type"` // session_started, location_update, session_ended
	SessionID  string     `json:"sessionId"`
	Kind       string     `json:"kind,omitempty"`
	Category   string     `json:"category,omitempty"`
	Location   *geo.Point `json:"location,omitempty"`
	DistanceKm float64    `json:"distanceKm,omitempty"`
}

// Broker is an in-process pub/sub for SSE events, keyed by responder ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the
// given responder.
func (b *Broker) Subscribe(responderID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[responderID] == nil {
		b.subs[responderID] = make(map[chan []byte]struct{})
	}
	b.subs[responderID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the responder's subscribers.
func (b *Broker) Unsubscribe(responderID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[responderID], ch)
	if len(b.subs[responderID]) == 0 {
		delete(b.subs, responderID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given responder. Returns
// whether the responder had at least one live subscriber.
func (b *Broker) Publish(responderID string, event Event) bool {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := b.subs[responderID]
	for ch := range subs {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	return len(subs) > 0
}
