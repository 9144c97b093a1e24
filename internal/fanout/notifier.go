package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/geo"
	"github.com/safeguardhq/safeguard/internal/presence"
	"github.com/safeguardhq/safeguard/internal/push"
)

// TokenSource resolves Expo push tokens for a set of users.
type TokenSource interface {
	TokensFor(ctx context.Context, userIDs []string) ([]string, error)
}

// Pusher delivers out-of-band push notifications to device tokens.
type Pusher interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) push.Result
}

// Notifier implements emergency.Notifier: it resolves target responders
// through the presence store and delivers events over the SSE broker, with
// Expo push as the fallback for responders without a live stream.
type Notifier struct {
	broker    *Broker
	presence  presence.Store
	tokens    TokenSource
	pusher    Pusher
	logger    *slog.Logger
	radiusKm  float64
	limiter   *rateLimiter
	deliverTo time.Duration

	mu       sync.Mutex
	lastSeen map[string]geo.Point // session id -> last broadcast location
}

// Config bounds the notifier's fanout behavior.
type Config struct {
	RadiusKm       float64       // responder notification radius
	UpdateInterval time.Duration // min gap between location updates per responder
	DeliverTimeout time.Duration // per-broadcast push deadline
}

func NewNotifier(broker *Broker, store presence.Store, tokens TokenSource, pusher Pusher, logger *slog.Logger, cfg Config) *Notifier {
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 5
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 2 * time.Minute
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 10 * time.Second
	}
	return &Notifier{
		broker:    broker,
		presence:  store,
		tokens:    tokens,
		pusher:    pusher,
		logger:    logger,
		radiusKm:  cfg.RadiusKm,
		limiter:   newRateLimiter(cfg.UpdateInterval),
		deliverTo: cfg.DeliverTimeout,
		lastSeen:  make(map[string]geo.Point),
	}
}

func (n *Notifier) SessionStarted(ctx context.Context, sess emergency.Session, at geo.Point) {
	n.remember(sess.ID, at)
	n.broadcast(ctx, sess, at, Event{
		Type:      "session_started",
		SessionID: sess.ID,
		Kind:      string(sess.Kind),
		Category:  string(sess.Category),
		Location:  &at,
	}, true)
}

func (n *Notifier) LocationUpdate(ctx context.Context, sess emergency.Session, at geo.Point) {
	n.remember(sess.ID, at)
	n.broadcast(ctx, sess, at, Event{
		Type:      "location_update",
		SessionID: sess.ID,
		Kind:      string(sess.Kind),
		Location:  &at,
	}, false)
}

func (n *Notifier) SessionEnded(ctx context.Context, sess emergency.Session) {
	at, ok := n.forget(sess.ID)
	n.limiter.forget(sess.ID)
	if !ok {
		// Never broadcast for this session; nobody to tell.
		return
	}
	n.broadcast(ctx, sess, at, Event{
		Type:      "session_ended",
		SessionID: sess.ID,
		Kind:      string(sess.Kind),
	}, true)
}

// broadcast resolves responders near at and delivers ev to each. When
// pushFallback is set, responders without a live SSE subscription get an Expo
// push instead. location_update events are rate-limited per responder.
func (n *Notifier) broadcast(parent context.Context, sess emergency.Session, at geo.Point, ev Event, pushFallback bool) {
	// Detach from the caller's request context: their operation already
	// succeeded and must not be held up by delivery.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), n.deliverTo)
	defer cancel()

	responders, err := n.presence.Nearby(ctx, at, n.radiusKm)
	if err != nil {
		n.logger.Error("fanout presence lookup failed",
			"session_id", sess.ID,
			"event", ev.Type,
			"error", err,
		)
		return
	}

	delivered := 0
	var offline []string
	for _, r := range responders {
		if r.ID == sess.OwnerID {
			continue
		}
		if ev.Type == "location_update" && !n.limiter.allow(sess.ID, r.ID) {
			continue
		}
		ev.DistanceKm = r.DistanceKm
		if n.broker.Publish(r.ID, ev) {
			delivered++
		} else if pushFallback {
			offline = append(offline, r.ID)
		}
	}

	if len(offline) > 0 && n.tokens != nil && n.pusher != nil {
		tokens, err := n.tokens.TokensFor(ctx, offline)
		if err != nil {
			n.logger.Error("fanout token lookup failed", "error", err)
		} else if len(tokens) > 0 {
			title, body := pushText(ev.Type, sess)
			res := n.pusher.Send(ctx, tokens, title, body, map[string]string{
				"sessionId": sess.ID,
				"type":      ev.Type,
			})
			delivered += res.Success
			if res.Failed > 0 {
				n.logger.Warn("push delivery incomplete",
					"session_id", sess.ID,
					"failed", res.Failed,
				)
			}
		}
	}

	n.logger.Info("fanout broadcast",
		"session_id", sess.ID,
		"event", ev.Type,
		"targets", len(responders),
		"delivered", delivered,
	)
}

func pushText(eventType string, sess emergency.Session) (title, body string) {
	switch eventType {
	case "session_started":
		if sess.Kind == emergency.KindEscort {
			return "Escort started nearby", "A civilian started a tracked journey near you."
		}
		return "Panic alert nearby", "A " + string(sess.Category) + " alert was raised near your location."
	case "session_ended":
		return "Session resolved", "A nearby emergency session has been resolved."
	default:
		return "Location update", "An active session near you has moved."
	}
}

func (n *Notifier) remember(sessionID string, at geo.Point) {
	n.mu.Lock()
	n.lastSeen[sessionID] = at
	n.mu.Unlock()
}

func (n *Notifier) forget(sessionID string) (geo.Point, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	at, ok := n.lastSeen[sessionID]
	delete(n.lastSeen, sessionID)
	return at, ok
}
