package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/safeguardhq/safeguard/internal/auth"
	"github.com/safeguardhq/safeguard/internal/fanout"
)

// handleEvents streams fanout events to a responder over SSE. EventSource
// cannot set headers, so the credential travels as a query parameter.
func handleEvents(verifier auth.Verifier, broker *fanout.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "token query parameter required")
			return
		}

		id, err := verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired credential")
			return
		}
		if id.Role != auth.RoleResponder && id.Role != auth.RoleAdmin {
			writeError(w, http.StatusForbidden, "responder role required")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ch := broker.Subscribe(id.UserID)
		defer broker.Unsubscribe(id.UserID, ch)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: alert\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
