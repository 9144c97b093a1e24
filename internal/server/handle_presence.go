package server

import (
	"net/http"

	"github.com/safeguardhq/safeguard/internal/geo"
	"github.com/safeguardhq/safeguard/internal/presence"
)

type HeartbeatRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func handleHeartbeat(store presence.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HeartbeatRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		p := geo.Point{Lat: req.Latitude, Lng: req.Longitude}
		if !p.Valid() {
			writeError(w, http.StatusBadRequest, "location out of bounds")
			return
		}

		id := identityFrom(r)
		if err := store.Heartbeat(r.Context(), id.UserID, p); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
