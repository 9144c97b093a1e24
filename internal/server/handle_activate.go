package server

import (
	"net/http"
	"time"

	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/geo"
)

type ActivateRequest struct {
	Kind       string    `json:"kind"`
	Category   string    `json:"category"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracyM"`
	CapturedAt time.Time `json:"capturedAt"`
}

func handleActivate(coord *emergency.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActivateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id := identityFrom(r)
		res, err := coord.Activate(r.Context(), id.UserID,
			emergency.Kind(req.Kind),
			emergency.Category(req.Category),
			emergency.TrackPoint{
				Point:      geo.Point{Lat: req.Latitude, Lng: req.Longitude},
				AccuracyM:  req.AccuracyM,
				CapturedAt: req.CapturedAt,
			})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		// Repeated activation returns the existing session with 200; only a
		// fresh session gets 201.
		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, res)
	}
}
