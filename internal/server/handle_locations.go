package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/geo"
)

type LocationRequest struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  float64   `json:"accuracyM"`
	CapturedAt time.Time `json:"capturedAt"`
}

type LocationResponse struct {
	Accepted bool `json:"accepted"`
}

func handleIngestLocation(coord *emergency.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id := identityFrom(r)
		err := coord.IngestLocation(r.Context(), id.UserID, chi.URLParam(r, "sessionID"),
			emergency.TrackPoint{
				Point:      geo.Point{Lat: req.Latitude, Lng: req.Longitude},
				AccuracyM:  req.AccuracyM,
				CapturedAt: req.CapturedAt,
			})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		// 202 whether the sample was appended or dropped as stale; the
		// client cannot act on the difference mid-emergency.
		writeJSON(w, http.StatusAccepted, LocationResponse{Accepted: true})
	}
}

type HistoryResponse struct {
	SessionID string                 `json:"sessionId"`
	Points    []emergency.TrackPoint `json:"points"`
}

func handleHistory(coord *emergency.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		sessionID := chi.URLParam(r, "sessionID")

		points, err := coord.History(r.Context(), id.UserID, sessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if points == nil {
			points = []emergency.TrackPoint{}
		}
		writeJSON(w, http.StatusOK, HistoryResponse{SessionID: sessionID, Points: points})
	}
}
