package server

import (
	"net/http"
	"strconv"

	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/geo"
)

type NearbyResponse struct {
	Sessions []emergency.NearbySession `json:"sessions"`
}

func handleNearby(coord *emergency.Coordinator, defaultRadiusKm float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		if errLat != nil || errLng != nil {
			writeError(w, http.StatusBadRequest, "lat and lng query parameters are required")
			return
		}

		p := geo.Point{Lat: lat, Lng: lng}
		if !p.Valid() {
			writeError(w, http.StatusBadRequest, "location out of bounds")
			return
		}

		radius := defaultRadiusKm
		if raw := q.Get("radiusKm"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "radiusKm must be a positive number")
				return
			}
			radius = parsed
		}

		sessions, err := coord.Nearby(r.Context(), p, radius)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NearbyResponse{Sessions: sessions})
	}
}
