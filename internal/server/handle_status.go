package server

import (
	"net/http"

	"github.com/safeguardhq/safeguard/internal/emergency"
)

func handleStatus(coord *emergency.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		status, err := coord.Status(r.Context(), id.UserID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
