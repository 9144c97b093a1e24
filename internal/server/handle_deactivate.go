package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safeguardhq/safeguard/internal/emergency"
)

func handleDeactivate(coord *emergency.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r)
		if err := coord.Deactivate(r.Context(), id.UserID, chi.URLParam(r, "sessionID")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
