package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safeguardhq/safeguard/internal/auth"
	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/reports"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Anything
// unrecognized is an internal error with no detail leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "invalid or expired credential")
	case errors.Is(err, emergency.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not your session")
	case errors.Is(err, emergency.ErrSessionNotActive):
		writeError(w, http.StatusConflict, "session is not active")
	case errors.Is(err, emergency.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, reports.ErrLocationRequired):
		writeError(w, http.StatusUnprocessableEntity, "a geolocation is required")
	case errors.Is(err, emergency.ErrValidation), errors.Is(err, reports.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
