package server

import (
	"net/http"
	"strings"

	"github.com/safeguardhq/safeguard/internal/push"
)

type PushTokenRequest struct {
	Token string `json:"token"`
}

func handleRegisterPushToken(tokens *push.TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PushTokenRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Token = strings.TrimSpace(req.Token)
		if !push.ValidToken(req.Token) {
			writeError(w, http.StatusBadRequest, "not an Expo push token")
			return
		}

		id := identityFrom(r)
		if err := tokens.Register(r.Context(), id.UserID, req.Token); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
