package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/safeguardhq/safeguard/internal/auth"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

// authMiddleware validates the bearer credential and short-circuits with 401
// before any session state can be touched.
func authMiddleware(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || token == "" {
				writeError(w, http.StatusUnauthorized, "bearer token required")
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired credential")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole gates a subtree to one role. Admins pass everywhere.
func requireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identityFrom(r)
			if id.Role != role && id.Role != auth.RoleAdmin {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFrom(r *http.Request) auth.Identity {
	return r.Context().Value(ctxKeyIdentity).(auth.Identity)
}
