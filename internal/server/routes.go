package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/safeguardhq/safeguard/internal/auth"
)

func addRoutes(r chi.Router, d Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("SafeGuard API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(d.Logger, d.DB, d.Redis))
	r.Get("/ws/echo", handleWSEcho(d.Logger))

	// SSE authenticates via query parameter, outside the bearer middleware.
	r.Get("/api/events", handleEvents(d.Verifier, d.Broker))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(d.Verifier))

		// Civilian session lifecycle.
		r.Post("/sessions", handleActivate(d.Coordinator))
		r.Get("/sessions/status", handleStatus(d.Coordinator))
		r.Post("/sessions/{sessionID}/locations", handleIngestLocation(d.Coordinator))
		r.Get("/sessions/{sessionID}/locations", handleHistory(d.Coordinator))
		r.Delete("/sessions/{sessionID}", handleDeactivate(d.Coordinator))

		r.Get("/contacts", handleContacts(d.Coordinator))
		r.Post("/push-token", handleRegisterPushToken(d.Tokens))

		r.Post("/reports", handleSubmitReport(d.Reports))
		r.Get("/reports", handleListReports(d.Reports))

		// Responder surface.
		r.Group(func(r chi.Router) {
			r.Use(requireRole(auth.RoleResponder))
			r.Post("/presence", handleHeartbeat(d.Presence))
			r.Get("/sessions/nearby", handleNearby(d.Coordinator, d.DefaultRadiusKm))
			r.Post("/sessions/{sessionID}/respond", handleRespond(d.Coordinator))
		})
	})
}
