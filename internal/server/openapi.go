package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/reports"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "SafeGuard API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the SafeGuard personal safety app.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/echo
	getWSEcho, _ := r.NewOperationContext(http.MethodGet, "/ws/echo")
	getWSEcho.SetSummary("WebSocket echo")
	getWSEcho.SetDescription("Upgrades to a WebSocket connection that echoes messages back.")
	getWSEcho.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWSEcho)

	// POST /api/sessions
	postSessions, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	postSessions.SetSummary("Activate emergency session")
	postSessions.SetDescription("Opens a panic or escort session, or returns the contact directory for medical and fire categories. Repeats are idempotent. Requires Bearer token.")
	postSessions.AddReqStructure(ActivateRequest{})
	postSessions.AddRespStructure(emergency.ActivateResult{}, openapi.WithHTTPStatus(http.StatusCreated))
	postSessions.AddRespStructure(emergency.ActivateResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postSessions.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSessions.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postSessions)

	// GET /api/sessions/status
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/status")
	getStatus.SetSummary("Active session status")
	getStatus.SetDescription("Returns whether the caller has an active session. Used by clients reconciling local state after reconnect. Requires Bearer token.")
	getStatus.AddRespStructure(emergency.ActiveStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	getStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getStatus)

	// POST /api/sessions/{sessionID}/locations
	postLocation, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/locations")
	postLocation.SetSummary("Ingest location sample")
	postLocation.SetDescription("Appends a location sample to the session track. Stale samples are dropped silently. Requires Bearer token.")
	postLocation.AddReqStructure(LocationRequest{})
	postLocation.AddRespStructure(LocationResponse{}, openapi.WithHTTPStatus(http.StatusAccepted))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postLocation.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postLocation)

	// GET /api/sessions/{sessionID}/locations
	getHistory, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{sessionID}/locations")
	getHistory.SetSummary("Session location history")
	getHistory.SetDescription("Returns the session's location track, oldest first. Owner only. Requires Bearer token.")
	getHistory.AddRespStructure(HistoryResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHistory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getHistory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getHistory)

	// DELETE /api/sessions/{sessionID}
	deleteSession, _ := r.NewOperationContext(http.MethodDelete, "/api/sessions/{sessionID}")
	deleteSession.SetSummary("Deactivate session")
	deleteSession.SetDescription("Resolves the session. Escort sessions purge their location history. A second call returns 409. Requires Bearer token.")
	deleteSession.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteSession)

	// GET /api/contacts
	getContacts, _ := r.NewOperationContext(http.MethodGet, "/api/contacts")
	getContacts.SetSummary("Emergency service contacts")
	getContacts.SetDescription("Returns the emergency-service contact directory. Requires Bearer token.")
	getContacts.AddRespStructure(ContactsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getContacts)

	// POST /api/push-token
	postPushToken, _ := r.NewOperationContext(http.MethodPost, "/api/push-token")
	postPushToken.SetSummary("Register push token")
	postPushToken.SetDescription("Registers an Expo push token for the caller's device. Requires Bearer token.")
	postPushToken.AddReqStructure(PushTokenRequest{})
	postPushToken.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postPushToken.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postPushToken)

	// POST /api/reports
	postReports, _ := r.NewOperationContext(http.MethodPost, "/api/reports")
	postReports.SetSummary("Submit incident report")
	postReports.SetDescription("Stores an incident report. A geolocation is mandatory; submissions without one are rejected with 422. Requires Bearer token.")
	postReports.AddReqStructure(reports.Submission{})
	postReports.AddRespStructure(reports.Report{}, openapi.WithHTTPStatus(http.StatusCreated))
	postReports.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	postReports.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postReports)

	// GET /api/reports
	getReports, _ := r.NewOperationContext(http.MethodGet, "/api/reports")
	getReports.SetSummary("List own reports")
	getReports.SetDescription("Returns the caller's reports, newest first. Requires Bearer token.")
	getReports.AddRespStructure(ReportsResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getReports)

	// POST /api/presence
	postPresence, _ := r.NewOperationContext(http.MethodPost, "/api/presence")
	postPresence.SetSummary("Responder heartbeat")
	postPresence.SetDescription("Refreshes the responder's position and staleness window. Responder role required.")
	postPresence.AddReqStructure(HeartbeatRequest{})
	postPresence.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postPresence.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postPresence)

	// GET /api/sessions/nearby
	getNearby, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/nearby")
	getNearby.SetSummary("Nearby active sessions")
	getNearby.SetDescription("Returns active sessions within radiusKm of lat,lng. Responder role required.")
	getNearby.AddRespStructure(NearbyResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getNearby.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getNearby.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getNearby)

	// POST /api/sessions/{sessionID}/respond
	postRespond, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{sessionID}/respond")
	postRespond.SetSummary("Acknowledge session")
	postRespond.SetDescription("Records that the responder is heading to the session. Responder role required.")
	postRespond.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postRespond.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postRespond.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postRespond)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE alert stream")
	getEvents.SetDescription("Server-Sent Events stream of session alerts for responders. Pass token as query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
