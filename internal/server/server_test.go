package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safeguardhq/safeguard/internal/auth"
	"github.com/safeguardhq/safeguard/internal/database"
	"github.com/safeguardhq/safeguard/internal/emergency"
	"github.com/safeguardhq/safeguard/internal/fanout"
	"github.com/safeguardhq/safeguard/internal/geo"
	"github.com/safeguardhq/safeguard/internal/migrations"
	"github.com/safeguardhq/safeguard/internal/presence"
	"github.com/safeguardhq/safeguard/internal/push"
	"github.com/safeguardhq/safeguard/internal/reports"
)

type testEnv struct {
	router   *chi.Mux
	verifier *auth.JWTVerifier
	broker   *fanout.Broker
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := auth.NewJWTVerifier("test-secret")
	broker := fanout.NewBroker()
	presenceStore := presence.NewMemoryStore(5 * time.Minute)
	tokens := push.NewTokenStore(db)

	notifier := fanout.NewNotifier(broker, presenceStore, tokens, nil, logger, fanout.Config{RadiusKm: 5})
	coord := emergency.NewCoordinator(emergency.NewSQLiteStore(db), geo.NewIndex(0), notifier, logger)

	r := chi.NewRouter()
	addRoutes(r, Deps{
		Logger:          logger,
		DB:              db,
		Verifier:        verifier,
		Coordinator:     coord,
		Broker:          broker,
		Presence:        presenceStore,
		Reports:         reports.NewStore(db),
		Tokens:          tokens,
		DefaultRadiusKm: 5,
	})
	return &testEnv{router: r, verifier: verifier, broker: broker}
}

func (e *testEnv) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := e.verifier.Issue(userID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func activateBody(secs int) map[string]any {
	return map[string]any{
		"kind":       "panic",
		"category":   "violence",
		"latitude":   9.0820,
		"longitude":  8.6753,
		"accuracyM":  10,
		"capturedAt": time.Date(2026, 3, 1, 12, 0, secs, 0, time.UTC).Format(time.RFC3339),
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	env := setupEnv(t)
	owner := env.token(t, "owner-1", auth.RoleCivilian)
	responder := env.token(t, "responder-1", auth.RoleResponder)

	// Activate.
	w := env.do(t, http.MethodPost, "/api/sessions", owner, activateBody(0))
	if w.Code != http.StatusCreated {
		t.Fatalf("activate: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var res emergency.ActivateResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Session == nil || !res.Created {
		t.Fatalf("unexpected activate result: %+v", res)
	}
	sessionID := res.Session.ID

	// Repeat activation converges on the same session with 200.
	w = env.do(t, http.MethodPost, "/api/sessions", owner, activateBody(5))
	if w.Code != http.StatusOK {
		t.Fatalf("repeat activate: expected 200, got %d", w.Code)
	}

	// Status reflects it.
	w = env.do(t, http.MethodGet, "/api/sessions/status", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", w.Code)
	}
	var status emergency.ActiveStatus
	json.NewDecoder(w.Body).Decode(&status)
	if !status.Active || status.SessionID != sessionID {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Ingest a location.
	w = env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/locations", owner, map[string]any{
		"latitude":   9.0825,
		"longitude":  8.6760,
		"capturedAt": time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC).Format(time.RFC3339),
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("ingest: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	// Responder heartbeat, then nearby lookup.
	w = env.do(t, http.MethodPost, "/api/presence", responder, map[string]any{
		"latitude": 9.0850, "longitude": 8.6800,
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("heartbeat: expected 204, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/sessions/nearby?lat=9.0850&lng=8.6800", responder, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("nearby: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var nearby NearbyResponse
	json.NewDecoder(w.Body).Decode(&nearby)
	if len(nearby.Sessions) != 1 || nearby.Sessions[0].Session.ID != sessionID {
		t.Fatalf("unexpected nearby payload: %+v", nearby)
	}

	// Responder acknowledges.
	w = env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/respond", responder, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("respond: expected 204, got %d", w.Code)
	}

	// Owner reads history.
	w = env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/locations", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	var history HistoryResponse
	json.NewDecoder(w.Body).Decode(&history)
	if len(history.Points) != 2 {
		t.Fatalf("expected 2 history points, got %d", len(history.Points))
	}

	// Deactivate, then the repeat conflicts.
	w = env.do(t, http.MethodDelete, "/api/sessions/"+sessionID, owner, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/api/sessions/"+sessionID, owner, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second deactivate: expected 409, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := setupEnv(t)

	w := env.do(t, http.MethodPost, "/api/sessions", "", activateBody(0))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/sessions", "garbage", activateBody(0))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", w.Code)
	}
}

func TestResponderRoutesGated(t *testing.T) {
	env := setupEnv(t)
	civilian := env.token(t, "user-1", auth.RoleCivilian)

	for _, path := range []string{"/api/presence"} {
		w := env.do(t, http.MethodPost, path, civilian, map[string]any{"latitude": 9.0, "longitude": 8.6})
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for civilian, got %d", path, w.Code)
		}
	}
	w := env.do(t, http.MethodGet, "/api/sessions/nearby?lat=9.0&lng=8.6", civilian, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("nearby: expected 403 for civilian, got %d", w.Code)
	}
}

func TestOwnershipEnforcedOverHTTP(t *testing.T) {
	env := setupEnv(t)
	owner := env.token(t, "owner-1", auth.RoleCivilian)
	other := env.token(t, "owner-2", auth.RoleCivilian)

	w := env.do(t, http.MethodPost, "/api/sessions", owner, activateBody(0))
	var res emergency.ActivateResult
	json.NewDecoder(w.Body).Decode(&res)
	sessionID := res.Session.ID

	w = env.do(t, http.MethodDelete, "/api/sessions/"+sessionID, other, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign deactivate: expected 403, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/sessions/"+sessionID+"/locations", other, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign history: expected 403, got %d", w.Code)
	}
}

func TestMedicalRoutesToContacts(t *testing.T) {
	env := setupEnv(t)
	owner := env.token(t, "owner-1", auth.RoleCivilian)

	body := activateBody(0)
	body["category"] = "medical"
	w := env.do(t, http.MethodPost, "/api/sessions", owner, body)
	if w.Code != http.StatusOK {
		t.Fatalf("medical activate: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res emergency.ActivateResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Session != nil || len(res.Contacts) == 0 {
		t.Fatalf("expected contact routing, got %+v", res)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	env := setupEnv(t)
	owner := env.token(t, "owner-1", auth.RoleCivilian)

	w := env.do(t, http.MethodDelete, "/api/sessions/nope", owner, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReportEndpoints(t *testing.T) {
	env := setupEnv(t)
	user := env.token(t, "user-1", auth.RoleCivilian)

	// Missing location is the client's offline-queue signal.
	w := env.do(t, http.MethodPost, "/api/reports", user, map[string]any{
		"mediaBlobRef": "media/a.mp4",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("locationless report: expected 422, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/reports", user, map[string]any{
		"mediaBlobRef": "media/a.mp4",
		"latitude":     9.0820,
		"longitude":    8.6753,
		"caption":      "harassment at the park",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("report: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/reports", user, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list reports: expected 200, got %d", w.Code)
	}
	var list ReportsResponse
	json.NewDecoder(w.Body).Decode(&list)
	if len(list.Reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(list.Reports))
	}
}

func TestPushTokenEndpoint(t *testing.T) {
	env := setupEnv(t)
	user := env.token(t, "user-1", auth.RoleCivilian)

	w := env.do(t, http.MethodPost, "/api/push-token", user, map[string]any{
		"token": "ExponentPushToken[abc]",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("register: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/push-token", user, map[string]any{
		"token": "not-a-token",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed token: expected 400, got %d", w.Code)
	}
}

func TestContactsEndpoint(t *testing.T) {
	env := setupEnv(t)
	user := env.token(t, "user-1", auth.RoleCivilian)

	w := env.do(t, http.MethodGet, "/api/contacts", user, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("contacts: expected 200, got %d", w.Code)
	}
	var resp ContactsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Contacts) == 0 {
		t.Fatal("expected seeded contact directory")
	}
}
