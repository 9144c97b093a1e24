package server

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/safeguardhq/safeguard/internal/auth"
	"github.com/safeguardhq/safeguard/internal/fanout"
)

func TestEventsStream(t *testing.T) {
	env := setupEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	token := env.token(t, "responder-1", auth.RoleResponder)

	resp, err := http.Get(srv.URL + "/api/events?token=" + token)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	// Give the subscription a moment to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for !env.broker.Publish("responder-1", fanout.Event{Type: "session_started", SessionID: "s1"}) {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	reader := bufio.NewReader(resp.Body)
	var data string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			break
		}
	}
	if !strings.Contains(data, `"session_started"`) || !strings.Contains(data, `"s1"`) {
		t.Fatalf("unexpected event payload: %s", data)
	}
}

func TestEventsRequiresToken(t *testing.T) {
	env := setupEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}

	civilian := env.token(t, "user-1", auth.RoleCivilian)
	req = httptest.NewRequest(http.MethodGet, "/api/events?token="+civilian, nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("civilian token: expected 403, got %d", w.Code)
	}
}
