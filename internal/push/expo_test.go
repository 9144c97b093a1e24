package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expoToken(i int) string {
	return fmt.Sprintf("ExponentPushToken[tok-%d]", i)
}

func TestValidToken(t *testing.T) {
	if !ValidToken("ExponentPushToken[abc123]") {
		t.Fatal("well-formed token rejected")
	}
	for _, bad := range []string{"", "abc123", "ExponentPushToken[abc", "FCMToken[abc]"} {
		if ValidToken(bad) {
			t.Fatalf("accepted malformed token %q", bad)
		}
	}
}

func TestSendBatching(t *testing.T) {
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msgs []Message
		if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
			t.Errorf("decode batch: %v", err)
		}
		batches = append(batches, len(msgs))

		tickets := make([]ticket, len(msgs))
		for i, m := range msgs {
			tickets[i] = ticket{Status: "ok"}
			if m.Priority != "high" || m.Sound != "default" || m.Badge != 1 {
				t.Errorf("unexpected message fields: %+v", m)
			}
		}
		json.NewEncoder(w).Encode(sendResponse{Data: tickets})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())

	tokens := make([]string, 130)
	for i := range tokens {
		tokens[i] = expoToken(i)
	}

	res := client.Send(context.Background(), tokens, "Panic alert nearby", "body", nil)
	if res.Success != 130 || res.Failed != 0 {
		t.Fatalf("expected 130 successes, got %+v", res)
	}
	if len(batches) != 2 || batches[0] != 100 || batches[1] != 30 {
		t.Fatalf("expected batches of 100 and 30, got %v", batches)
	}
}

func TestSendSkipsInvalidTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msgs []Message
		json.NewDecoder(r.Body).Decode(&msgs)
		if len(msgs) != 1 {
			t.Errorf("expected only the valid token on the wire, got %d", len(msgs))
		}
		json.NewEncoder(w).Encode(sendResponse{Data: []ticket{{Status: "ok"}}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())
	res := client.Send(context.Background(), []string{"not-a-token", expoToken(1)}, "t", "b", nil)
	if res.Success != 1 || res.Failed != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %+v", res)
	}
}

func TestSendCountsRejectedTickets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{Data: []ticket{
			{Status: "ok"},
			{Status: "error", Message: "DeviceNotRegistered"},
		}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())
	res := client.Send(context.Background(), []string{expoToken(1), expoToken(2)}, "t", "b", nil)
	if res.Success != 1 || res.Failed != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %+v", res)
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())
	res := client.Send(context.Background(), []string{expoToken(1)}, "t", "b", nil)
	if res.Success != 0 || res.Failed != 1 {
		t.Fatalf("expected a failed batch, got %+v", res)
	}
}
