// Package push delivers notifications to devices through the Expo push API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the Expo push send API.
const DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

// Expo accepts at most 100 messages per request.
const batchSize = 100

// Message is a single Expo push message.
type Message struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority"`
	Sound    string            `json:"sound"`
	Badge    int               `json:"badge"`
}

// Result summarizes a batch send.
type Result struct {
	Success int
	Failed  int
}

type ticket struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

// Client sends push notifications. Delivery is best-effort; callers treat a
// zero-success result the same as any other outcome.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint string, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// ValidToken reports whether token looks like an Expo push token.
func ValidToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") && strings.HasSuffix(token, "]")
}

// Send delivers title/body to every valid token, batching per the Expo limit.
// Invalid tokens count as failed without a network round trip.
func (c *Client) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) Result {
	var res Result
	var messages []Message
	for _, t := range tokens {
		if !ValidToken(t) {
			res.Failed++
			continue
		}
		messages = append(messages, Message{
			To:       t,
			Title:    title,
			Body:     body,
			Data:     data,
			Priority: "high",
			Sound:    "default",
			Badge:    1,
		})
	}

	for start := 0; start < len(messages); start += batchSize {
		end := min(start+batchSize, len(messages))
		batch := messages[start:end]

		ok, failed, err := c.sendBatch(ctx, batch)
		if err != nil {
			c.logger.Error("push batch failed", "size", len(batch), "error", err)
			res.Failed += len(batch)
			continue
		}
		res.Success += ok
		res.Failed += failed
	}
	return res
}

func (c *Client) sendBatch(ctx context.Context, batch []Message) (ok, failed int, err error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("expo returned status %d", resp.StatusCode)
	}

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("decoding expo response: %w", err)
	}

	for _, t := range body.Data {
		if t.Status == "ok" {
			ok++
		} else {
			failed++
			c.logger.Warn("push ticket rejected", "message", t.Message)
		}
	}
	return ok, failed, nil
}
