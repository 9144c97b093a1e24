package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safeguardhq/safeguard/internal/reports"
)

// ErrNetworkUnavailable signals a transient connectivity failure; the
// submission stays queued for a later retry.
var ErrNetworkUnavailable = errors.New("network unavailable")

// UploadStatus tracks a pending entry's lifecycle.
type UploadStatus string

const (
	UploadPending UploadStatus = "pending"
	UploadFailed  UploadStatus = "failed"
)

// PendingReport is one queued submission.
type PendingReport struct {
	ID           string             `json:"id"`
	Payload      reports.Submission `json:"payload"`
	CreatedAt    time.Time          `json:"createdAt"`
	UploadStatus UploadStatus       `json:"uploadStatus"`
}

// Submitter ships a queued report to the server.
type Submitter interface {
	SubmitReport(ctx context.Context, sub reports.Submission) error
}

// Queue is the device-local offline report queue: append-only, persisted as
// a JSON file, entries removed only after confirmed server acceptance.
type Queue struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries []PendingReport
}

// OpenQueue loads (or creates) the queue file at path.
func OpenQueue(path string, logger *slog.Logger) (*Queue, error) {
	q := &Queue{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading queue file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &q.entries); err != nil {
			return nil, fmt.Errorf("decoding queue file: %w", err)
		}
	}
	return q, nil
}

// Enqueue appends a submission for later upload.
func (q *Queue) Enqueue(sub reports.Submission) (PendingReport, error) {
	entry := PendingReport{
		ID:           uuid.NewString(),
		Payload:      sub,
		CreatedAt:    time.Now().UTC(),
		UploadStatus: UploadPending,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	if err := q.persist(); err != nil {
		q.entries = q.entries[:len(q.entries)-1]
		return PendingReport{}, err
	}
	return entry, nil
}

// Pending returns a copy of the queued entries.
func (q *Queue) Pending() []PendingReport {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingReport, len(q.entries))
	copy(out, q.entries)
	return out
}

// Flush retries every queued entry. Accepted entries are removed; entries
// that fail validation permanently are dropped with a log line, and
// transient failures stay queued marked failed for the next flush.
func (q *Queue) Flush(ctx context.Context, submit Submitter) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var remaining []PendingReport
	var lastErr error
	for _, entry := range q.entries {
		err := submit.SubmitReport(ctx, entry.Payload)
		switch {
		case err == nil:
			// Confirmed accepted; drop from the queue.
		case errors.Is(err, reports.ErrValidation), errors.Is(err, reports.ErrLocationRequired):
			q.logger.Error("dropping unsubmittable queued report", "id", entry.ID, "error", err)
		default:
			entry.UploadStatus = UploadFailed
			remaining = append(remaining, entry)
			lastErr = err
		}
	}
	q.entries = remaining
	if err := q.persist(); err != nil {
		return err
	}
	return lastErr
}

// persist writes the queue atomically. Callers hold q.mu.
func (q *Queue) persist() error {
	data, err := json.MarshalIndent(q.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := q.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}
