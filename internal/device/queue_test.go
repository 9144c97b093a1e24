package device

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/safeguardhq/safeguard/internal/reports"
)

type stubSubmitter struct {
	errs     map[string]error // media ref -> error
	accepted []string
}

func (s *stubSubmitter) SubmitReport(_ context.Context, sub reports.Submission) error {
	if err, ok := s.errs[sub.MediaRef]; ok {
		return err
	}
	s.accepted = append(s.accepted, sub.MediaRef)
	return nil
}

func queueAt(t *testing.T, path string) *Queue {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q, err := OpenQueue(path, logger)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func submission(ref string) reports.Submission {
	lat, lng := 9.0820, 8.6753
	return reports.Submission{MediaRef: ref, Latitude: &lat, Longitude: &lng}
}

func TestQueuePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	q := queueAt(t, path)
	if _, err := q.Enqueue(submission("media/a.mp4")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(submission("media/b.mp4")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Simulate an app restart.
	reopened := queueAt(t, path)
	pending := reopened.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", len(pending))
	}
	if pending[0].UploadStatus != UploadPending || pending[0].ID == "" {
		t.Fatalf("entry lost fields in round trip: %+v", pending[0])
	}
}

func TestQueueFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	q := queueAt(t, path)

	q.Enqueue(submission("media/ok.mp4"))
	q.Enqueue(submission("media/invalid.mp4"))
	q.Enqueue(submission("media/offline.mp4"))

	sub := &stubSubmitter{errs: map[string]error{
		"media/invalid.mp4": reports.ErrLocationRequired,
		"media/offline.mp4": ErrNetworkUnavailable,
	}}

	err := q.Flush(context.Background(), sub)
	if err == nil {
		t.Fatal("flush with a transient failure must report it")
	}

	// Accepted removed, invalid dropped, transient kept and marked.
	pending := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(pending))
	}
	if pending[0].Payload.MediaRef != "media/offline.mp4" {
		t.Fatalf("wrong survivor: %s", pending[0].Payload.MediaRef)
	}
	if pending[0].UploadStatus != UploadFailed {
		t.Fatalf("survivor not marked failed: %s", pending[0].UploadStatus)
	}
	if len(sub.accepted) != 1 || sub.accepted[0] != "media/ok.mp4" {
		t.Fatalf("unexpected accepted set: %v", sub.accepted)
	}

	// Connectivity back: the survivor drains.
	sub.errs = nil
	if err := q.Flush(context.Background(), sub); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(q.Pending()) != 0 {
		t.Fatal("queue not drained")
	}
}

func TestQueueFlushEmpty(t *testing.T) {
	q := queueAt(t, filepath.Join(t.TempDir(), "queue.json"))
	if err := q.Flush(context.Background(), &stubSubmitter{}); err != nil {
		t.Fatalf("empty flush: %v", err)
	}
}
