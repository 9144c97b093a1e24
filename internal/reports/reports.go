// Package reports implements the report/media collaborator contract: every
// submitted report must carry a geolocation and a media reference. Media
// bytes themselves are handled elsewhere; only the opaque reference lands
// here.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/safeguardhq/safeguard/internal/geo"
)

// ErrLocationRequired rejects submissions without coordinates. The client
// falls back to its offline queue and retries once a fix is available.
var ErrLocationRequired = errors.New("report requires a geolocation")

// ErrValidation is returned for otherwise malformed submissions.
var ErrValidation = errors.New("invalid report submission")

// Submission is the inbound report payload.
type Submission struct {
	MediaRef        string   `json:"mediaBlobRef"`
	Caption         string   `json:"caption"`
	IsAnonymous     bool     `json:"isAnonymous"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	DurationSeconds int      `json:"durationSeconds"`
}

// Report is a stored incident report.
type Report struct {
	ID              string    `json:"id"`
	ReporterID      string    `json:"reporterId,omitempty"`
	MediaRef        string    `json:"mediaBlobRef"`
	Caption         string    `json:"caption"`
	IsAnonymous     bool      `json:"isAnonymous"`
	Location        geo.Point `json:"location"`
	DurationSeconds int       `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store persists reports.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Submit validates and stores a report, returning its server-assigned id.
func (s *Store) Submit(ctx context.Context, reporterID string, sub Submission) (Report, error) {
	if sub.Latitude == nil || sub.Longitude == nil {
		return Report{}, ErrLocationRequired
	}
	loc := geo.Point{Lat: *sub.Latitude, Lng: *sub.Longitude}
	if !loc.Valid() {
		return Report{}, fmt.Errorf("%w: coordinates out of bounds", ErrValidation)
	}
	if sub.MediaRef == "" {
		return Report{}, fmt.Errorf("%w: media reference is required", ErrValidation)
	}

	rep := Report{
		ID:              uuid.NewString(),
		ReporterID:      reporterID,
		MediaRef:        sub.MediaRef,
		Caption:         sub.Caption,
		IsAnonymous:     sub.IsAnonymous,
		Location:        loc,
		DurationSeconds: sub.DurationSeconds,
		CreatedAt:       time.Now().UTC(),
	}

	anon := 0
	if rep.IsAnonymous {
		anon = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, media_ref, caption, is_anonymous, latitude, longitude, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rep.ID, rep.ReporterID, rep.MediaRef, rep.Caption, anon, rep.Location.Lat, rep.Location.Lng, rep.DurationSeconds, rep.CreatedAt.UnixMilli())
	if err != nil {
		return Report{}, fmt.Errorf("storing report: %w", err)
	}
	return rep, nil
}

// ByReporter returns the reporter's own submissions, newest first.
func (s *Store) ByReporter(ctx context.Context, reporterID string) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_ref, caption, is_anonymous, latitude, longitude, duration_seconds, created_at
		FROM reports
		WHERE reporter_id = ?
		ORDER BY created_at DESC
	`, reporterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var rep Report
		var anon int
		var createdMs int64
		if err := rows.Scan(&rep.ID, &rep.MediaRef, &rep.Caption, &anon, &rep.Location.Lat, &rep.Location.Lng, &rep.DurationSeconds, &createdMs); err != nil {
			return nil, err
		}
		rep.ReporterID = reporterID
		rep.IsAnonymous = anon == 1
		rep.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, rep)
	}
	return out, rows.Err()
}
