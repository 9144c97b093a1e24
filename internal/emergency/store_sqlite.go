package emergency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore implements Store over libsql. The one-active-session-per-owner
// invariant is enforced by a partial unique index on (owner_id, kind) WHERE
// status='active', so concurrent activations collapse onto a single row.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) CreateIfNoneActive(ctx context.Context, ownerID string, kind Kind, category Category, seed TrackPoint) (Session, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, false, fmt.Errorf("beginning activation tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	activatedAt := seed.CapturedAt.UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, owner_id, kind, category, status, activated_at)
		VALUES (?, ?, ?, ?, 'active', ?)
		ON CONFLICT DO NOTHING
	`, id, ownerID, string(kind), string(category), activatedAt.UnixMilli())
	if err != nil {
		return Session{}, false, fmt.Errorf("inserting session: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return Session{}, false, err
	}

	if inserted == 0 {
		// Lost the race (or a duplicate tap): return the session that won.
		var sess Session
		var activatedMs int64
		err := tx.QueryRowContext(ctx, `
			SELECT id, owner_id, kind, category, status, activated_at
			FROM sessions
			WHERE owner_id = ? AND kind = ? AND status = 'active'
		`, ownerID, string(kind)).Scan(&sess.ID, &sess.OwnerID, &sess.Kind, &sess.Category, &sess.Status, &activatedMs)
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, false, ErrNotFound
		}
		if err != nil {
			return Session{}, false, err
		}
		sess.ActivatedAt = time.UnixMilli(activatedMs).UTC()
		return sess, false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_locations (session_id, latitude, longitude, accuracy_m, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, seed.Point.Lat, seed.Point.Lng, seed.AccuracyM, seed.CapturedAt.UTC().UnixMilli())
	if err != nil {
		return Session{}, false, fmt.Errorf("seeding location history: %w", err)
	}

	sess := Session{
		ID:          id,
		OwnerID:     ownerID,
		Kind:        kind,
		Category:    category,
		Status:      StatusActive,
		ActivatedAt: activatedAt,
	}
	return sess, true, tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, category, status, activated_at, resolved_at
		FROM sessions WHERE id = ?
	`, sessionID))
}

func (s *SQLiteStore) ActiveByOwner(ctx context.Context, ownerID string, kind Kind) (Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, category, status, activated_at, resolved_at
		FROM sessions
		WHERE owner_id = ? AND kind = ? AND status = 'active'
	`, ownerID, string(kind)))
}

func (s *SQLiteStore) AppendLocation(ctx context.Context, sessionID string, p TrackPoint) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM sessions WHERE id = ?
	`, sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if status != string(StatusActive) {
		return false, ErrSessionNotActive
	}

	// Append only when strictly newer than the last stored point; duplicate
	// and out-of-order samples fall through with zero rows affected.
	capturedMs := p.CapturedAt.UTC().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO session_locations (session_id, latitude, longitude, accuracy_m, captured_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM session_locations
			WHERE session_id = ? AND captured_at >= ?
		)
	`, sessionID, p.Point.Lat, p.Point.Lng, p.AccuracyM, capturedMs, sessionID, capturedMs)
	if err != nil {
		return false, fmt.Errorf("appending location: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) LastLocation(ctx context.Context, sessionID string) (TrackPoint, error) {
	var p TrackPoint
	var capturedMs int64
	err := s.db.QueryRowContext(ctx, `
		SELECT latitude, longitude, accuracy_m, captured_at
		FROM session_locations
		WHERE session_id = ?
		ORDER BY captured_at DESC
		LIMIT 1
	`, sessionID).Scan(&p.Point.Lat, &p.Point.Lng, &p.AccuracyM, &capturedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.CapturedAt = time.UnixMilli(capturedMs).UTC()
	return p, nil
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]TrackPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT latitude, longitude, accuracy_m, captured_at
		FROM session_locations
		WHERE session_id = ?
		ORDER BY captured_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []TrackPoint
	for rows.Next() {
		var p TrackPoint
		var capturedMs int64
		if err := rows.Scan(&p.Point.Lat, &p.Point.Lng, &p.AccuracyM, &capturedMs); err != nil {
			return nil, err
		}
		p.CapturedAt = time.UnixMilli(capturedMs).UTC()
		history = append(history, p)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) Resolve(ctx context.Context, sessionID string, at time.Time, purgeHistory bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning resolve tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET status = 'resolved', resolved_at = ?
		WHERE id = ? AND status = 'active'
	`, at.UTC().UnixMilli(), sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrSessionNotActive
	}

	if purgeHistory {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM session_locations WHERE session_id = ?
		`, sessionID); err != nil {
			return fmt.Errorf("purging location history: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecordResponse(ctx context.Context, sessionID, responderID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_responses (session_id, responder_id, responded_at)
		VALUES (?, ?, ?)
		ON CONFLICT (session_id, responder_id) DO NOTHING
	`, sessionID, responderID, at.UTC().UnixMilli())
	return err
}

func (s *SQLiteStore) ActiveSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, kind, category, status, activated_at, resolved_at
		FROM sessions WHERE status = 'active'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) Contacts(ctx context.Context) ([]ContactCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, service, priority
		FROM emergency_contacts
		ORDER BY priority DESC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []ContactCard
	for rows.Next() {
		var c ContactCard
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Service, &c.Priority); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var activatedMs int64
	var resolvedMs sql.NullInt64
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Kind, &sess.Category, &sess.Status, &activatedMs, &resolvedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, ErrNotFound
	}
	if err != nil {
		return sess, err
	}
	sess.ActivatedAt = time.UnixMilli(activatedMs).UTC()
	if resolvedMs.Valid {
		t := time.UnixMilli(resolvedMs.Int64).UTC()
		sess.ResolvedAt = &t
	}
	return sess, nil
}
