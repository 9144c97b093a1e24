package push

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TokenStore is the per-user device push-token registry. A user may hold
// several tokens (one per device); registering an existing token refreshes
// its timestamp.
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Register stores a token for the user. Tokens that do not look like Expo
// tokens are rejected up front rather than failing at send time.
func (s *TokenStore) Register(ctx context.Context, userID, token string) error {
	if !ValidToken(token) {
		return fmt.Errorf("not an Expo push token")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_tokens (user_id, token, registered_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, token) DO UPDATE SET registered_at = excluded.registered_at
	`, userID, token, time.Now().UTC().UnixMilli())
	return err
}

// TokensFor returns all tokens registered by the given users.
func (s *TokenStore) TokensFor(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT token FROM push_tokens WHERE user_id IN (?`
	args := []any{userIDs[0]}
	for _, id := range userIDs[1:] {
		query += `, ?`
		args = append(args, id)
	}
	query += `)`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
