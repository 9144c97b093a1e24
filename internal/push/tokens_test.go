package push

import (
	"context"
	"testing"

	"github.com/safeguardhq/safeguard/internal/database"
	"github.com/safeguardhq/safeguard/internal/migrations"
)

func setupTokenStore(t *testing.T) *TokenStore {
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
	return NewTokenStore(db)
}

func TestTokenRegisterAndLookup(t *testing.T) {
	store := setupTokenStore(t)
	ctx := context.Background()

	if err := store.Register(ctx, "user-1", "ExponentPushToken[a]"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Second device for the same user.
	if err := store.Register(ctx, "user-1", "ExponentPushToken[b]"); err != nil {
		t.Fatalf("register second device: %v", err)
	}
	// Re-registering is an upsert, not a duplicate.
	if err := store.Register(ctx, "user-1", "ExponentPushToken[a]"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if err := store.Register(ctx, "user-2", "ExponentPushToken[c]"); err != nil {
		t.Fatalf("register user-2: %v", err)
	}

	tokens, err := store.TokensFor(ctx, []string{"user-1"})
	if err != nil {
		t.Fatalf("tokens for user-1: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens for user-1, got %v", tokens)
	}

	tokens, err = store.TokensFor(ctx, []string{"user-1", "user-2"})
	if err != nil {
		t.Fatalf("tokens for both: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}

	tokens, err = store.TokensFor(ctx, nil)
	if err != nil || tokens != nil {
		t.Fatalf("empty lookup should be a no-op, got %v / %v", tokens, err)
	}
}

func TestTokenRegisterRejectsMalformed(t *testing.T) {
	store := setupTokenStore(t)

	if err := store.Register(context.Background(), "user-1", "fcm-token"); err == nil {
		t.Fatal("malformed token must be rejected")
	}
}
