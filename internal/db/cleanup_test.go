package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"turnstile/internal/models"
)

func TestCleanupRemovesOnlyAncientTokens(t *testing.T) {
	database := openTestDB(t)
	accounts := NewAccountRepository(database)
	tokens := NewTokenRepository(database)
	ctx := context.Background()

	account := mustCreateAccount(t, accounts, "6001")

	ancient, err := tokens.Create(ctx, account.ID, models.PurposeCredit, nil, 2)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Expired but not yet old enough to collect.
	expired, err := tokens.Create(ctx, account.ID, models.PurposeCredit, nil, 2)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := database.ExecContext(ctx,
		`UPDATE verify_tokens SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-staleTokenAge-time.Hour), ancient.ID); err != nil {
		t.Fatalf("aging token: %v", err)
	}
	if _, err := database.ExecContext(ctx,
		`UPDATE verify_tokens SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-2*time.Hour), expired.ID); err != nil {
		t.Fatalf("aging token: %v", err)
	}

	service := NewCleanupService(tokens)
	service.runCleanup(ctx)

	if _, err := tokens.FindByToken(ctx, ancient.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ancient token error = %v, want ErrNotFound", err)
	}
	if _, err := tokens.FindByToken(ctx, expired.Token); err != nil {
		t.Fatalf("recent token error = %v, want nil", err)
	}
}

func TestCleanupStopsOnContextCancel(t *testing.T) {
	database := openTestDB(t)
	tokens := NewTokenRepository(database)

	service := NewCleanupService(tokens)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		service.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("cleanup service did not stop after cancel")
	}
}
