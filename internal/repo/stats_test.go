package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

func TestStats_CountsAndDayScoping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	if _, err := SeedRecipes(ctx, db, []string{"Tacos", "Ramen"}); err != nil {
		t.Fatalf("seed recipes: %v", err)
	}
	if err := RecordSuggestion(ctx, db, "u", "2025-07-01", "r1"); err != nil {
		t.Fatalf("suggestion today: %v", err)
	}
	if err := RecordSuggestion(ctx, db, "u", "2025-06-30", "r1"); err != nil {
		t.Fatalf("suggestion yesterday: %v", err)
	}
	if _, err := RecordEventIfNew(ctx, db, "wamid.1", "u", "greeting", 48*time.Hour, now); err != nil {
		t.Fatalf("event: %v", err)
	}
	if _, err := CreateReceipt(ctx, db, "u", "m", "image/jpeg", 1, "2025-07-01", false); err != nil {
		t.Fatalf("receipt: %v", err)
	}
	p := &domain.Prediction{UserPhone: "u", Items: `["Milk"]`}
	if err := CreatePrediction(ctx, db, p); err != nil {
		t.Fatalf("prediction: %v", err)
	}
	if _, err := CreateSession(ctx, db, p.ID, "u", now.Add(5*time.Hour)); err != nil {
		t.Fatalf("session: %v", err)
	}
	closed, err := CreateSession(ctx, db, p.ID, "v", now.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("session 2: %v", err)
	}
	if err := CloseSession(ctx, db, closed.ID, domain.SessionCancelled, now); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err := Stats(ctx, db, "2025-07-01")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Recipes != 2 {
		t.Errorf("recipes = %d, want 2", s.Recipes)
	}
	if s.SuggestionsToday != 1 {
		t.Errorf("suggestions_today = %d, want 1 (yesterday excluded)", s.SuggestionsToday)
	}
	if s.ProcessedEvents != 1 {
		t.Errorf("processed_events = %d, want 1", s.ProcessedEvents)
	}
	if s.Receipts != 1 {
		t.Errorf("receipts = %d, want 1", s.Receipts)
	}
	if s.Predictions != 1 {
		t.Errorf("predictions = %d, want 1", s.Predictions)
	}
	if s.WaitingSessions != 1 {
		t.Errorf("waiting_sessions = %d, want 1 (closed excluded)", s.WaitingSessions)
	}
}
