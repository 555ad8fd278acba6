package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRecordSuggestion_ConflictAndListing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := RecordSuggestion(ctx, db, "61412345678", "2025-07-01", "recipe-1"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := RecordSuggestion(ctx, db, "61412345678", "2025-07-01", "recipe-1"); !errors.Is(err, ErrAlreadySuggested) {
		t.Fatalf("duplicate suggestion err = %v, want ErrAlreadySuggested", err)
	}

	// Same recipe, different day or recipient: fine.
	if err := RecordSuggestion(ctx, db, "61412345678", "2025-07-02", "recipe-1"); err != nil {
		t.Fatalf("next day: %v", err)
	}
	if err := RecordSuggestion(ctx, db, "61499999999", "2025-07-01", "recipe-1"); err != nil {
		t.Fatalf("other recipient: %v", err)
	}

	ids, err := ListShownRecipeIDs(ctx, db, "61412345678", "2025-07-01")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != "recipe-1" {
		t.Fatalf("shown set = %v", ids)
	}

	n, err := CountSuggestions(ctx, db, "61412345678", "2025-07-01")
	if err != nil || n != 1 {
		t.Fatalf("count = %d err = %v", n, err)
	}
}

func TestRecordSuggestion_ConcurrentSamePickOneWinner(t *testing.T) {
	db := newTestDB(t)

	const workers = 6
	var wg sync.WaitGroup
	outcomes := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes <- RecordSuggestion(context.Background(), db, "r", "2025-07-01", "recipe-42")
		}()
	}
	wg.Wait()
	close(outcomes)

	winners, losers := 0, 0
	for err := range outcomes {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrAlreadySuggested):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || losers != workers-1 {
		t.Fatalf("winners=%d losers=%d", winners, losers)
	}
}

func TestDeleteSuggestions_DayAndRetentionCutoff(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seed := []struct{ day, recipe string }{
		{"2025-06-01", "r1"},
		{"2025-06-15", "r2"},
		{"2025-07-01", "r3"},
		{"2025-07-01", "r4"},
	}
	for _, s := range seed {
		if err := RecordSuggestion(ctx, db, "u", s.day, s.recipe); err != nil {
			t.Fatalf("seed %v: %v", s, err)
		}
	}

	// Midnight reset clears exactly today's rows.
	n, err := DeleteSuggestionsForDay(ctx, db, "2025-07-01")
	if err != nil || n != 2 {
		t.Fatalf("reset removed %d err=%v, want 2", n, err)
	}

	// Retention removes strictly-older days; the cutoff day itself survives.
	n, err = DeleteSuggestionsBefore(ctx, db, "2025-06-15")
	if err != nil || n != 1 {
		t.Fatalf("retention removed %d err=%v, want 1", n, err)
	}
	ids, _ := ListShownRecipeIDs(ctx, db, "u", "2025-06-15")
	if len(ids) != 1 {
		t.Fatalf("cutoff day rows must survive, got %v", ids)
	}
}
