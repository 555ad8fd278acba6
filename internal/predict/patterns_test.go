package predict

import (
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-recipe-bot/internal/domain"
)

func fixtures() ([]domain.ReceiptItem, []domain.Receipt) {
	receipts := []domain.Receipt{
		{ID: "r1", PurchaseDate: "2025-06-01"},
		{ID: "r2", PurchaseDate: "2025-06-08"},
		{ID: "r3", PurchaseDate: "2025-06-15"},
	}
	items := []domain.ReceiptItem{
		{ID: "i1", ReceiptID: "r1", Name: "milk"},
		{ID: "i2", ReceiptID: "r2", Name: "MILK "},
		{ID: "i3", ReceiptID: "r3", Name: "Milk"},
		{ID: "i4", ReceiptID: "r1", Name: "bread"},
		{ID: "i5", ReceiptID: "r3", Name: "bread"},
		{ID: "i6", ReceiptID: "r2", Name: "eggs"},
		{ID: "i7", ReceiptID: "orphan", Name: "ghost"}, // receipt unknown, skipped
		{ID: "i8", ReceiptID: "r2", Name: "   "},       // blank name, skipped
	}
	return items, receipts
}

func TestAggregate(t *testing.T) {
	items, receipts := fixtures()
	patterns := Aggregate(items, receipts)

	if len(patterns) != 3 {
		t.Fatalf("patterns = %d, want 3 (orphan and blank skipped)", len(patterns))
	}

	// Most frequent first, name-normalized.
	milk := patterns[0]
	if milk.Item != "Milk" || milk.Frequency != 3 {
		t.Fatalf("top pattern = %+v", milk)
	}
	if milk.LastPurchase != "2025-06-15" {
		t.Fatalf("last purchase = %q", milk.LastPurchase)
	}
	if milk.AvgDaysBetween != 7 {
		t.Fatalf("avg gap = %v, want 7", milk.AvgDaysBetween)
	}

	bread := patterns[1]
	if bread.Item != "Bread" || bread.Frequency != 2 || bread.AvgDaysBetween != 14 {
		t.Fatalf("bread = %+v", bread)
	}

	eggs := patterns[2]
	if eggs.Item != "Eggs" || eggs.Frequency != 1 || eggs.AvgDaysBetween != 0 {
		t.Fatalf("eggs = %+v", eggs)
	}
}

func TestAggregate_SameDayDuplicatesCountOnce(t *testing.T) {
	receipts := []domain.Receipt{
		{ID: "r1", PurchaseDate: "2025-06-01"},
		{ID: "r2", PurchaseDate: "2025-06-01"},
	}
	items := []domain.ReceiptItem{
		{ID: "i1", ReceiptID: "r1", Name: "milk"},
		{ID: "i2", ReceiptID: "r2", Name: "milk"},
	}
	patterns := Aggregate(items, receipts)
	if len(patterns) != 1 || patterns[0].Frequency != 1 {
		t.Fatalf("patterns = %+v, want one day counted once", patterns)
	}
}

func TestDue(t *testing.T) {
	items, receipts := fixtures()
	patterns := Aggregate(items, receipts)

	// 2025-06-25: milk (7-day cycle, last 06-15) is 10 days overdue; bread
	// (14-day cycle) is not; eggs (bought once, 14-day fallback) is due.
	now := time.Date(2025, 6, 25, 12, 0, 0, 0, time.UTC)
	due := Due(patterns, now, 14)
	names := make([]string, 0, len(due))
	for _, p := range due {
		names = append(names, p.Item)
	}
	if len(names) != 2 || names[0] != "Milk" || names[1] != "Eggs" {
		t.Fatalf("due = %v", names)
	}

	// Right after shopping nothing is due.
	due = Due(patterns, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), 14)
	if len(due) != 0 {
		t.Fatalf("due right after shopping = %v", due)
	}
}

func TestFormatPrompt(t *testing.T) {
	items, receipts := fixtures()
	patterns := Aggregate(items, receipts)
	now := time.Date(2025, 6, 25, 12, 0, 0, 0, time.UTC)

	prompt := FormatPrompt(patterns, now)
	for _, want := range []string{
		"Today is 2025-06-25.",
		"Milk: bought 3 time(s), last on 2025-06-15, roughly every 7.0 days",
		"Eggs: bought 1 time(s), last on 2025-06-08\n",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if FormatPrompt(nil, now) != "" {
		t.Errorf("empty patterns should yield empty prompt")
	}
}
