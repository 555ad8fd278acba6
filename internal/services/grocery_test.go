package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/domain"
	"github.com/tbourn/go-recipe-bot/internal/predict"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/whatsapp"
)

func newGrocery(t *testing.T) (*GroceryService, *fakeSender, *gorm.DB, *clock.Fake) {
	t.Helper()
	db := newTestDB(t)
	fc := clock.NewFake(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	sender := &fakeSender{}
	g := &GroceryService{
		DB: db, Clock: fc, Loc: time.UTC, Sender: sender,
		Predictor: HeuristicPredictor{Clock: fc}, MinReceipts: 3,
	}
	return g, sender, db, fc
}

// seedReceiptWithItems inserts a receipt on the given day with the named
// items attached.
func seedReceiptWithItems(t *testing.T, db *gorm.DB, phone, day string, items ...string) {
	t.Helper()
	r, err := repo.CreateReceipt(context.Background(), db, phone, "media", "image/jpeg", 100, day, false)
	if err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
	for i, name := range items {
		it := domain.ReceiptItem{
			ID:        r.ID + "-" + name + "-" + string(rune('a'+i)),
			ReceiptID: r.ID,
			Name:      name,
			Quantity:  1,
		}
		if err := db.Create(&it).Error; err != nil {
			t.Fatalf("seed item %s: %v", name, err)
		}
	}
}

func TestHandleRequest_BelowMinimumGetsProgress(t *testing.T) {
	g, sender, db, _ := newGrocery(t)
	seedReceiptWithItems(t, db, "u", "2025-06-20", "milk")

	if err := g.HandleRequest(context.Background(), "u"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.ReceiptProgressMessage(1, 3) {
		t.Fatalf("reply = %q", got)
	}
	if sender.count() != 1 {
		t.Fatalf("progress gate should send exactly one message, got %d", sender.count())
	}
}

func TestHandleRequest_FullPredictionFlow(t *testing.T) {
	g, sender, db, _ := newGrocery(t)
	ctx := context.Background()

	// Milk bought weekly and long overdue by 2025-07-01; bread bought once.
	seedReceiptWithItems(t, db, "u", "2025-06-01", "milk", "bread")
	seedReceiptWithItems(t, db, "u", "2025-06-08", "milk")
	seedReceiptWithItems(t, db, "u", "2025-06-15", "milk")

	if err := g.HandleRequest(ctx, "u"); err != nil {
		t.Fatalf("request: %v", err)
	}

	// Analyzing ack first, then the shopping list.
	if sender.count() != 2 {
		t.Fatalf("messages = %d, want 2", sender.count())
	}
	if !strings.Contains(sender.Sent[0].Body, "Analyzing") {
		t.Fatalf("first message = %q", sender.Sent[0].Body)
	}
	list := sender.Sent[1].Body
	if !strings.Contains(list, "Shopping List") || !strings.Contains(list, "Milk") {
		t.Fatalf("list = %q", list)
	}

	// The prediction persisted and a feedback session opened.
	var pred domain.Prediction
	if err := db.First(&pred, "user_phone = ?", "u").Error; err != nil {
		t.Fatalf("prediction row: %v", err)
	}
	if !strings.Contains(pred.Items, "Milk") {
		t.Fatalf("items = %q", pred.Items)
	}
	sess, err := repo.GetActiveSession(ctx, db, "u", g.Clock.Now(), 0)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.PredictionID != pred.ID {
		t.Fatalf("session points at %q, want %q", sess.PredictionID, pred.ID)
	}
	// Expiry is clamped to the civil day.
	if eod := clock.EndOfDay(g.Clock.Now(), time.UTC); sess.ExpiresAt.After(eod) {
		t.Fatalf("expiry %v past end of day %v", sess.ExpiresAt, eod)
	}
}

func TestHandleNoAndDone(t *testing.T) {
	g, sender, db, fc := newGrocery(t)
	ctx := context.Background()

	// "no" with nothing pending.
	if err := g.HandleNo(ctx, "u"); err != nil {
		t.Fatalf("no without session: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.NoSessionMessage {
		t.Fatalf("reply = %q", got)
	}

	p := &domain.Prediction{UserPhone: "u", Items: `["Milk"]`}
	if err := repo.CreatePrediction(ctx, db, p); err != nil {
		t.Fatalf("prediction: %v", err)
	}
	sess, err := repo.CreateSession(ctx, db, p.ID, "u", fc.Now().Add(5*time.Hour))
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	if err := g.HandleNo(ctx, "u"); err != nil {
		t.Fatalf("no: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.SessionCancelledMessage {
		t.Fatalf("reply = %q", got)
	}
	var reread domain.FeedbackSession
	if err := db.First(&reread, "id = ?", sess.ID).Error; err != nil || reread.Status != domain.SessionCancelled {
		t.Fatalf("status = %q err=%v", reread.Status, err)
	}

	// "done" against a second session closes it as receipt_submitted.
	sess2, err := repo.CreateSession(ctx, db, p.ID, "u", fc.Now().Add(5*time.Hour))
	if err != nil {
		t.Fatalf("session 2: %v", err)
	}
	if err := g.HandleDone(ctx, "u"); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.SessionClosedMessage {
		t.Fatalf("reply = %q", got)
	}
	var reread2 domain.FeedbackSession
	if err := db.First(&reread2, "id = ?", sess2.ID).Error; err != nil || reread2.Status != domain.SessionReceiptSubmitted {
		t.Fatalf("status = %q err=%v", reread2.Status, err)
	}

	// And a final "done" has nothing left.
	if err := g.HandleDone(ctx, "u"); err != nil {
		t.Fatalf("done again: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.NothingPendingMessage {
		t.Fatalf("reply = %q", got)
	}
}

func TestHandleDone_GraceWindowHonorsRecentExpiry(t *testing.T) {
	g, sender, db, fc := newGrocery(t)
	ctx := context.Background()

	p := &domain.Prediction{UserPhone: "u", Items: `["Milk"]`}
	if err := repo.CreatePrediction(ctx, db, p); err != nil {
		t.Fatalf("prediction: %v", err)
	}
	if _, err := repo.CreateSession(ctx, db, p.ID, "u", fc.Now().Add(5*time.Hour)); err != nil {
		t.Fatalf("session: %v", err)
	}

	// 10 minutes past expiry: still within the default 30-minute grace.
	fc.Advance(5*time.Hour + 10*time.Minute)
	if err := g.HandleDone(ctx, "u"); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.SessionClosedMessage {
		t.Fatalf("reply = %q", got)
	}
}

func TestSaveReceipt(t *testing.T) {
	g, sender, db, _ := newGrocery(t)
	ctx := context.Background()

	if err := g.SaveReceipt(ctx, "u", "media-99", "image/jpeg", 4096); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := sender.last(t).Body; got != whatsapp.ReceiptAckMessage {
		t.Fatalf("reply = %q", got)
	}

	var r domain.Receipt
	if err := db.First(&r, "user_phone = ?", "u").Error; err != nil {
		t.Fatalf("receipt row: %v", err)
	}
	if r.ImageRef != "media-99" || r.PurchaseDate != "2025-07-01" || !r.DateEstimated {
		t.Fatalf("receipt = %+v", r)
	}
}

func TestHeuristicPredictor(t *testing.T) {
	fc := clock.NewFake(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	h := HeuristicPredictor{Clock: fc}

	patterns := []predict.Pattern{
		{Item: "Milk", Frequency: 3, LastPurchase: "2025-06-15", AvgDaysBetween: 7},
		{Item: "Batteries", Frequency: 2, LastPurchase: "2025-06-30", AvgDaysBetween: 60},
	}
	res, err := h.Predict(context.Background(), "", patterns)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0] != "Milk" {
		t.Fatalf("items = %v, want only the overdue Milk", res.Items)
	}
	if res.DateRangeStart != "2025-07-01" || res.DateRangeEnd != "2025-07-08" {
		t.Fatalf("range = %s..%s", res.DateRangeStart, res.DateRangeEnd)
	}

	// Nothing due: fall back to the most frequent staples.
	fresh := []predict.Pattern{
		{Item: "Milk", Frequency: 3, LastPurchase: "2025-06-30", AvgDaysBetween: 7},
	}
	res, err = h.Predict(context.Background(), "", fresh)
	if err != nil || len(res.Items) != 1 || res.Items[0] != "Milk" {
		t.Fatalf("fallback items = %v err=%v", res.Items, err)
	}
}
