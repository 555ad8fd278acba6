// Package services – GroceryService
//
// This file implements the grocery-prediction flow: gate on a minimum
// receipt count, aggregate purchase patterns from recent receipts, generate
// a prediction through the injected Predictor collaborator, persist it, open
// a feedback session, and send the shopping list.
//
// Prediction-model quality is explicitly out of scope: Predictor is a
// boundary interface, and the default implementation is a deterministic
// frequency heuristic so the bot works stand-alone.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/domain"
	"github.com/tbourn/go-recipe-bot/internal/predict"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/whatsapp"
)

// PredictionResult is what a Predictor produces from a prompt.
type PredictionResult struct {
	Items          []string
	DateRangeStart string
	DateRangeEnd   string
	Reasoning      string
}

// Predictor generates a shopping-list prediction from a formatted prompt.
// The patterns are passed alongside so heuristic implementations need not
// re-parse the prompt text.
type Predictor interface {
	Predict(ctx context.Context, prompt string, patterns []predict.Pattern) (*PredictionResult, error)
}

// HeuristicPredictor is the default Predictor: items whose usual purchase
// interval has elapsed, shopping window within the coming week. Deterministic
// given the same patterns and clock.
type HeuristicPredictor struct {
	Clock clock.Clock
}

// Predict implements Predictor.
func (h HeuristicPredictor) Predict(_ context.Context, _ string, patterns []predict.Pattern) (*PredictionResult, error) {
	now := h.Clock.Now()
	due := predict.Due(patterns, now, 14)
	if len(due) == 0 {
		// Nothing overdue: suggest the most frequent staples instead.
		n := len(patterns)
		if n > 5 {
			n = 5
		}
		due = patterns[:n]
	}
	items := make([]string, 0, len(due))
	for _, p := range due {
		items = append(items, p.Item)
	}
	return &PredictionResult{
		Items:          items,
		DateRangeStart: now.Format("2006-01-02"),
		DateRangeEnd:   now.AddDate(0, 0, 7).Format("2006-01-02"),
		Reasoning:      fmt.Sprintf("%d item(s) are due based on your usual purchase intervals.", len(items)),
	}, nil
}

// GroceryService coordinates receipts, predictions, and feedback sessions.
type GroceryService struct {
	DB        *gorm.DB
	Clock     clock.Clock
	Loc       *time.Location
	Sender    Sender
	Predictor Predictor

	// MinReceipts gates prediction generation; below it the user gets a
	// progress message instead.
	MinReceipts int64
	// SessionGrace lets recently-expired sessions still accept a closing
	// reply. Defaults to 30 minutes when zero.
	SessionGrace time.Duration
}

// HandleRequest runs the full prediction flow for a grocery request and
// sends the resulting messages. All user-visible failure modes degrade to an
// apologetic message rather than an error bubbling to the webhook.
func (g *GroceryService) HandleRequest(ctx context.Context, userPhone string) error {
	tr := otel.Tracer("services/GroceryService")
	ctx, span := tr.Start(ctx, "HandleRequest")
	defer span.End()

	count, err := repo.CountReceipts(ctx, g.DB, userPhone)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int64("grocery.receipts", count))

	if count < g.MinReceipts {
		return g.Sender.SendText(ctx, userPhone, whatsapp.ReceiptProgressMessage(count, g.MinReceipts))
	}

	// The analysis can be slow; acknowledge first. A failure to send the
	// progress note is not fatal to the prediction itself.
	_ = g.Sender.SendText(ctx, userPhone, whatsapp.AnalyzingMessage(count))

	receipts, err := repo.ListRecentReceipts(ctx, g.DB, userPhone, 50)
	if err != nil || len(receipts) == 0 {
		return g.Sender.SendText(ctx, userPhone, "⚠️ Couldn't fetch your receipts. Please try again later.")
	}
	ids := make([]string, 0, len(receipts))
	for _, r := range receipts {
		ids = append(ids, r.ID)
	}
	items, err := repo.ListItemsForReceipts(ctx, g.DB, ids)
	if err != nil || len(items) == 0 {
		return g.Sender.SendText(ctx, userPhone, "⚠️ No items found in your receipts. Please try again later.")
	}

	patterns := predict.Aggregate(items, receipts)
	if len(patterns) == 0 {
		return g.Sender.SendText(ctx, userPhone, "⚠️ Couldn't analyze your purchase patterns. Please try again later.")
	}
	prompt := predict.FormatPrompt(patterns, g.Clock.Now())

	result, err := g.Predictor.Predict(ctx, prompt, patterns)
	if err != nil || result == nil || len(result.Items) == 0 {
		span.SetAttributes(attribute.Bool("grocery.prediction_failed", true))
		return g.Sender.SendText(ctx, userPhone, "⚠️ Couldn't generate prediction. Please try again later.")
	}

	itemsJSON, err := json.Marshal(result.Items)
	if err != nil {
		return err
	}
	pred := &domain.Prediction{
		UserPhone:      userPhone,
		Items:          string(itemsJSON),
		DateRangeStart: result.DateRangeStart,
		DateRangeEnd:   result.DateRangeEnd,
		Reasoning:      result.Reasoning,
		Prompt:         prompt,
	}
	if err := repo.CreatePrediction(ctx, g.DB, pred); err == nil {
		// Feedback session only when the prediction persisted; expiry is
		// 5h out, clamped to end of day so "no" tomorrow means tomorrow.
		now := g.Clock.Now()
		expires := now.Add(5 * time.Hour)
		if eod := clock.EndOfDay(now, g.Loc); eod.Before(expires) {
			expires = eod
		}
		_, _ = repo.CreateSession(ctx, g.DB, pred.ID, userPhone, expires)
	}

	return g.Sender.SendText(ctx, userPhone,
		whatsapp.PredictionMessage(result.Items, result.DateRangeStart, result.DateRangeEnd, result.Reasoning))
}

// HandleNo closes any active feedback session as cancelled and acknowledges.
func (g *GroceryService) HandleNo(ctx context.Context, userPhone string) error {
	sess, err := repo.GetActiveSession(ctx, g.DB, userPhone, g.Clock.Now(), g.grace())
	if err != nil {
		return g.Sender.SendText(ctx, userPhone, whatsapp.NoSessionMessage)
	}
	if err := repo.CloseSession(ctx, g.DB, sess.ID, domain.SessionCancelled, g.Clock.Now()); err != nil {
		return err
	}
	return g.Sender.SendText(ctx, userPhone, whatsapp.SessionCancelledMessage)
}

// HandleDone closes any active feedback session as receipt_submitted and
// acknowledges.
func (g *GroceryService) HandleDone(ctx context.Context, userPhone string) error {
	sess, err := repo.GetActiveSession(ctx, g.DB, userPhone, g.Clock.Now(), g.grace())
	if err != nil {
		return g.Sender.SendText(ctx, userPhone, whatsapp.NothingPendingMessage)
	}
	if err := repo.CloseSession(ctx, g.DB, sess.ID, domain.SessionReceiptSubmitted, g.Clock.Now()); err != nil {
		return err
	}
	return g.Sender.SendText(ctx, userPhone, whatsapp.SessionClosedMessage)
}

// SaveReceipt records an inbound receipt image and acknowledges it.
func (g *GroceryService) SaveReceipt(ctx context.Context, userPhone, imageRef, mimeType string, fileSize int64) error {
	day := clock.DayKey(g.Clock.Now(), g.Loc)
	// No date on the image itself; assume "today" and mark it estimated.
	if _, err := repo.CreateReceipt(ctx, g.DB, userPhone, imageRef, mimeType, fileSize, day, true); err != nil {
		return err
	}
	return g.Sender.SendText(ctx, userPhone, whatsapp.ReceiptAckMessage)
}

func (g *GroceryService) grace() time.Duration {
	if g.SessionGrace > 0 {
		return g.SessionGrace
	}
	return 30 * time.Minute
}
