// Package services – BotService
//
// This file implements the inbound event pipeline: deduplicate, classify,
// respond. It is the only place that decides what a message means and which
// side effects it causes; transports (webhook handler, scheduler jobs) stay
// thin.
//
// Error policy: the pipeline never fails an inbound event outward. Send
// failures are logged and swallowed, duplicates drop silently, and an
// idempotency-store outage degrades to process-but-log — for a bot with a
// handful of recipients, the occasional duplicate reply beats silently
// eating a message. The webhook handler acks the platform regardless.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the classified intent and duplicate/ignored outcomes.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-recipe-bot/internal/classify"
	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/repo"
	"github.com/tbourn/go-recipe-bot/internal/utils"
	"github.com/tbourn/go-recipe-bot/internal/whatsapp"
)

// Sender is the outbound message collaborator. Implementations must not
// block indefinitely; the WhatsApp client retries once and gives up.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// InboundEvent is the normalized inbound message the transport hands to the
// pipeline. The core never sees platform envelopes.
type InboundEvent struct {
	MessageID     string
	SenderID      string
	Text          string
	HasAttachment bool
	// Attachment metadata, set when HasAttachment.
	ImageRef   string
	MimeType   string
	FileSize   int64
	ReceivedAt time.Time
}

// Fingerprint derives the idempotency key for the event: the platform
// message id when present, otherwise a hash of sender, timestamp, and
// payload for transports without stable ids.
func (e InboundEvent) Fingerprint() string {
	if e.MessageID != "" {
		return e.MessageID
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%t",
		e.SenderID, e.ReceivedAt.UnixNano(), e.Text, e.HasAttachment)))
	return hex.EncodeToString(h[:])
}

// BotService is the inbound pipeline plus the daily push.
type BotService struct {
	DB       *gorm.DB
	Clock    clock.Clock
	Loc      *time.Location
	Sender   Sender
	Rotation *RotationService
	Grocery  *GroceryService
	Log      zerolog.Logger

	// EventTTL is how long processed fingerprints are remembered; must
	// cover the platform retry window.
	EventTTL time.Duration
	// RecipientPhone receives the scheduled daily recipe.
	RecipientPhone string
	// SendTimeLocal is the daily push time shown in the greeting ("22:00").
	SendTimeLocal string
}

// Handle runs the pipeline for one inbound event. It returns an error only
// for unexpected infrastructure failures the caller may want to log; the
// platform acknowledgment must not depend on it.
func (b *BotService) Handle(ctx context.Context, ev InboundEvent) error {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(attribute.String("event.sender", utils.MaskPhone(ev.SenderID))),
	)
	defer span.End()

	intent := classify.Classify(ev.Text, ev.HasAttachment)
	span.SetAttributes(attribute.String("event.intent", string(intent)))

	// Status updates, reactions, and other non-text payloads must cause no
	// side effects at all — not even a fingerprint record.
	if intent == classify.IntentIgnored {
		return nil
	}

	isNew, err := repo.RecordEventIfNew(ctx, b.DB, ev.Fingerprint(), ev.SenderID, string(intent), b.EventTTL, b.Clock.Now())
	if err != nil {
		if errors.Is(err, repo.ErrStoreUnavailable) {
			// Degrade: process anyway, accepting a possible duplicate reply.
			b.Log.Warn().Err(err).Msg("idempotency store unavailable, processing without dedup")
		} else {
			return err
		}
	} else if !isNew {
		span.SetAttributes(attribute.Bool("event.duplicate", true))
		b.Log.Debug().Str("fingerprint", ev.Fingerprint()).Msg("duplicate event dropped")
		return nil
	}

	return b.respond(ctx, ev, intent)
}

func (b *BotService) respond(ctx context.Context, ev InboundEvent, intent classify.Intent) error {
	to := ev.SenderID
	switch intent {
	case classify.IntentRotation:
		return b.sendRotation(ctx, to)
	case classify.IntentListRequest:
		return b.sendFullList(ctx, to)
	case classify.IntentGreeting:
		return b.send(ctx, to, whatsapp.GreetingMessage(b.SendTimeLocal))
	case classify.IntentFarewell:
		return b.send(ctx, to, whatsapp.FarewellMessages[rand.Intn(len(whatsapp.FarewellMessages))])
	case classify.IntentGrocery:
		return b.Grocery.HandleRequest(ctx, to)
	case classify.IntentNoResponse:
		return b.Grocery.HandleNo(ctx, to)
	case classify.IntentNoMoreReceipts:
		return b.Grocery.HandleDone(ctx, to)
	case classify.IntentImageReceipt:
		return b.Grocery.SaveReceipt(ctx, to, ev.ImageRef, ev.MimeType, ev.FileSize)
	default:
		return b.send(ctx, to, whatsapp.UnknownMessage)
	}
}

// sendRotation answers a "not today" with the next unseen recipe, or the
// full list when today's pool is exhausted.
func (b *BotService) sendRotation(ctx context.Context, to string) error {
	recipe, exhausted, err := b.Rotation.Next(ctx, to)
	if err != nil {
		if errors.Is(err, ErrPoolEmpty) {
			return b.send(ctx, to, whatsapp.AllRecipesMessage(nil))
		}
		return err
	}
	if exhausted {
		return b.sendFullList(ctx, to)
	}
	return b.send(ctx, to, whatsapp.AlternativeRecipeMessage(recipe.Name))
}

func (b *BotService) sendFullList(ctx context.Context, to string) error {
	names, err := repo.ListRecipeNames(ctx, b.DB)
	if err != nil {
		return err
	}
	return b.send(ctx, to, whatsapp.AllRecipesMessage(names))
}

// SendDailyRecipe is the daily_recipe job body: pick the next unseen recipe
// for the configured recipient and push it, falling back to the full list on
// exhaustion.
func (b *BotService) SendDailyRecipe(ctx context.Context) error {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "SendDailyRecipe")
	defer span.End()

	if b.RecipientPhone == "" {
		return ErrNoRecipient
	}
	recipe, exhausted, err := b.Rotation.Next(ctx, b.RecipientPhone)
	if err != nil {
		return err
	}
	if exhausted {
		span.SetAttributes(attribute.Bool("rotation.exhausted", true))
		return b.sendFullList(ctx, b.RecipientPhone)
	}
	return b.send(ctx, b.RecipientPhone, whatsapp.DailyRecipeMessage(recipe.Name))
}

// send delivers a message and downgrades failures to a log entry; outbound
// trouble must never fail the inbound pipeline.
func (b *BotService) send(ctx context.Context, to, body string) error {
	if err := b.Sender.SendText(ctx, to, body); err != nil {
		b.Log.Error().Err(err).Str("to", utils.MaskPhone(to)).Msg("send failed")
	}
	return nil
}
