// Webhook HTTP handlers.
//
// This file exposes the WhatsApp Cloud API webhook surface:
//   - GET  /webhook  (subscription verification handshake)
//   - POST /webhook  (event delivery)
//
// Handlers are transport-thin: they unwrap the platform envelope into
// normalized inbound events and hand them to the bot pipeline. Delivery is
// always acknowledged with 200 regardless of processing outcome; a non-2xx
// would make the platform retry and the pipeline's own dedup is the real
// at-least-once guard.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-bot/internal/clock"
	"github.com/tbourn/go-recipe-bot/internal/http/middleware"
	"github.com/tbourn/go-recipe-bot/internal/services"
)

// BotPipeline is the inbound-event consumer and daily-push trigger the
// handlers depend on. Implementations must be safe for concurrent use.
type BotPipeline interface {
	// Handle runs the dedup/classify/respond pipeline for one event.
	Handle(ctx context.Context, ev services.InboundEvent) error
	// SendDailyRecipe pushes today's recipe to the configured recipient.
	SendDailyRecipe(ctx context.Context) error
}

// JobController is the scheduler surface exposed to the ops endpoints.
type JobController interface {
	// Fire runs a named job immediately, bypassing its timer.
	Fire(ctx context.Context, name string) error
	// Next reports the instant the job is armed for.
	Next(name string) (time.Time, bool)
	// State reports the job's state machine position.
	State(name string) (string, bool)
}

// Handlers groups the webhook and ops HTTP endpoints.
type Handlers struct {
	db    *gorm.DB
	bot   BotPipeline
	jobs  JobController
	clk   clock.Clock
	loc   *time.Location
	token string // webhook verify token
}

// New constructs a Handlers instance bound to the given collaborators.
func New(db *gorm.DB, bot BotPipeline, jobs JobController, clk clock.Clock, loc *time.Location, verifyToken string) *Handlers {
	return &Handlers{db: db, bot: bot, jobs: jobs, clk: clk, loc: loc, token: verifyToken}
}

//
// Platform envelope (WhatsApp Cloud API webhook payload)
//

type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID      string          `json:"id"`
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Field string       `json:"field"`
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []webhookMessage `json:"messages"`
	// Statuses (sent/delivered/read) arrive on the same hook; they carry no
	// user text and are ignored.
	Statuses []map[string]any `json:"statuses"`
}

type webhookMessage struct {
	ID        string        `json:"id"`
	From      string        `json:"from"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *webhookText  `json:"text"`
	Image     *webhookImage `json:"image"`
}

type webhookText struct {
	Body string `json:"body"`
}

type webhookImage struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
}

// VerifyWebhook implements the GET handshake the platform performs when the
// webhook URL is registered: echo hub.challenge when the verify token
// matches, 403 otherwise.
func (h *Handlers) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.token {
		c.String(http.StatusOK, challenge)
		return
	}
	fail(c, http.StatusForbidden, ErrCodeUnauthorized, "webhook verification failed")
}

// ReceiveWebhook accepts an event delivery. Every syntactically valid
// payload is acknowledged with 200 and "EVENT_RECEIVED"; only an unreadable
// body earns a 400, since retrying it could never succeed either.
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed webhook payload")
		return
	}

	lg := middleware.LoggerFrom(c)
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev := h.toEvent(msg)
				if err := h.bot.Handle(c.Request.Context(), ev); err != nil {
					// Ack anyway: the platform must not redeliver.
					lg.Error().Err(err).Str("message_id", msg.ID).Msg("event processing failed")
				}
			}
		}
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// toEvent normalizes one platform message into an InboundEvent.
func (h *Handlers) toEvent(msg webhookMessage) services.InboundEvent {
	ev := services.InboundEvent{
		MessageID:  msg.ID,
		SenderID:   msg.From,
		ReceivedAt: h.clk.Now(),
	}
	if ts, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil && ts > 0 {
		ev.ReceivedAt = time.Unix(ts, 0)
	}
	if msg.Text != nil {
		ev.Text = msg.Text.Body
	}
	if msg.Image != nil {
		ev.HasAttachment = true
		ev.ImageRef = msg.Image.ID
		ev.MimeType = msg.Image.MimeType
	}
	return ev
}
