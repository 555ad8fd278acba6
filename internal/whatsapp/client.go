// Package whatsapp implements the outbound side of the WhatsApp Cloud API:
// sending text messages and formatting the bot's canned message bodies.
//
// Send failures are returned to the caller, which logs them and moves on —
// the bot never blocks an inbound webhook on an outbound send, and retries
// at most once (handled here, immediately, with no backoff loop).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-recipe-bot/internal/utils"
)

// maxBodyLen is the WhatsApp Cloud API limit for a text message body.
const maxBodyLen = 4096

// Client talks to the WhatsApp Cloud API for a single business phone number.
type Client struct {
	// BaseURL is the Graph API root, e.g. "https://graph.facebook.com/v22.0".
	BaseURL string
	// Token is the bearer access token.
	Token string
	// PhoneNumberID is the business phone number id the messages are sent from.
	PhoneNumberID string
	// HTTPClient is used for all requests; defaults to a 10s-timeout client.
	HTTPClient *http.Client
	// Log is used for send outcomes; zerolog.Nop() when unset behavior is
	// desired, but callers normally pass the service logger.
	Log zerolog.Logger
}

// NewClient builds a Client with a sane default HTTP timeout.
func NewClient(baseURL, token, phoneNumberID string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL:       baseURL,
		Token:         token,
		PhoneNumberID: phoneNumberID,
		HTTPClient:    &http.Client{Timeout: 10 * time.Second},
		Log:           log,
	}
}

// sendRequest is the Cloud API text-message payload.
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText delivers a text message to the recipient, chunking bodies that
// exceed the platform limit at line boundaries. Each chunk is attempted
// twice at most (one immediate retry); the first definitive failure aborts
// the remaining chunks and is returned to the caller.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if c.Token == "" || c.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp: missing credentials")
	}
	for _, chunk := range utils.ChunkLines(body, maxBodyLen) {
		if err := c.sendChunk(ctx, to, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, to, body string) error {
	err := c.post(ctx, to, body)
	if err == nil {
		return nil
	}
	c.Log.Warn().Err(err).Str("to", utils.MaskPhone(to)).Msg("send failed, retrying once")
	if err2 := c.post(ctx, to, body); err2 != nil {
		return fmt.Errorf("whatsapp send (after retry): %w", err2)
	}
	return nil
}

func (c *Client) post(ctx context.Context, to, body string) error {
	payload := sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	httpc := c.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, snippet)
	}
	c.Log.Debug().Str("to", utils.MaskPhone(to)).Int("bytes", len(body)).Msg("message sent")
	return nil
}
