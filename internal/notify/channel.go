package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"outsourcing-market/internal/lifecycle"
)

// Channel delivers messages to one outbound destination.
type Channel interface {
	Name() string
	Accepts(m Message) bool
	Send(ctx context.Context, m Message) error
}

// WebhookChannel posts Slack-compatible JSON to an incoming webhook URL.
type WebhookChannel struct {
	url       string
	baseURL   string
	adminOnly bool
	client    *http.Client
}

func NewWebhookChannel(url, baseURL string, adminOnly bool) *WebhookChannel {
	return &WebhookChannel{
		url:       url,
		baseURL:   strings.TrimRight(baseURL, "/"),
		adminOnly: adminOnly,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Accepts(m Message) bool {
	return !w.adminOnly || m.Audience == lifecycle.AudienceAdmin
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (w *WebhookChannel) Send(ctx context.Context, m Message) error {
	text := "*" + m.Title + "*"
	if m.Body != "" {
		text += "\n" + m.Body
	}
	if m.Link != "" {
		text += "\n" + w.baseURL + m.Link
	}

	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

// LogChannel writes messages to the process log. It is the fallback when
// no webhook is configured.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Accepts(Message) bool { return true }

func (LogChannel) Send(_ context.Context, m Message) error {
	log.Printf("[Notify] %s -> %s(%d): %s", m.EventType, m.Audience, m.RecipientID, m.Title)
	return nil
}
