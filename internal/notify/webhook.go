package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/alanyoungcy/polytrack/internal/domain"
)

// WebhookSender posts alert payloads to one HTTP endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a sender for the given URL. The context deadline
// set by the dispatcher bounds each request; the client itself carries no
// timeout.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{},
	}
}

// webhookPayload is the JSON body posted to each endpoint.
type webhookPayload struct {
	Alert    domain.AlertRecord `json:"alert"`
	Position domain.Position    `json:"position"`
}

// Send posts {alert, position} as JSON to the webhook endpoint.
func (w *WebhookSender) Send(ctx context.Context, pos domain.Position, record domain.AlertRecord) error {
	body, err := json.Marshal(webhookPayload{Alert: record, Position: pos})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (w *WebhookSender) Name() string {
	return w.url
}
