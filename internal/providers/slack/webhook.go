package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type WebhookProvider struct {
	webhookURL string
	client     *http.Client
}

func NewWebhook(webhookURL string, client *http.Client) *WebhookProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookProvider{webhookURL: webhookURL, client: client}
}

type webhookPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (p *WebhookProvider) PostMessage(ctx context.Context, channel string, message string) error {
	body, err := json.Marshal(webhookPayload{Channel: channel, Text: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
