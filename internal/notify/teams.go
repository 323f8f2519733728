package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TeamsNotifier posts MessageCard payloads to Microsoft Teams incoming webhooks.
// Channels are resolved to webhook URLs through a static map.
type TeamsNotifier struct {
	webhooks map[string]string
	client   *http.Client
}

// NewTeamsNotifier creates a notifier. A nil client gets a 30s timeout.
func NewTeamsNotifier(webhooks map[string]string, client *http.Client) *TeamsNotifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TeamsNotifier{webhooks: webhooks, client: client}
}

type messageCard struct {
	Type     string `json:"@type"`
	Context  string `json:"@context"`
	Summary  string `json:"summary"`
	Title    string `json:"title,omitempty"`
	Text     string `json:"text"`
	ThemeHex string `json:"themeColor,omitempty"`
}

func (n *TeamsNotifier) Post(ctx context.Context, msg ChatMessage) error {
	url, ok := n.webhooks[msg.Channel]
	if !ok {
		return fmt.Errorf("teams: no webhook configured for channel %q", msg.Channel)
	}
	body, err := json.Marshal(messageCard{
		Type:     "MessageCard",
		Context:  "https://schema.org/extensions",
		Summary:  msg.Text,
		Title:    msg.Title,
		Text:     msg.Text,
		ThemeHex: "0076D7",
	})
	if err != nil {
		return fmt.Errorf("teams: encode card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("teams: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if msg.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", msg.IdempotencyKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("teams: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("teams: webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
