// internal/slack/notifier.go
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"weekend-activity/internal/retry"
)

type webhookPayload struct {
	Channel   string `json:"channel,omitempty"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	Text      string `json:"text"`
	Mrkdwn    bool   `json:"mrkdwn"`
}

// Notifier posts reports to a Slack incoming webhook. Delivery failures are
// surfaced to the caller but are never fatal to report generation.
type Notifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
	retry      retry.Policy
	logger     *slog.Logger
}

// NewNotifier creates a Notifier for the given webhook URL and posting
// identity.
func NewNotifier(webhookURL, channel, username, iconEmoji string, policy retry.Policy, logger *slog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		iconEmoji:  iconEmoji,
		client:     &http.Client{Timeout: 30 * time.Second},
		retry:      policy,
		logger:     logger,
	}
}

// Send posts the report text to the webhook, retrying on rate limiting and
// server errors.
func (n *Notifier) Send(ctx context.Context, text string) error {
	payload := webhookPayload{
		Channel:   n.channel,
		Username:  n.username,
		IconEmoji: n.iconEmoji,
		Text:      text,
		Mrkdwn:    true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: marshal payload: %w", err)
	}

	err = n.retry.Do(ctx, transientStatus, func(ctx context.Context) error {
		return n.post(ctx, jsonData)
	})
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}

	n.logger.Info("Report sent to Slack", "channel", n.channel)
	return nil
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned status %d: %s", e.code, e.body)
}

// transientStatus retries rate limiting and server-side failures only; a 4xx
// other than 429 means the payload or webhook URL is wrong and will not heal.
func transientStatus(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		// Transport errors are worth another attempt.
		return true
	}
	return retry.HTTPStatusRetryable(se.code)
}
