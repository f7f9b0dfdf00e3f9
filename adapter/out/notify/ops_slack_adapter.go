// Package notify provides the Slack webhook notifier.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"bizops_server/core/port/out"
	"bizops_server/pkg/httputil"
)

// =============================================================================
// Slack Adapter
// =============================================================================

// SlackAdapter implements out.Notifier over an incoming webhook.
type SlackAdapter struct {
	client     *http.Client
	webhookURL string
	log        zerolog.Logger
}

var _ out.Notifier = (*SlackAdapter)(nil)

// NewSlackAdapter creates a new Slack adapter.
func NewSlackAdapter(webhookURL string, log zerolog.Logger) *SlackAdapter {
	return &SlackAdapter{
		client:     httputil.SlackClient(),
		webhookURL: webhookURL,
		log:        log.With().Str("component", "slack_notifier").Logger(),
	}
}

// Post sends one notification as a block message.
func (a *SlackAdapter) Post(ctx context.Context, n *out.Notification) error {
	if a.webhookURL == "" {
		a.log.Debug().Msg("webhook not configured, dropping notification")
		return nil
	}

	payload := buildPayload(n)
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack webhook error: %d - %s", resp.StatusCode, string(body))
	}

	a.log.Debug().
		Str("email_type", n.EmailType).
		Str("sender", n.SenderEmail).
		Msg("notification posted")

	return nil
}

// =============================================================================
// Message Format
// =============================================================================

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(n *out.Notification) *slackPayload {
	header := fmt.Sprintf("%s %s", emojiFor(n), n.Subject)

	fields := []slackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*From:*\n%s", n.SenderEmail)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Type:*\n%s", n.EmailType)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Priority:*\n%s", n.Priority)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Action:*\n%s", n.ActionBucket)},
	}
	if n.CompanyName != "" {
		fields = append(fields, slackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("*Company:*\n%s", n.CompanyName),
		})
	}
	fields = append(fields, slackText{
		Type: "mrkdwn",
		Text: fmt.Sprintf("*Confidence:*\n%.0f%%", n.Confidence*100),
	})

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: truncate(header, 150)}},
		{Type: "section", Fields: fields},
	}

	if n.Reasoning != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: truncate(n.Reasoning, 500)},
		})
	}

	return &slackPayload{
		Text:   header,
		Blocks: blocks,
	}
}

func emojiFor(n *out.Notification) string {
	switch {
	case strings.EqualFold(n.Priority, "urgent"):
		return "🚨"
	case n.EmailType == "client_work_request":
		return "📋"
	default:
		return "📧"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
