package publisher

import (
	"context"
	"net/http"
	"time"

	"feed-relay/internal/usecase/deliver"
)

// SlackConfig contains configuration for Slack webhook publishing.
type SlackConfig struct {
	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// Slack posts messages through a Slack Incoming Webhook.
type Slack struct {
	hook webhook
}

var _ deliver.Publisher = (*Slack)(nil)

// NewSlack creates a Slack publisher.
//
// The rate limiter is set to 1 request/second with burst of 1
// (Slack Webhook limit: 1 message per second).
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{hook: webhook{
		service:     "Slack",
		url:         cfg.WebhookURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(1.0, 1),
	}}
}

// slackPayload uses a single section block so the link is rendered as mrkdwn.
type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string          `json:"type"`
	Text slackTextObject `json:"text"`
}

type slackTextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Name implements deliver.Publisher.
func (s *Slack) Name() string { return "slack" }

// Publish implements deliver.Publisher.
func (s *Slack) Publish(ctx context.Context, text string) error {
	return s.hook.post(ctx, slackPayload{
		Text: text,
		Blocks: []slackBlock{{
			Type: "section",
			Text: slackTextObject{Type: "mrkdwn", Text: text},
		}},
	})
}
