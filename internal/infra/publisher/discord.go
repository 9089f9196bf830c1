package publisher

import (
	"context"
	"net/http"
	"time"

	"feed-relay/internal/usecase/deliver"
)

// DiscordConfig contains configuration for Discord webhook publishing.
type DiscordConfig struct {
	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls
	Timeout time.Duration
}

// Discord posts messages to a channel through a Discord webhook.
type Discord struct {
	hook webhook
}

var _ deliver.Publisher = (*Discord)(nil)

// NewDiscord creates a Discord publisher.
//
// The rate limiter is set to 0.5 requests/second with burst of 3
// (Discord Webhook limit: 30 requests per minute).
func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{hook: webhook{
		service:     "Discord",
		url:         cfg.WebhookURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(0.5, 3),
	}}
}

// discordPayload is a plain content message; Discord unfurls the link itself.
type discordPayload struct {
	Content string `json:"content"`
}

// maxDiscordContent is Discord's message content limit.
const maxDiscordContent = 2000

// Name implements deliver.Publisher.
func (d *Discord) Name() string { return "discord" }

// Publish implements deliver.Publisher.
func (d *Discord) Publish(ctx context.Context, text string) error {
	if r := []rune(text); len(r) > maxDiscordContent {
		text = string(r[:maxDiscordContent])
	}
	return d.hook.post(ctx, discordPayload{Content: text})
}
