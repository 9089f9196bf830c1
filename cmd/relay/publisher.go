package main

import (
	"fmt"
	"io"

	"feed-relay/internal/config"
	"feed-relay/internal/infra/publisher"
	"feed-relay/internal/usecase/deliver"
	"feed-relay/internal/usecase/history"
)

// buildPublisher returns the configured publisher and, when the service can
// list the account's own posts, the history provider backed by it.
func buildPublisher(cfg *config.RelayConfig, stdout io.Writer) (deliver.Publisher, history.Provider, error) {
	switch cfg.Publisher.Kind {
	case config.PublisherStdout:
		return publisher.NewStdout(stdout), nil, nil
	case config.PublisherBluesky:
		bsky := publisher.NewBluesky(publisher.BlueskyConfig{
			Host:       cfg.Publisher.BlueskyHost,
			Identifier: cfg.Publisher.BlueskyIdentifier,
			Password:   cfg.Publisher.BlueskyPassword,
			Timeout:    cfg.Publisher.Timeout,
		})
		return bsky, bsky, nil
	case config.PublisherDiscord:
		return publisher.NewDiscord(publisher.DiscordConfig{
			WebhookURL: cfg.Publisher.DiscordWebhookURL,
			Timeout:    cfg.Publisher.Timeout,
		}), nil, nil
	case config.PublisherSlack:
		return publisher.NewSlack(publisher.SlackConfig{
			WebhookURL: cfg.Publisher.SlackWebhookURL,
			Timeout:    cfg.Publisher.Timeout,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown publisher %q", cfg.Publisher.Kind)
	}
}
