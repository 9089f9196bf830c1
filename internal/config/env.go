package config

import (
	"log/slog"
	"time"

	pkgconfig "feed-relay/internal/pkg/config"
)

// envLoader overlays environment variables on a configuration, recording
// every rejected value.
type envLoader struct {
	logger          *slog.Logger
	metrics         *pkgconfig.ConfigMetrics
	fallbackApplied bool
}

func (l *envLoader) record(field string, result pkgconfig.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	l.fallbackApplied = true
	l.metrics.RecordValidationError(field)
	l.metrics.RecordFallback(field)
	for _, warning := range result.Warnings {
		l.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}
}

func (l *envLoader) str(key, field string, target *string, validator func(string) error) {
	result := pkgconfig.LoadEnvWithFallback(key, *target, validator)
	l.record(field, result)
	*target = result.Value.(string)
}

func (l *envLoader) duration(key, field string, target *time.Duration, validator func(time.Duration) error) {
	result := pkgconfig.LoadEnvDuration(key, *target, validator)
	l.record(field, result)
	*target = result.Value.(time.Duration)
}

func (l *envLoader) integer(key, field string, target *int, validator func(int) error) {
	result := pkgconfig.LoadEnvInt(key, *target, validator)
	l.record(field, result)
	*target = result.Value.(int)
}

func (l *envLoader) boolean(key, field string, target *bool) {
	result := pkgconfig.LoadEnvBool(key, *target)
	l.record(field, result)
	*target = result.Value.(bool)
}

func durationRange(min, max time.Duration) func(time.Duration) error {
	return func(d time.Duration) error { return pkgconfig.ValidateDuration(d, min, max) }
}

func intRange(min, max int) func(int) error {
	return func(v int) error { return pkgconfig.ValidateIntRange(v, min, max) }
}

func oneOf(values ...string) func(string) error {
	return func(v string) error {
		for _, allowed := range values {
			if v == allowed {
				return nil
			}
		}
		return &pkgconfig.ChoiceError{Value: v, Allowed: values}
	}
}

func (l *envLoader) apply(cfg *RelayConfig) {
	l.str("FEED_URL", "feed_url", &cfg.Feed.URL, pkgconfig.ValidateHTTPURL)
	l.str("FEED_LINK_PATTERN", "feed_link_pattern", &cfg.Feed.LinkPattern, pkgconfig.ValidateRegexp)
	l.duration("FETCH_RETRY_DELAY", "fetch_retry_delay", &cfg.Feed.RetryDelay, pkgconfig.ValidatePositiveDuration)
	l.duration("FETCH_TIMEOUT", "fetch_timeout", &cfg.Feed.Timeout, durationRange(time.Second, 5*time.Minute))

	l.str("STORE_BACKEND", "store_backend", &cfg.Store.Backend, oneOf(BackendFile, BackendSQLite))
	cfg.Store.Path = pkgconfig.LoadEnvString("STORE_PATH", cfg.Store.Path)

	l.integer("FLOOD_THRESHOLD", "flood_threshold", &cfg.Schedule.FloodThreshold, intRange(0, 10000))
	l.duration("FLOOD_DELAY", "flood_delay", &cfg.Schedule.FloodDelay, pkgconfig.ValidateNonNegativeDuration)
	l.duration("CYCLE_DELAY", "cycle_delay", &cfg.Schedule.CycleDelay, pkgconfig.ValidateNonNegativeDuration)

	l.integer("PUBLISH_MAX_RETRIES", "publish_max_retries", &cfg.Delivery.MaxRetries, intRange(0, 100))
	l.duration("PUBLISH_RETRY_DELAY", "publish_retry_delay", &cfg.Delivery.RetryDelay, pkgconfig.ValidateNonNegativeDuration)
	l.duration("SENDER_PAUSE", "sender_pause", &cfg.Delivery.Pause, pkgconfig.ValidateNonNegativeDuration)
	l.integer("MESSAGE_BUDGET", "message_budget", &cfg.Delivery.MessageBudget, intRange(1, 100000))
	l.integer("LINK_WEIGHT", "link_weight", &cfg.Delivery.LinkWeight, intRange(0, 100000))
	l.str("LENGTH_MODE", "length_mode", &cfg.Delivery.LengthMode, oneOf("weibo", "runes"))

	l.str("PUBLISHER", "publisher", &cfg.Publisher.Kind,
		oneOf(PublisherStdout, PublisherBluesky, PublisherDiscord, PublisherSlack))
	l.duration("PUBLISH_TIMEOUT", "publish_timeout", &cfg.Publisher.Timeout, durationRange(time.Second, 5*time.Minute))
	l.str("BLUESKY_HOST", "bluesky_host", &cfg.Publisher.BlueskyHost, pkgconfig.ValidateHTTPURL)
	cfg.Publisher.BlueskyIdentifier = pkgconfig.LoadEnvString("BLUESKY_IDENTIFIER", cfg.Publisher.BlueskyIdentifier)
	cfg.Publisher.BlueskyPassword = pkgconfig.LoadEnvString("BLUESKY_PASSWORD", cfg.Publisher.BlueskyPassword)
	cfg.Publisher.DiscordWebhookURL = pkgconfig.LoadEnvString("DISCORD_WEBHOOK_URL", cfg.Publisher.DiscordWebhookURL)
	cfg.Publisher.SlackWebhookURL = pkgconfig.LoadEnvString("SLACK_WEBHOOK_URL", cfg.Publisher.SlackWebhookURL)

	l.boolean("HISTORY_SYNC", "history_sync", &cfg.History.Enabled)
	cfg.History.ShortenerHosts = pkgconfig.LoadEnvStringList("SHORTENER_HOSTS", cfg.History.ShortenerHosts)
	l.integer("HISTORY_LIMIT", "history_limit", &cfg.History.Limit, intRange(1, 1000))

	l.str("CLEANUP_SCHEDULE", "cleanup_schedule", &cfg.Cleanup.Schedule, pkgconfig.ValidateCronSchedule)
	l.integer("CLEANUP_KEEP", "cleanup_keep", &cfg.Cleanup.Keep, intRange(0, 1000000))

	l.integer("METRICS_PORT", "metrics_port", &cfg.Server.MetricsPort, pkgconfig.ValidatePort)
	l.integer("WORKER_HEALTH_PORT", "health_port", &cfg.Server.HealthPort, pkgconfig.ValidatePort)
}
