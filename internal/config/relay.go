// Package config assembles the relay configuration from defaults, an
// optional YAML or TOML file, and environment variables, in that order of
// precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	pkgconfig "feed-relay/internal/pkg/config"
	"feed-relay/internal/utils/text"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Publisher kinds.
const (
	PublisherStdout  = "stdout"
	PublisherBluesky = "bluesky"
	PublisherDiscord = "discord"
	PublisherSlack   = "slack"
)

// FeedConfig describes the polled feed.
type FeedConfig struct {
	URL string `yaml:"url" toml:"url"`
	// LinkPattern matches links of the feed's site in the publisher history.
	LinkPattern string        `yaml:"link_pattern" toml:"link_pattern"`
	RetryDelay  time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout"`
}

// StoreConfig selects the durable store.
type StoreConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

// ScheduleConfig paces the poll loop.
type ScheduleConfig struct {
	FloodThreshold int           `yaml:"flood_threshold" toml:"flood_threshold"`
	FloodDelay     time.Duration `yaml:"flood_delay" toml:"flood_delay"`
	CycleDelay     time.Duration `yaml:"cycle_delay" toml:"cycle_delay"`
}

// DeliveryConfig controls the sender and message shape.
type DeliveryConfig struct {
	MaxRetries    int           `yaml:"max_retries" toml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay" toml:"retry_delay"`
	Pause         time.Duration `yaml:"pause" toml:"pause"`
	MessageBudget int           `yaml:"message_budget" toml:"message_budget"`
	LinkWeight    int           `yaml:"link_weight" toml:"link_weight"`
	LengthMode    string        `yaml:"length_mode" toml:"length_mode"`
}

// PublisherConfig selects and configures the publishing service.
type PublisherConfig struct {
	Kind              string        `yaml:"kind" toml:"kind"`
	Timeout           time.Duration `yaml:"timeout" toml:"timeout"`
	BlueskyHost       string        `yaml:"bluesky_host" toml:"bluesky_host"`
	BlueskyIdentifier string        `yaml:"bluesky_identifier" toml:"bluesky_identifier"`
	BlueskyPassword   string        `yaml:"-" toml:"-"`
	DiscordWebhookURL string        `yaml:"-" toml:"-"`
	SlackWebhookURL   string        `yaml:"-" toml:"-"`
}

// HistoryConfig controls startup reconciliation against published posts.
type HistoryConfig struct {
	// Enabled turns the sync off for publishers that support it.
	Enabled        bool     `yaml:"enabled" toml:"enabled"`
	ShortenerHosts []string `yaml:"shortener_hosts" toml:"shortener_hosts"`
	Limit          int      `yaml:"limit" toml:"limit"`
}

// CleanupConfig controls optional removal of old SENT items.
type CleanupConfig struct {
	// Schedule is a five-field cron expression; empty disables cleanup.
	Schedule string `yaml:"schedule" toml:"schedule"`
	Keep     int    `yaml:"keep" toml:"keep"`
}

// ServerConfig holds the operational HTTP ports.
type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port" toml:"metrics_port"`
	HealthPort  int `yaml:"health_port" toml:"health_port"`
}

// RelayConfig is the complete runtime configuration.
type RelayConfig struct {
	Feed      FeedConfig      `yaml:"feed" toml:"feed"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Schedule  ScheduleConfig  `yaml:"schedule" toml:"schedule"`
	Delivery  DeliveryConfig  `yaml:"delivery" toml:"delivery"`
	Publisher PublisherConfig `yaml:"publisher" toml:"publisher"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
	Cleanup   CleanupConfig   `yaml:"cleanup" toml:"cleanup"`
	Server    ServerConfig    `yaml:"server" toml:"server"`

	// FallbackApplied is set when an environment value was rejected and
	// replaced by the file or default value.
	FallbackApplied bool `yaml:"-" toml:"-"`
}

// Default returns the built-in configuration.
func Default() RelayConfig {
	return RelayConfig{
		Feed: FeedConfig{
			URL:         "http://www.phoronix.com/rss.php",
			LinkPattern: `^https?://www\.phoronix\.com/`,
			RetryDelay:  5 * time.Second,
			Timeout:     30 * time.Second,
		},
		Store: StoreConfig{Backend: BackendFile, Path: "./news"},
		Schedule: ScheduleConfig{
			FloodThreshold: 3,
			FloodDelay:     600 * time.Second,
			CycleDelay:     120 * time.Second,
		},
		Delivery: DeliveryConfig{
			MaxRetries:    5,
			RetryDelay:    10 * time.Second,
			Pause:         5 * time.Second,
			MessageBudget: 140,
			LinkWeight:    20,
			LengthMode:    "weibo",
		},
		Publisher: PublisherConfig{
			Kind:        PublisherStdout,
			Timeout:     30 * time.Second,
			BlueskyHost: "https://bsky.social",
		},
		History: HistoryConfig{
			Enabled:        true,
			ShortenerHosts: []string{"t.cn", "t.co", "bit.ly"},
			Limit:          200,
		},
		Cleanup: CleanupConfig{Keep: 100},
		Server:  ServerConfig{MetricsPort: 9090, HealthPort: 9091},
	}
}

// Load builds the configuration. path may be empty; otherwise its extension
// picks the format (.yaml, .yml or .toml). Invalid environment values fall
// back with a logged warning and a metric; an invalid final configuration is
// an error.
func Load(path string, logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) (*RelayConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	env := envLoader{logger: logger, metrics: metrics}
	env.apply(&cfg)
	cfg.FallbackApplied = env.fallbackApplied

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	metrics.SetFallbackActive(cfg.FallbackApplied)
	metrics.RecordLoadTimestamp()
	return &cfg, nil
}

func loadFile(path string, cfg *RelayConfig) error {
	// #nosec G304 -- path is provided by the operator (CLI flag or env)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file type %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem found, joined into one error.
func (c *RelayConfig) Validate() error {
	var errs []error

	if err := pkgconfig.ValidateHTTPURL(c.Feed.URL); err != nil {
		errs = append(errs, fmt.Errorf("feed url: %w", err))
	}
	if err := pkgconfig.ValidateRegexp(c.Feed.LinkPattern); err != nil {
		errs = append(errs, fmt.Errorf("feed link pattern: %w", err))
	}
	if c.Feed.RetryDelay <= 0 {
		errs = append(errs, errors.New("feed retry delay must be positive"))
	}

	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}

	if c.Schedule.FloodThreshold < 0 {
		errs = append(errs, errors.New("flood threshold must not be negative"))
	}
	if c.Schedule.FloodDelay < 0 || c.Schedule.CycleDelay < 0 {
		errs = append(errs, errors.New("schedule delays must not be negative"))
	}

	if c.Delivery.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must not be negative"))
	}
	if c.Delivery.MessageBudget <= 0 {
		errs = append(errs, errors.New("message budget must be positive"))
	}
	if _, ok := text.WeigherFor(c.Delivery.LengthMode); !ok {
		errs = append(errs, fmt.Errorf("unknown length mode %q", c.Delivery.LengthMode))
	}

	switch c.Publisher.Kind {
	case PublisherStdout:
	case PublisherBluesky:
		if c.Publisher.BlueskyIdentifier == "" || c.Publisher.BlueskyPassword == "" {
			errs = append(errs, errors.New("bluesky publisher requires BLUESKY_IDENTIFIER and BLUESKY_PASSWORD"))
		}
		if err := pkgconfig.ValidateHTTPURL(c.Publisher.BlueskyHost); err != nil {
			errs = append(errs, fmt.Errorf("bluesky host: %w", err))
		}
	case PublisherDiscord:
		if err := pkgconfig.ValidateHTTPURL(c.Publisher.DiscordWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("discord webhook: %w", err))
		}
	case PublisherSlack:
		if err := pkgconfig.ValidateHTTPURL(c.Publisher.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("slack webhook: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown publisher %q", c.Publisher.Kind))
	}

	if c.Cleanup.Schedule != "" {
		if err := pkgconfig.ValidateCronSchedule(c.Cleanup.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("cleanup schedule: %w", err))
		}
	}
	if c.Cleanup.Keep < 0 {
		errs = append(errs, errors.New("cleanup keep must not be negative"))
	}

	if err := pkgconfig.ValidatePort(c.Server.MetricsPort); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}
	if err := pkgconfig.ValidatePort(c.Server.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if c.Server.MetricsPort == c.Server.HealthPort {
		errs = append(errs, errors.New("metrics and health ports must differ"))
	}

	return errors.Join(errs...)
}

// LinkRegexp compiles Feed.LinkPattern. Validate has already checked it.
func (c *RelayConfig) LinkRegexp() *regexp.Regexp {
	return regexp.MustCompile(c.Feed.LinkPattern)
}

// Weigher returns the text weigher selected by Delivery.LengthMode.
func (c *RelayConfig) Weigher() text.Weigher {
	w, _ := text.WeigherFor(c.Delivery.LengthMode)
	return w
}
