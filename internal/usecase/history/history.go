// Package history reconciles the item store with what the publishing account
// already posted, so a restart with a lost or stale store does not announce
// the same news twice.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/repository"
)

// DefaultLimit is how many recent posts are inspected.
const DefaultLimit = 200

// DefaultMarker is contained in every relayed message ("title - description").
const DefaultMarker = "-"

// Post is one message previously published by the account.
type Post struct {
	Text string
	// Links holds link targets recorded by the platform, if any.
	Links []string
}

// Provider lists the account's own recent posts, newest first.
type Provider interface {
	RecentPosts(ctx context.Context, limit int) ([]Post, error)
}

// LinkResolver expands shortened links. The result has the same length and
// order as links; a link that cannot be expanded is returned unchanged.
type LinkResolver interface {
	Resolve(ctx context.Context, links []string) []string
}

// Config controls which posts and links count as already relayed.
type Config struct {
	Limit int
	// Marker must appear in a post's text for it to be considered.
	Marker string
	// LinkPattern selects links that point at the feed's site.
	LinkPattern *regexp.Regexp
}

// Syncer marks store items as SENT when they already appear in the history.
type Syncer struct {
	provider Provider
	resolver LinkResolver
	cfg      Config
	logger   *slog.Logger
}

// NewSyncer creates a Syncer. resolver may be nil when links are never
// shortened by the platform.
func NewSyncer(provider Provider, resolver LinkResolver, cfg Config, logger *slog.Logger) *Syncer {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{provider: provider, resolver: resolver, cfg: cfg, logger: logger}
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// SentLinks returns the feed links found in recent posts.
// Only the first link of each post is used; relayed messages carry exactly one.
func (s *Syncer) SentLinks(ctx context.Context) ([]string, error) {
	posts, err := s.provider.RecentPosts(ctx, s.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}

	links := lo.FilterMap(posts, func(p Post, _ int) (string, bool) {
		if !strings.Contains(p.Text, s.cfg.Marker) {
			return "", false
		}
		return firstLink(p)
	})

	if s.resolver != nil && len(links) > 0 {
		links = s.resolver.Resolve(ctx, links)
	}

	if s.cfg.LinkPattern != nil {
		links = lo.Filter(links, func(l string, _ int) bool {
			return s.cfg.LinkPattern.MatchString(l)
		})
	}
	return lo.Uniq(links), nil
}

func firstLink(p Post) (string, bool) {
	if len(p.Links) > 0 {
		return p.Links[0], true
	}
	if m := urlPattern.FindString(p.Text); m != "" {
		return m, true
	}
	return "", false
}

// Apply marks every unsent item whose guid or link is in links as SENT and
// returns how many were marked.
func Apply(ctx context.Context, repo repository.ItemRepository, links []string) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}
	sent := lo.SliceToMap(links, func(l string) (string, struct{}) { return l, struct{}{} })

	marked := 0
	for _, item := range repo.Items() {
		if repo.StatusOf(item) == entity.StatusSent {
			continue
		}
		_, byGUID := sent[item.GUID]
		_, byLink := sent[item.Link]
		if !byGUID && !byLink {
			continue
		}
		if err := repo.UpdateStatus(ctx, item, entity.StatusSent); err != nil {
			return marked, fmt.Errorf("mark %s sent: %w", item.GUID, err)
		}
		marked++
	}
	return marked, nil
}

// Sync reads the history and applies it to repo.
func (s *Syncer) Sync(ctx context.Context, repo repository.ItemRepository) (int, error) {
	links, err := s.SentLinks(ctx)
	if err != nil {
		return 0, err
	}
	marked, err := Apply(ctx, repo, links)
	if err != nil {
		return marked, err
	}
	s.logger.Info("history reconciled",
		slog.Int("links", len(links)),
		slog.Int("marked_sent", marked))
	return marked, nil
}
