// Package poll obtains one oldest-first snapshot of the feed, retrying at a
// fixed pace until the fetch succeeds or the context ends.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/utils/text"
)

// FeedEntry is one entry as published by the feed.
type FeedEntry struct {
	GUID        string
	Title       string
	Link        string
	Description string
}

// FeedFetcher retrieves the current feed document, newest entry first.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedEntry, error)
}

// Observer receives poll outcomes for metrics.
type Observer interface {
	ObservePoll(err error, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObservePoll(error, time.Duration) {}

// DefaultRetryDelay is the pause between failed fetch attempts.
const DefaultRetryDelay = 5 * time.Second

// Poller turns fetches into item snapshots.
type Poller struct {
	fetcher    FeedFetcher
	feedURL    string
	retryDelay time.Duration
	observer   Observer
	logger     *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithRetryDelay overrides DefaultRetryDelay.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Poller) { p.retryDelay = d }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a poller for feedURL.
func NewPoller(fetcher FeedFetcher, feedURL string, opts ...Option) *Poller {
	p := &Poller{
		fetcher:    fetcher,
		feedURL:    feedURL,
		retryDelay: DefaultRetryDelay,
		observer:   nopObserver{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll returns the feed as NEW items ordered oldest first. Fetch failures are
// retried indefinitely; the only error returned is the context's.
func (p *Poller) Poll(ctx context.Context) ([]*entity.Item, error) {
	var entries []FeedEntry

	op := func() error {
		start := time.Now()
		fetched, err := p.fetcher.Fetch(ctx, p.feedURL)
		p.observer.ObservePoll(err, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		entries = fetched
		return nil
	}

	notify := func(err error, wait time.Duration) {
		p.logger.Warn("feed fetch failed, retrying",
			slog.String("url", p.feedURL),
			slog.Duration("delay", wait),
			slog.Any("error", err))
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.retryDelay), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}

	return toItems(entries), nil
}

// toItems converts entries to NEW items, reversing newest-first feed order.
func toItems(entries []FeedEntry) []*entity.Item {
	items := lo.FilterMap(entries, func(e FeedEntry, _ int) (*entity.Item, bool) {
		guid := e.GUID
		if guid == "" {
			guid = e.Link
		}
		if guid == "" {
			return nil, false
		}
		return entity.NewItem(
			text.SingleLine(guid),
			text.SingleLine(e.Title),
			text.SingleLine(e.Link),
			text.SingleLine(e.Description),
		), true
	})
	return lo.Reverse(items)
}
