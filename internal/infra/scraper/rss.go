// Package scraper fetches RSS/Atom feeds with gofeed behind a circuit breaker.
package scraper

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mmcdole/gofeed"

	"feed-relay/internal/resilience/circuitbreaker"
	"feed-relay/internal/usecase/poll"
)

// DefaultUserAgent is sent with every feed request.
const DefaultUserAgent = "FeedRelayBot/1.0"

// RSSFetcher implements poll.FeedFetcher using the gofeed library.
// Retrying is left to the poller; the breaker only rejects quickly while the
// feed host keeps failing.
type RSSFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	userAgent      string
}

var _ poll.FeedFetcher = (*RSSFetcher)(nil)

// NewRSSFetcher creates a new RSSFetcher with the given HTTP client.
func NewRSSFetcher(client *http.Client) *RSSFetcher {
	return &RSSFetcher{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		userAgent:      DefaultUserAgent,
	}
}

// CircuitBreaker exposes the breaker for health reporting.
func (f *RSSFetcher) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return f.circuitBreaker
}

// Fetch retrieves and parses the feed at feedURL, preserving document order.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) ([]poll.FeedEntry, error) {
	cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, feedURL)
	})
	if err != nil {
		if circuitbreaker.IsRejection(err) {
			slog.Warn("feed fetch circuit breaker open, request rejected",
				slog.String("service", f.circuitBreaker.Name()),
				slog.String("url", feedURL),
				slog.String("state", f.circuitBreaker.State().String()))
		}
		return nil, err
	}
	return cbResult.([]poll.FeedEntry), nil
}

// doFetch performs the actual feed fetch without the circuit breaker.
func (f *RSSFetcher) doFetch(ctx context.Context, feedURL string) ([]poll.FeedEntry, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = f.userAgent
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]poll.FeedEntry, 0, len(feed.Items))
	for _, it := range feed.Items {
		entries = append(entries, poll.FeedEntry{
			GUID:        it.GUID,
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
		})
	}
	return entries, nil
}
