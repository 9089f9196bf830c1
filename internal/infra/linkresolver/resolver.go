// Package linkresolver expands links produced by URL shorteners by
// following their redirects.
package linkresolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/resilience/retry"
	"feed-relay/internal/usecase/history"
)

// DefaultHosts are the shorteners expanded when none are configured.
var DefaultHosts = []string{"t.cn", "t.co", "bit.ly"}

// BatchSize is the number of links resolved concurrently.
const BatchSize = 20

// Resolver expands links whose host is a known shortener. Other links are
// returned unchanged without any request.
type Resolver struct {
	client *http.Client
	hosts  map[string]struct{}
	retry  retry.Config
}

var _ history.LinkResolver = (*Resolver)(nil)

// New creates a Resolver for hosts, or DefaultHosts when hosts is empty.
func New(client *http.Client, hosts []string) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	return &Resolver{
		client: client,
		hosts: lo.SliceToMap(hosts, func(h string) (string, struct{}) {
			return strings.ToLower(strings.TrimSpace(h)), struct{}{}
		}),
		retry: retry.LinkResolveConfig(),
	}
}

// Resolve implements history.LinkResolver. Failures are logged and leave the
// link as it was.
func (r *Resolver) Resolve(ctx context.Context, links []string) []string {
	out := make([]string, len(links))
	copy(out, links)

	indexes := lo.Filter(lo.Range(len(links)), func(i int, _ int) bool {
		return r.isShortened(links[i])
	})

	for _, batch := range lo.Chunk(indexes, BatchSize) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(BatchSize)
		for _, i := range batch {
			g.Go(func() error {
				expanded, err := r.expand(gctx, links[i])
				if err != nil {
					slog.Warn("link expansion failed",
						slog.String("url", links[i]),
						slog.Any("error", err))
					return nil
				}
				out[i] = expanded
				return nil
			})
		}
		_ = g.Wait()
		if ctx.Err() != nil {
			break
		}
	}
	return out
}

func (r *Resolver) isShortened(link string) bool {
	if entity.ValidateURL(link) != nil {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	_, ok := r.hosts[strings.ToLower(u.Hostname())]
	return ok
}

// expand issues HEAD requests, following redirects, and returns the final URL.
func (r *Resolver) expand(ctx context.Context, link string) (string, error) {
	var final string
	err := retry.WithBackoff(ctx, r.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
		if err != nil {
			return err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()

		if resp.StatusCode >= 400 {
			return &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
		}
		final = resp.Request.URL.String()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", link, err)
	}
	return final, nil
}
