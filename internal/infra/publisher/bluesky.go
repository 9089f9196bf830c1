package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"feed-relay/internal/resilience/retry"
	"feed-relay/internal/usecase/deliver"
	"feed-relay/internal/usecase/history"
)

// DefaultBlueskyHost is the PDS used when no host is configured.
const DefaultBlueskyHost = "https://bsky.social"

// authorFeedPageSize is the largest page app.bsky.feed.getAuthorFeed serves.
const authorFeedPageSize = 100

// BlueskyConfig holds the account used for posting.
type BlueskyConfig struct {
	Host       string
	Identifier string
	Password   string
	Timeout    time.Duration
}

// Bluesky posts app.bsky.feed.post records and reads the account's own
// recent posts for history reconciliation. It logs in lazily and refreshes
// the session when the access token expires.
type Bluesky struct {
	cfg        BlueskyConfig
	httpClient *http.Client
	limiter    *RateLimiter
	now        func() time.Time

	mu     sync.Mutex
	client *xrpc.Client
}

var (
	_ deliver.Publisher = (*Bluesky)(nil)
	_ history.Provider  = (*Bluesky)(nil)
)

// NewBluesky creates a Bluesky publisher. No request is made until the first
// Publish or RecentPosts call.
func NewBluesky(cfg BlueskyConfig) *Bluesky {
	if cfg.Host == "" {
		cfg.Host = DefaultBlueskyHost
	}
	return &Bluesky{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// createRecord allows 1666 points per hour per account; stay well below.
		limiter: NewRateLimiter(0.2, 3),
		now:     time.Now,
	}
}

// Name implements deliver.Publisher.
func (b *Bluesky) Name() string { return "bluesky" }

// Publish implements deliver.Publisher.
func (b *Bluesky) Publish(ctx context.Context, text string) error {
	if err := b.limiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	client, err := b.session(ctx)
	if err != nil {
		return err
	}

	post := &bsky.FeedPost{
		LexiconTypeID: "app.bsky.feed.post",
		Text:          text,
		CreatedAt:     formatTime(b.now().UTC()),
		Facets:        linkFacets(text),
	}

	_, err = atproto.RepoCreateRecord(ctx, client, &atproto.RepoCreateRecord_Input{
		Collection: "app.bsky.feed.post",
		Repo:       client.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return b.classify(ctx, fmt.Errorf("create post record: %w", err))
	}
	return nil
}

// RecentPosts implements history.Provider. It pages through the account's
// author feed until limit posts are collected or the feed ends. Reposts of
// other accounts are skipped.
func (b *Bluesky) RecentPosts(ctx context.Context, limit int) ([]history.Post, error) {
	client, err := b.session(ctx)
	if err != nil {
		return nil, err
	}

	var (
		posts  []history.Post
		cursor string
	)
	for len(posts) < limit {
		page := min(authorFeedPageSize, limit-len(posts))
		params := map[string]interface{}{
			"actor":  client.Auth.Did,
			"limit":  page,
			"filter": "posts_no_replies",
		}
		if cursor != "" {
			params["cursor"] = cursor
		}

		var out bsky.FeedGetAuthorFeed_Output
		if err := client.Do(ctx, xrpc.Query, "", "app.bsky.feed.getAuthorFeed", params, nil, &out); err != nil {
			return posts, b.classify(ctx, fmt.Errorf("get author feed: %w", err))
		}

		for _, item := range out.Feed {
			if p, ok := toHistoryPost(item, client.Auth.Did); ok {
				posts = append(posts, p)
			}
		}

		if out.Cursor == nil || *out.Cursor == "" || len(out.Feed) == 0 {
			break
		}
		cursor = *out.Cursor
	}
	return posts, nil
}

func toHistoryPost(item *bsky.FeedDefs_FeedViewPost, did string) (history.Post, bool) {
	if item == nil || item.Post == nil || item.Post.Record == nil {
		return history.Post{}, false
	}
	if item.Post.Author != nil && item.Post.Author.Did != did {
		return history.Post{}, false
	}
	record, ok := item.Post.Record.Val.(*bsky.FeedPost)
	if !ok {
		return history.Post{}, false
	}

	p := history.Post{Text: record.Text}
	for _, facet := range record.Facets {
		for _, feature := range facet.Features {
			if feature != nil && feature.RichtextFacet_Link != nil {
				p.Links = append(p.Links, feature.RichtextFacet_Link.Uri)
			}
		}
	}
	return p, true
}

// session returns an authenticated client, creating a session on first use.
func (b *Bluesky) session(ctx context.Context) (*xrpc.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	auth, err := atproto.ServerCreateSession(ctx, b.bareClient(), &atproto.ServerCreateSession_Input{
		Identifier: b.cfg.Identifier,
		Password:   b.cfg.Password,
	})
	if err != nil {
		return nil, b.classifyLogin(ctx, fmt.Errorf("failed to create session: %w", err))
	}

	client := b.bareClient()
	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  auth.AccessJwt,
		RefreshJwt: auth.RefreshJwt,
		Handle:     auth.Handle,
		Did:        auth.Did,
	}
	b.client = client
	slog.Info("bluesky session created", slog.String("handle", auth.Handle))
	return client, nil
}

// refresh replaces the access token using the refresh token. When that fails
// the session is dropped so the next call logs in again.
func (b *Bluesky) refresh(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return
	}

	// refreshSession authenticates with the refresh token.
	refreshClient := b.bareClient()
	refreshClient.Auth = &xrpc.AuthInfo{
		AccessJwt: b.client.Auth.RefreshJwt,
		Did:       b.client.Auth.Did,
		Handle:    b.client.Auth.Handle,
	}
	out, err := atproto.ServerRefreshSession(ctx, refreshClient)
	if err != nil {
		slog.Warn("bluesky session refresh failed, will log in again", slog.Any("error", err))
		b.client = nil
		return
	}
	b.client.Auth.AccessJwt = out.AccessJwt
	b.client.Auth.RefreshJwt = out.RefreshJwt
	slog.Info("bluesky session refreshed")
}

func (b *Bluesky) bareClient() *xrpc.Client {
	return &xrpc.Client{Host: b.cfg.Host, Client: b.httpClient}
}

// classify maps xrpc failures onto the deliver error contract. An expired
// token triggers a refresh and is reported as transient.
func (b *Bluesky) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var xe *xrpc.Error
	if !errors.As(err, &xe) {
		return deliver.Transient(err)
	}
	if isAuthFailure(xe) {
		b.refresh(ctx)
		return deliver.Transient(err)
	}
	if retry.IsRetryableStatus(xe.StatusCode) {
		return deliver.Transient(err)
	}
	return err
}

// classifyLogin treats rejected credentials as permanent and everything
// else, including a rate limited login, as transient.
func (b *Bluesky) classifyLogin(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var xe *xrpc.Error
	if errors.As(err, &xe) && !retry.IsRetryableStatus(xe.StatusCode) {
		return err
	}
	return deliver.Transient(err)
}

func isAuthFailure(xe *xrpc.Error) bool {
	var body *xrpc.XRPCError
	if errors.As(xe.Wrapped, &body) {
		switch body.ErrStr {
		case "ExpiredToken", "InvalidToken":
			return true
		}
	}
	return xe.StatusCode == http.StatusUnauthorized
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// linkFacets marks every URL in text as a link so clients render it
// clickable. Offsets are in bytes of the UTF-8 text.
func linkFacets(text string) []*bsky.RichtextFacet {
	var facets []*bsky.RichtextFacet
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		facets = append(facets, &bsky.RichtextFacet{
			Index: &bsky.RichtextFacet_ByteSlice{
				ByteStart: int64(loc[0]),
				ByteEnd:   int64(loc[1]),
			},
			Features: []*bsky.RichtextFacet_Features_Elem{{
				RichtextFacet_Link: &bsky.RichtextFacet_Link{
					LexiconTypeID: "app.bsky.richtext.facet#link",
					Uri:           text[loc[0]:loc[1]],
				},
			}},
		})
	}
	return facets
}

// formatTime formats a time.Time into the format expected by AT Protocol.
func formatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z")
}
