package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-relay/internal/infra/scraper"
)

const phoronixLikeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>Article 2</title>
      <link>https://example.com/news/article2</link>
      <guid>https://example.com/news/article2</guid>
      <description>Description 2</description>
      <pubDate>Tue, 02 Jan 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Article 1</title>
      <link>https://example.com/news/article1</link>
      <guid isPermaLink="false">article-1</guid>
      <description>Description 1</description>
      <pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, scraper.DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSFetcher_Fetch_Success(t *testing.T) {
	server := feedServer(t, http.StatusOK, phoronixLikeFeed)
	fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: 10 * time.Second})

	entries, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Document order is kept; the poller reverses it.
	assert.Equal(t, "Article 2", entries[0].Title)
	assert.Equal(t, "https://example.com/news/article2", entries[0].GUID)
	assert.Equal(t, "article-1", entries[1].GUID)
	assert.Equal(t, "https://example.com/news/article1", entries[1].Link)
	assert.Equal(t, "Description 1", entries[1].Description)
}

func TestRSSFetcher_Fetch_Atom(t *testing.T) {
	atom := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <title>Atom Article 1</title>
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <link href="https://example.com/atom1"/>
    <updated>2024-01-01T00:00:00Z</updated>
    <summary>Atom summary</summary>
  </entry>
</feed>`
	server := feedServer(t, http.StatusOK, atom)
	fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: 10 * time.Second})

	entries, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Atom Article 1", entries[0].Title)
	assert.Equal(t, "urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a", entries[0].GUID)
	assert.Equal(t, "https://example.com/atom1", entries[0].Link)
}

func TestRSSFetcher_Fetch_EmptyFeed(t *testing.T) {
	server := feedServer(t, http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Empty Feed</title></channel></rss>`)
	fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: 10 * time.Second})

	entries, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRSSFetcher_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "invalid XML", status: http.StatusOK, body: "Invalid XML <><><>"},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := feedServer(t, tt.status, tt.body)
			fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: 10 * time.Second})

			_, err := fetcher.Fetch(context.Background(), server.URL)
			assert.Error(t, err)
		})
	}
}

func TestRSSFetcher_Fetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := scraper.NewRSSFetcher(&http.Client{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, server.URL)
	assert.Error(t, err)
}

func TestRSSFetcher_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := scraper.NewRSSFetcher(&http.Client{Timeout: time.Second})
	for i := 0; i < 5; i++ {
		_, _ = fetcher.Fetch(context.Background(), server.URL)
	}
	require.True(t, fetcher.CircuitBreaker().IsOpen())

	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(5), calls.Load(), "open circuit must not reach the server")
}
