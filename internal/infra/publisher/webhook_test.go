package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-relay/internal/usecase/deliver"
)

func TestStdout_Publish(t *testing.T) {
	var buf bytes.Buffer
	p := NewStdout(&buf)

	require.NoError(t, p.Publish(context.Background(), "hello - world https://e.io"))
	require.NoError(t, p.Publish(context.Background(), "second"))

	assert.Equal(t, "hello - world https://e.io\nsecond\n", buf.String())
	assert.Equal(t, "stdout", p.Name())
}

func TestStdout_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewStdout(&bytes.Buffer{}).Publish(ctx, "x"), context.Canceled)
}

func TestDiscord_Publish(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, d.Publish(context.Background(), "Title - Body https://e.io"))
	assert.Equal(t, "Title - Body https://e.io", got.Content)
}

func TestSlack_Publish(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, s.Publish(context.Background(), "msg"))
	assert.Equal(t, "msg", got.Text)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, "mrkdwn", got.Blocks[0].Text.Type)
}

func TestWebhook_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		target    any
	}{
		{name: "server error is transient", status: http.StatusBadGateway, body: "bad gateway", transient: true, target: new(*ServerError)},
		{name: "client error is permanent", status: http.StatusBadRequest, body: `{"message":"invalid"}`, transient: false, target: new(*ClientError)},
		{name: "not found is permanent", status: http.StatusNotFound, transient: false, target: new(*ClientError)},
		{name: "request timeout is transient", status: http.StatusRequestTimeout, transient: true, target: new(*ClientError)},
		{name: "rate limit is transient", status: http.StatusTooManyRequests, body: `{"retry_after":0.01}`, transient: true, target: new(*RateLimitError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := NewDiscord(DiscordConfig{WebhookURL: srv.URL, Timeout: 5 * time.Second})
			err := d.Publish(context.Background(), "x")

			require.Error(t, err)
			assert.Equal(t, tt.transient, deliver.IsTransient(err))
			assert.True(t, errors.As(err, tt.target))
		})
	}
}

func TestWebhook_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := NewSlack(SlackConfig{WebhookURL: url, Timeout: time.Second})
	err := s.Publish(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, deliver.IsTransient(err))
}

func TestWebhook_ClientTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := NewDiscord(DiscordConfig{WebhookURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := d.Publish(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, deliver.IsTransient(err), "client timeout must be retried")
}

func TestExtractRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Equal(t, 1500*time.Millisecond, extractRetryAfter(resp, []byte(`{"retry_after":1.5}`)))

	resp.Header.Set("Retry-After", "7")
	assert.Equal(t, 7*time.Second, extractRetryAfter(resp, []byte("not json")))

	assert.Equal(t, 5*time.Second, extractRetryAfter(&http.Response{Header: http.Header{}}, nil))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.False(t, deliver.IsTransient(classify(context.Canceled)))
	assert.True(t, deliver.IsTransient(classify(context.DeadlineExceeded)))
	assert.True(t, deliver.IsTransient(classify(errors.New("connection reset"))))
	assert.True(t, deliver.IsTransient(classify(&ClientError{StatusCode: http.StatusTooManyRequests})))
	assert.False(t, deliver.IsTransient(classify(&ClientError{StatusCode: http.StatusForbidden})))
}

type countingPublisher struct {
	calls atomic.Int32
	err   error
}

func (p *countingPublisher) Name() string { return "counting" }

func (p *countingPublisher) Publish(context.Context, string) error {
	p.calls.Add(1)
	return p.err
}

func TestGuarded_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &countingPublisher{err: deliver.Transient(errors.New("503"))}
	g := NewGuarded(inner)
	assert.Equal(t, "counting", g.Name())

	for i := 0; i < 6; i++ {
		err := g.Publish(context.Background(), "x")
		require.Error(t, err)
	}
	require.True(t, g.CircuitBreaker().IsOpen())

	err := g.Publish(context.Background(), "x")
	assert.True(t, deliver.IsTransient(err), "rejections are retryable")
	assert.Equal(t, int32(6), inner.calls.Load())
}

func TestGuarded_PassesThroughPermanentError(t *testing.T) {
	permanent := errors.New("rejected")
	g := NewGuarded(&countingPublisher{err: permanent})

	err := g.Publish(context.Background(), "x")
	assert.ErrorIs(t, err, permanent)
	assert.False(t, deliver.IsTransient(err))
	assert.Equal(t, "counting", g.Unwrap().Name())
}
