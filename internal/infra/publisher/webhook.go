package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"feed-relay/internal/observability/logging"
	"feed-relay/internal/usecase/deliver"
)

// maxRetryAfterWait caps how long a webhook publish honours a 429 before
// handing the failure back to the sender's own retry schedule.
const maxRetryAfterWait = 30 * time.Second

// webhook posts JSON payloads to an incoming-webhook URL.
type webhook struct {
	service     string
	url         string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// webhookErrorResponse covers the error bodies of both Discord and Slack.
type webhookErrorResponse struct {
	Message    string  `json:"message"`
	Error      string  `json:"error"`
	RetryAfter float64 `json:"retry_after"` // In seconds
}

// post sends payload and maps the response to the typed errors, already
// classified for the sender.
//
// Error types:
//   - 429: RateLimitError (transient, after waiting out retry_after)
//   - 4xx (non-429): ClientError (permanent)
//   - 5xx: ServerError (transient)
//   - Network error: transient
func (w *webhook) post(ctx context.Context, payload any) error {
	if err := w.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return deliver.Transient(fmt.Errorf("execute http request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	deliveryID := logging.DeliveryIDFromContext(ctx)

	if resp.StatusCode == http.StatusTooManyRequests {
		rateLimitErr := &RateLimitError{
			Message:    w.service + " rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
		slog.Warn("webhook rate limit hit, backing off",
			slog.String("service", w.service),
			slog.String("delivery_id", deliveryID),
			slog.Duration("retry_after", rateLimitErr.RetryAfter))
		if err := waitRetryAfter(ctx, rateLimitErr.RetryAfter); err != nil {
			return fmt.Errorf("context canceled during rate limit backoff: %w", err)
		}
		return classify(rateLimitErr)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return classify(&ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error (%d): %s", w.service, resp.StatusCode, string(body)),
		})
	}

	if resp.StatusCode >= 500 {
		return classify(&ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error (%d): %s", w.service, resp.StatusCode, string(body)),
		})
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// extractRetryAfter reads retry_after from a JSON body first, then the
// Retry-After header. It defaults to 5s.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var errResp webhookErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.RetryAfter > 0 {
		return time.Duration(errResp.RetryAfter * float64(time.Second))
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

func waitRetryAfter(ctx context.Context, d time.Duration) error {
	if d > maxRetryAfterWait {
		d = maxRetryAfterWait
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
