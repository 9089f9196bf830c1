package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feed-relay/internal/resilience/retry"
	"feed-relay/internal/usecase/deliver"
)

// RateLimitError represents a 429 rate limit error from a publishing service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a publishing service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a publishing service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// classify wraps err with deliver.Transient when a later attempt may succeed:
// rate limits, server errors, request timeouts and network failures.
// Client errors and cancellation are returned unchanged. A deadline is a
// timeout and counts as transient; callers check their own ctx first.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return deliver.Transient(err)
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return deliver.Transient(err)
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		if retry.IsRetryableStatus(clientErr.StatusCode) {
			return deliver.Transient(err)
		}
		return err
	}

	// Network errors and the like.
	return deliver.Transient(err)
}
