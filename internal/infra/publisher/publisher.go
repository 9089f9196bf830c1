// Package publisher provides deliver.Publisher implementations: a stdout
// publisher for local runs, Discord and Slack webhooks, and a Bluesky client
// that can also read back the account's recent posts.
package publisher

import (
	"context"
	"log/slog"

	"feed-relay/internal/resilience/circuitbreaker"
	"feed-relay/internal/usecase/deliver"
)

// Guarded runs every publish through a circuit breaker. While the breaker is
// open, Publish fails fast with a transient error so the sender keeps its
// retry budget semantics.
type Guarded struct {
	next deliver.Publisher
	cb   *circuitbreaker.CircuitBreaker
}

var _ deliver.Publisher = (*Guarded)(nil)

// NewGuarded wraps next with a breaker built from circuitbreaker.PublishConfig.
func NewGuarded(next deliver.Publisher) *Guarded {
	return &Guarded{
		next: next,
		cb:   circuitbreaker.New(circuitbreaker.PublishConfig("publish-" + next.Name())),
	}
}

// Name returns the wrapped publisher's name.
func (g *Guarded) Name() string { return g.next.Name() }

// Unwrap returns the wrapped publisher.
func (g *Guarded) Unwrap() deliver.Publisher { return g.next }

// CircuitBreaker exposes the breaker for health reporting.
func (g *Guarded) CircuitBreaker() *circuitbreaker.CircuitBreaker { return g.cb }

// Publish implements deliver.Publisher.
func (g *Guarded) Publish(ctx context.Context, text string) error {
	err := g.cb.Run(func() error {
		return g.next.Publish(ctx, text)
	})
	if err != nil && circuitbreaker.IsRejection(err) {
		slog.Warn("publish circuit breaker open, request rejected",
			slog.String("service", g.cb.Name()),
			slog.String("state", g.cb.State().String()))
		return deliver.Transient(err)
	}
	return err
}
