package deliver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/observability/logging"
	"feed-relay/internal/observability/tracing"
	"feed-relay/internal/repository"
	"feed-relay/internal/resilience/retry"
)

// Config controls pacing and retries of the sender.
type Config struct {
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	// Pause is the wait after every delivery, successful or not.
	Pause time.Duration
	// Budget shapes the message text.
	Budget Budget
}

// DefaultConfig returns 1 attempt plus 5 retries 10s apart and a 5s pause.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		RetryDelay: 10 * time.Second,
		Pause:      5 * time.Second,
		Budget:     DefaultBudget(),
	}
}

// Observer receives sender events for metrics.
type Observer interface {
	ObserveAttempt(result string)
	ObserveDelivery(status entity.Status, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string)                       {}
func (nopObserver) ObserveDelivery(entity.Status, time.Duration) {}

// Attempt results reported to the Observer.
const (
	ResultSuccess   = "success"
	ResultTransient = "transient"
	ResultPermanent = "permanent"
)

// Sender is the only consumer of the delivery queue.
type Sender struct {
	queue     *Queue
	repo      repository.ItemRepository
	publisher Publisher
	cfg       Config
	observer  Observer
	logger    *slog.Logger
	onRetry   func(attempt int, delay time.Duration, err error)
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) SenderOption {
	return func(s *Sender) { s.observer = o }
}

// WithRetryNotify registers fn to be called before every wait between attempts.
func WithRetryNotify(fn func(attempt int, delay time.Duration, err error)) SenderOption {
	return func(s *Sender) { s.onRetry = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SenderOption {
	return func(s *Sender) { s.logger = l }
}

// NewSender creates a sender reading from queue and recording results in repo.
func NewSender(queue *Queue, repo repository.ItemRepository, publisher Publisher, cfg Config, opts ...SenderOption) *Sender {
	s := &Sender{
		queue:     queue,
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		observer:  nopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run delivers queued items until ctx is done. It returns nil on
// cancellation and a non-nil error only for entity.ErrInvalidStatus, which
// indicates a programming error.
func (s *Sender) Run(ctx context.Context) error {
	s.logger.Info("sender started", slog.String("publisher", s.publisher.Name()))
	for {
		item, err := s.queue.Dequeue(ctx)
		if err != nil {
			s.logger.Info("sender stopped")
			return nil
		}

		if err := s.Deliver(ctx, item); err != nil {
			if errors.Is(err, entity.ErrInvalidStatus) {
				return err
			}
			if ctx.Err() != nil {
				s.logger.Info("sender stopped during delivery", slog.String("guid", item.GUID))
				return nil
			}
			s.logger.Error("delivery bookkeeping failed",
				slog.String("guid", item.GUID),
				slog.Any("error", err))
		}

		if err := sleep(ctx, s.cfg.Pause); err != nil {
			s.logger.Info("sender stopped")
			return nil
		}
	}
}

// Deliver publishes one item and records SENT or FAILED on it. An item that
// is already SENT is skipped. If ctx ends before the outcome is known the
// status is left unchanged and the context error is returned.
func (s *Sender) Deliver(ctx context.Context, item *entity.Item) error {
	if s.repo.StatusOf(item) == entity.StatusSent {
		s.logger.Debug("skipping already sent item", slog.String("guid", item.GUID))
		return nil
	}

	ctx, deliveryID := logging.WithDeliveryID(ctx)
	ctx, span := tracing.GetTracer().Start(ctx, "deliver.item",
		trace.WithAttributes(
			attribute.String("item.guid", item.GUID),
			attribute.String("delivery.id", deliveryID),
			attribute.String("publisher", s.publisher.Name()),
		))
	defer span.End()

	logger := s.logger.With(
		slog.String("delivery_id", deliveryID),
		slog.String("guid", item.GUID))

	message := Compose(MessageText(item), item.Link, s.cfg.Budget)
	start := time.Now()

	rcfg := retry.PublishConfig(s.cfg.MaxRetries, s.cfg.RetryDelay)
	rcfg.Retryable = IsTransient
	rcfg.OnRetry = s.onRetry
	pubErr := retry.WithBackoff(ctx, rcfg, func() error {
		err := s.publisher.Publish(ctx, message)
		switch {
		case err == nil:
			s.observer.ObserveAttempt(ResultSuccess)
		case IsTransient(err):
			s.observer.ObserveAttempt(ResultTransient)
		default:
			s.observer.ObserveAttempt(ResultPermanent)
		}
		return err
	})

	if pubErr != nil && ctx.Err() != nil {
		span.SetStatus(codes.Error, "canceled")
		return ctx.Err()
	}

	status := entity.StatusSent
	if pubErr != nil {
		status = entity.StatusFailed
		span.RecordError(pubErr)
		span.SetStatus(codes.Error, "publish failed")
		logger.Warn("delivery failed",
			slog.Bool("transient", IsTransient(pubErr)),
			slog.Any("error", pubErr))
	} else {
		logger.Info("delivered", slog.Duration("duration", time.Since(start)))
	}

	// The outcome is recorded even if shutdown began after the publish call.
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), item, status); err != nil {
		return err
	}
	s.observer.ObserveDelivery(status, time.Since(start))
	return nil
}

// sleep waits for d or until ctx is done. A zero d still yields to ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
