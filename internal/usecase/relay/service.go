// Package relay drives the poll side of the pipeline: it reconciles each feed
// snapshot into the store, offers pending items to the delivery queue with
// flood control, and paces cycles.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/observability/tracing"
	"feed-relay/internal/repository"
	"feed-relay/internal/usecase/reconcile"
)

// Snapshotter returns the current feed contents, oldest first. It blocks
// until a snapshot is available or ctx ends.
type Snapshotter interface {
	Poll(ctx context.Context) ([]*entity.Item, error)
}

// Enqueuer accepts items for delivery without blocking.
type Enqueuer interface {
	Enqueue(item *entity.Item)
}

// HistorySyncer marks items the publishing account already posted.
type HistorySyncer interface {
	Sync(ctx context.Context, repo repository.ItemRepository) (int, error)
}

// Observer receives cycle events for metrics.
type Observer interface {
	ObserveCycle(d time.Duration, newItems int, floodDelay time.Duration)
	ObserveHistoryMarked(n int)
	ObserveCleanup(removed int)
}

type nopObserver struct{}

func (nopObserver) ObserveCycle(time.Duration, int, time.Duration) {}
func (nopObserver) ObserveHistoryMarked(int)                       {}
func (nopObserver) ObserveCleanup(int)                             {}

// Config holds the pacing of the poll loop.
type Config struct {
	// FloodThreshold is the pending count above which FloodDelayPerItem applies.
	FloodThreshold int
	// FloodDelayPerItem is the wait after each enqueue in a flooded cycle.
	FloodDelayPerItem time.Duration
	// CycleDelay is the wait between cycles.
	CycleDelay time.Duration
	// CleanupKeep is how many trailing items a requested cleanup keeps.
	CleanupKeep int
}

// DefaultConfig returns threshold 3, 600s flood delay and 120s between cycles.
func DefaultConfig() Config {
	return Config{
		FloodThreshold:    3,
		FloodDelayPerItem: 600 * time.Second,
		CycleDelay:        120 * time.Second,
		CleanupKeep:       100,
	}
}

// FloodDelay returns the per-item delay for a cycle with pending items.
func (c Config) FloodDelay(pending int) time.Duration {
	if pending > c.FloodThreshold {
		return c.FloodDelayPerItem
	}
	return 0
}

// Service runs startup reconciliation and the poll/schedule loop.
type Service struct {
	repo     repository.ItemRepository
	poller   Snapshotter
	queue    Enqueuer
	history  HistorySyncer
	same     reconcile.Comparator
	cfg      Config
	observer Observer
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	cleanupRequested atomic.Bool
}

// Option configures a Service.
type Option func(*Service)

// WithHistory enables reconciliation against the publisher's history at startup.
func WithHistory(h HistorySyncer) Option {
	return func(s *Service) { s.history = h }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSleeper replaces the context-aware sleep, for tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = fn }
}

// NewService creates the poll side of the relay.
func NewService(repo repository.ItemRepository, poller Snapshotter, queue Enqueuer, cfg Config, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		poller:   poller,
		queue:    queue,
		same:     reconcile.SameGUID,
		cfg:      cfg,
		observer: nopObserver{},
		logger:   slog.Default(),
		sleep:    sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Startup loads the store, merges one snapshot into it and, when history is
// configured, marks already published items as SENT. It must complete
// before the sender starts. A history failure is logged and tolerated.
func (s *Service) Startup(ctx context.Context) error {
	if err := s.repo.Load(ctx); err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	s.logger.Info("store loaded", slog.Int("items", s.repo.Len()))

	if _, err := s.update(ctx); err != nil {
		return err
	}

	if s.history == nil {
		return nil
	}
	marked, err := s.history.Sync(ctx, s.repo)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidStatus) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("history reconciliation failed, continuing", slog.Any("error", err))
		return nil
	}
	s.observer.ObserveHistoryMarked(marked)
	return nil
}

// RequestCleanup asks the loop to drop old SENT items at the start of its
// next cycle. It is safe to call from any goroutine.
func (s *Service) RequestCleanup() {
	s.cleanupRequested.Store(true)
}

// Run repeats RunCycle until ctx is done. It returns nil on cancellation.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("poll loop started")
	for {
		if err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("poll loop stopped")
				return nil
			}
			return err
		}
	}
}

// RunCycle performs one poll, merge, schedule and pause sequence. Store flush
// failures are logged and the cycle goes on with the in-memory state; only
// cancellation and an illegal status end it with an error.
func (s *Service) RunCycle(ctx context.Context) error {
	ctx, span := tracing.GetTracer().Start(ctx, "relay.cycle")
	defer span.End()
	start := time.Now()

	if s.cleanupRequested.CompareAndSwap(true, false) {
		s.cleanup(ctx)
	}

	added, err := s.update(ctx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	pending := s.repo.Pending()
	delay := s.cfg.FloodDelay(len(pending))
	span.SetAttributes(
		attribute.Int("relay.pending", len(pending)),
		attribute.Int64("relay.flood_delay_ms", delay.Milliseconds()))
	if delay > 0 {
		s.logger.Info("flood control active",
			slog.Int("pending", len(pending)),
			slog.Duration("delay", delay))
	}

	for _, item := range pending {
		s.queue.Enqueue(item)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}

	s.observer.ObserveCycle(time.Since(start), added, delay)
	return s.sleep(ctx, s.cfg.CycleDelay)
}

// update polls once and merges the snapshot into the store. It returns the
// number of appended items. A flush error is logged and returned; the merged
// sequence stays in memory either way.
func (s *Service) update(ctx context.Context) (int, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "relay.poll")
	defer span.End()

	snapshot, err := s.poller.Poll(ctx)
	if err != nil {
		return 0, err
	}

	old := s.repo.Items()
	merged := reconcile.Merge(old, snapshot, s.same)
	added := len(merged) - len(old)
	span.SetAttributes(
		attribute.Int("feed.entries", len(snapshot)),
		attribute.Int("relay.new_items", added))

	if err := s.repo.Replace(ctx, merged); err != nil {
		span.RecordError(err, trace.WithStackTrace(false))
		s.logger.Error("store update failed", slog.Any("error", err))
		return added, err
	}
	if added > 0 {
		s.logger.Info("new feed items", slog.Int("count", added), slog.Int("total", len(merged)))
	}
	return added, nil
}

func (s *Service) cleanup(ctx context.Context) {
	removed, err := s.repo.RemoveSent(ctx, s.cfg.CleanupKeep)
	if err != nil {
		s.logger.Error("cleanup failed", slog.Any("error", err))
	}
	s.observer.ObserveCleanup(removed)
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
