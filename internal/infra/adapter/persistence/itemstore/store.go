// Package itemstore holds the in-memory ordered item sequence and flushes it
// to a snapshot backend after every mutation.
package itemstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/repository"
)

// Observer receives store events for metrics. All methods must be cheap.
type Observer interface {
	ObserveFlush(d time.Duration, err error)
	ObserveSize(total, pending int)
	ObserveStatus(status entity.Status)
}

type nopObserver struct{}

func (nopObserver) ObserveFlush(time.Duration, error) {}
func (nopObserver) ObserveSize(int, int)             {}
func (nopObserver) ObserveStatus(entity.Status)      {}

// Store implements repository.ItemRepository.
type Store struct {
	mu       sync.RWMutex
	items    []*entity.Item
	backend  repository.SnapshotBackend
	observer Observer
	logger   *slog.Logger
}

var _ repository.ItemRepository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the logger used for flush diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store on backend. Call Load before use.
func New(backend repository.SnapshotBackend, opts ...Option) *Store {
	s := &Store{
		items:    []*entity.Item{},
		backend:  backend,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory sequence with the backend contents.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load item store: %w", err)
	}

	s.mu.Lock()
	s.items = items
	total, pending := s.countsLocked()
	s.mu.Unlock()

	s.observer.ObserveSize(total, pending)
	s.logger.Info("item store loaded",
		slog.Int("items", total),
		slog.Int("pending", pending))
	return nil
}

// Dump rewrites the backend from memory.
func (s *Store) Dump(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushLocked(ctx)
}

// flushLocked must be called with s.mu held (read or write) so the snapshot
// is consistent. Backends serialize the data before returning.
func (s *Store) flushLocked(ctx context.Context) error {
	start := time.Now()
	err := s.backend.Save(ctx, s.items)
	s.observer.ObserveFlush(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("flush item store: %w", err)
	}
	total, pending := s.countsLocked()
	s.observer.ObserveSize(total, pending)
	return nil
}

func (s *Store) countsLocked() (total, pending int) {
	return len(s.items), lo.CountBy(s.items, func(it *entity.Item) bool { return it.Pending() })
}

// Items returns the ordered sequence. The slice is a copy; the items are shared.
func (s *Store) Items() []*entity.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Pending returns the items whose status is not SENT, in store order.
func (s *Store) Pending() []*entity.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.items, func(it *entity.Item, _ int) bool { return it.Pending() })
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// StatusOf reads the current status of item.
func (s *Store) StatusOf(item *entity.Item) entity.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return item.Status
}

// Replace installs a reconciled sequence and flushes it.
// Status is read during validation, so the lock is held from the start.
func (s *Store) Replace(ctx context.Context, items []*entity.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("replace: %w", err)
		}
	}
	s.items = items
	return s.flushLocked(ctx)
}

// UpdateStatus validates status, records it on item and flushes the store.
// An illegal status fails with entity.ErrInvalidStatus before anything changes.
func (s *Store) UpdateStatus(ctx context.Context, item *entity.Item, status entity.Status) error {
	if err := status.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	item.Status = status
	s.observer.ObserveStatus(status)
	return s.flushLocked(ctx)
}

// RemoveSent drops SENT items that are not among the last keepTail positions,
// then flushes. The tail is kept so the next reconciliation still overlaps.
// It returns the number of removed items.
func (s *Store) RemoveSent(ctx context.Context, keepTail int) (int, error) {
	if keepTail < 0 {
		keepTail = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := len(s.items) - keepTail
	kept := make([]*entity.Item, 0, len(s.items))
	for i, it := range s.items {
		if i < cutoff && it.Status == entity.StatusSent {
			continue
		}
		kept = append(kept, it)
	}
	removed := len(s.items) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.items = kept
	if err := s.flushLocked(ctx); err != nil {
		return removed, err
	}
	s.logger.Info("removed sent items",
		slog.Int("removed", removed),
		slog.Int("remaining", len(kept)))
	return removed, nil
}
