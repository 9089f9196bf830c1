package repository

import (
	"context"

	"feed-relay/internal/domain/entity"
)

// ItemRepository is the ordered, durable record of observed feed items.
// Items are kept oldest first. Every mutating call flushes the whole record
// before returning. Item fields other than Status are immutable once stored;
// Status must be read through StatusOf while other goroutines may update it.
type ItemRepository interface {
	Load(ctx context.Context) error
	Dump(ctx context.Context) error
	Items() []*entity.Item
	Pending() []*entity.Item
	Len() int
	StatusOf(item *entity.Item) entity.Status
	Replace(ctx context.Context, items []*entity.Item) error
	UpdateStatus(ctx context.Context, item *entity.Item, status entity.Status) error
	RemoveSent(ctx context.Context, keepTail int) (int, error)
}

// SnapshotBackend persists a complete item sequence. Save always rewrites
// everything; Load on a backend with no prior state returns an empty slice.
type SnapshotBackend interface {
	Load(ctx context.Context) ([]*entity.Item, error)
	Save(ctx context.Context, items []*entity.Item) error
}
