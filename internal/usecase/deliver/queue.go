package deliver

import (
	"context"
	"sync"

	"feed-relay/internal/domain/entity"
)

// Queue is an unbounded FIFO of items awaiting delivery. Enqueue never
// blocks; Dequeue blocks while the queue is empty.
type Queue struct {
	mu      sync.Mutex
	items   []*entity.Item
	notify  chan struct{}
	onDepth func(int)
}

// NewQueue creates an empty queue. onDepth, if non-nil, is called with the
// new length after every change.
func NewQueue(onDepth func(int)) *Queue {
	return &Queue{
		notify:  make(chan struct{}, 1),
		onDepth: onDepth,
	}
}

// Enqueue appends item.
func (q *Queue) Enqueue(item *entity.Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	n := len(q.items)
	q.mu.Unlock()

	q.report(n)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest item, waiting for one if needed.
// It returns the context error once ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*entity.Item, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			n := len(q.items)
			q.mu.Unlock()
			q.report(n)
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) report(n int) {
	if q.onDepth != nil {
		q.onDepth(n)
	}
}
