// Package deliver moves pending items from the scheduler to the publishing
// service: an unbounded FIFO queue, message composition within a length
// budget, and a single sender that retries transient failures and records
// the outcome on each item.
package deliver

import "context"

// Publisher posts a finished message to the external publishing service.
//
// Error Contract:
//   - nil: the message was accepted
//   - an error wrapped with Transient: network errors, timeouts, 5xx, 429;
//     the sender retries within its budget
//   - any other error: permanent (bad credentials, rejected content);
//     the item is marked FAILED without further attempts
//
// Context Handling:
//   - Implementations must respect cancellation; the delivery id for logs is
//     available through logging.DeliveryIDFromContext
//
// Thread Safety:
//   - Publish is called from the sender goroutine only, but implementations
//     used by the history sync at startup must tolerate a call from another
//     goroutine before the sender starts
type Publisher interface {
	// Name identifies the publisher in logs and health output.
	Name() string

	// Publish posts text, which already contains the item link.
	Publish(ctx context.Context, text string) error
}
