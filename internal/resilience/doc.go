// Package resilience groups the fault tolerance helpers used by the relay.
//
// Subpackages:
//   - circuitbreaker: gobreaker wrappers for the feed host and publishing services
//   - retry: bounded retry loops used by the sender and the link resolver
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	err := cb.Run(func() error {
//	    return fetch()
//	})
//
//	err = retry.WithBackoff(ctx, retry.PublishConfig(5, 10*time.Second), func() error {
//	    return publisher.Publish(ctx, text)
//	})
package resilience
