// Package logging provides structured logging utilities with context propagation.
//
// It wraps log/slog with the handler setup used by the relay binary and
// carries a per-delivery id through the sender and publishers.
//
// Example usage:
//
//	logger := logging.New(logging.OptionsFromEnv())
//	slog.SetDefault(logger)
//
//	ctx, id := logging.WithDeliveryID(ctx)
//	logging.FromContext(ctx).Info("publishing", slog.String("guid", item.GUID))
package logging
