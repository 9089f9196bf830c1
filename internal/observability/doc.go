// Package observability groups structured logging, Prometheus metrics and
// OpenTelemetry tracing for the relay.
//
// Subpackages:
//   - logging: slog setup and context propagation
//   - metrics: Prometheus collectors and store/poll/delivery observers
//   - tracing: tracer access and HTTP middleware
package observability
