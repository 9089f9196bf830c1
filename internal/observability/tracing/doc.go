// Package tracing provides OpenTelemetry tracing integration.
//
// The relay creates spans around each cycle, each poll and each delivery.
// Spans go to whatever TracerProvider is registered with otel; with none
// registered they are no-ops. The HTTP middleware traces the health
// endpoints; /metrics scrapes are left out.
package tracing
