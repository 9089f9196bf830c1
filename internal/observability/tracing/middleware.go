package tracing

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the span's trace id back to the caller.
const TraceIDHeader = "X-Trace-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Option configures Middleware.
type Option func(*middleware)

type middleware struct {
	untraced map[string]struct{}
}

// WithoutPaths leaves requests for the given exact paths untraced, such as
// Prometheus scrapes that would otherwise produce a span every few seconds.
func WithoutPaths(paths ...string) Option {
	return func(m *middleware) {
		for _, p := range paths {
			m.untraced[p] = struct{}{}
		}
	}
}

// Middleware wraps the ops endpoints of the relay with a server span per
// request, named "<METHOD> <path>". Incoming W3C trace context is honored.
// A 5xx response, which the pipeline endpoint returns while a breaker is
// open, marks the span as an error.
func Middleware(next http.Handler, opts ...Option) http.Handler {
	m := &middleware{untraced: make(map[string]struct{})}
	for _, opt := range opts {
		opt(m)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, skip := m.untraced[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.IsValid() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(rec.status)+" "+http.StatusText(rec.status))
		}
	})
}
