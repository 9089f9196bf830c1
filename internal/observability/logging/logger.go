package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Options selects the handler built by New.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // json or text
	Output io.Writer // defaults to os.Stdout
}

// OptionsFromEnv reads LOG_LEVEL and LOG_FORMAT.
func OptionsFromEnv() Options {
	return Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a structured logger. JSON is the default format.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// NewLogger creates a JSON logger configured from the environment.
func NewLogger() *slog.Logger {
	return New(OptionsFromEnv())
}

// FromContext retrieves the logger from the context, or returns the default logger if not found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// WithDeliveryID tags ctx with a fresh delivery id and a logger carrying it.
// One id covers every publish attempt for a single item.
func WithDeliveryID(ctx context.Context) (context.Context, string) {
	id := uuid.New().String()
	ctx = context.WithValue(ctx, deliveryIDContextKey, id)
	ctx = WithLogger(ctx, FromContext(ctx).With(slog.String("delivery_id", id)))
	return ctx, id
}

// DeliveryIDFromContext returns the id set by WithDeliveryID, or "".
func DeliveryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deliveryIDContextKey).(string)
	return id
}

type contextKey string

const (
	loggerContextKey     contextKey = "logger"
	deliveryIDContextKey contextKey = "delivery_id"
)
