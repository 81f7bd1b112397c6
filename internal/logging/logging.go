package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type contextKey struct{}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// New builds the process logger. format is "json" or "text"; level is one
// of debug, info, warn or error and defaults to info.
func New(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "bookingd")
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// OrDefault returns logger, or slog.Default when it is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// Scoped prefers the request logger carried by ctx over fallback and tags it
// with the component role ("service", "handler"), its name and the
// operation.
func Scoped(ctx context.Context, fallback *slog.Logger, role, name, operation string, attrs ...any) *slog.Logger {
	logger := FromContext(ctx)
	if logger == nil {
		logger = OrDefault(fallback)
	}
	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, role, name)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logger.With(append(pairs, attrs...)...)
}
