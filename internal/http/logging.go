package http

import (
	"context"
	"log/slog"

	"github.com/example/booking-reminder/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.OrDefault(logger)
}

// handlerLogger scopes the request logger installed by RequestLogger to one
// handler operation.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	return logging.Scoped(ctx, fallback, "handler", handlerName, operation, attrs...)
}
