package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/booking-reminder/internal/application"
)

// Identity headers asserted by the upstream gateway.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
	HeaderAdmin     = "X-Admin"
)

// Identity attaches the gateway asserted caller to the request context.
// Requests without an identity continue anonymously; services decide what
// an anonymous caller may do.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(HeaderAdmin)))
		principal := application.Principal{
			UserID:  strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Email:   strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
			Name:    strings.TrimSpace(r.Header.Get(HeaderUserName)),
			IsAdmin: admin,
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger attaches a request scoped logger carrying chi's request id
// and logs the start and completion of each request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
