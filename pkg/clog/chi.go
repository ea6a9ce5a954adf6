package clog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SlogChiMiddleware opens an attribute bag per request and writes one access
// line when the handler returns. The line carries the matched chi route
// pattern, so /api/tasks/{taskID} requests group together.
func SlogChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := ContextWithSlog(r.Context())
			AddAttributes(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			if id := r.Header.Get(middleware.RequestIDHeader); id != "" {
				AddAttribute(ctx, "request_id", id)
			}
			next.ServeHTTP(ww, r.WithContext(ctx))

			attrs := map[string]any{
				"status":        ww.Status(),
				"bytes_written": ww.BytesWritten(),
				"duration":      time.Since(start),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					attrs["route"] = pattern
				}
			}
			AddAttributes(ctx, attrs)
			slog.Log(ctx, StatusLevel(ww.Status()), http.StatusText(ww.Status()))
		})
	}
}
