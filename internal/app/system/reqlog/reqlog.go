// Package reqlog logs one structured line per HTTP request and tags each
// request with an id.
package reqlog

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

type ctxKey struct{}

// ID returns the request id stored by Middleware, or "".
func ID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware assigns a request id (reusing a sane inbound X-Request-ID),
// echoes it on the response and logs method, path, status and latency.
// Paths in skip are not logged.
func Middleware(logger *zap.Logger, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(Header)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(Header, id)
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			if skipped[r.URL.Path] {
				return
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
			}
			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Info("request", fields...)
			default:
				logger.Debug("request", fields...)
			}
		})
	}
}
