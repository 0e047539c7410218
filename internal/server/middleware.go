package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
)

// requestLogger logs one line per request once it completes.
func requestLogger(logger hclog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				args := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"remote", r.RemoteAddr,
				}
				if id := middleware.GetReqID(r.Context()); id != "" {
					args = append(args, "request_id", id)
				}
				switch {
				case status >= http.StatusInternalServerError:
					logger.Error("request", args...)
				case status >= http.StatusBadRequest:
					logger.Warn("request", args...)
				default:
					logger.Debug("request", args...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
