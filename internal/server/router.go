package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a chi router with request ids, panic recovery, CORS and request
// logging, then lets each handler register its routes.
//
// Middleware is applied in the order given, before any handler is registered.
func NewRouter(logger *log.Logger, handlers ...Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "HEAD", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Origin", "Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		RequestLogger(logger),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	for _, h := range handlers {
		h.Register(r)
	}

	return r
}

// RequestLogger logs one line per request at info, or warn for 5xx responses.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request", kv...)
				return
			}
			logger.Info("request", kv...)
		})
	}
}
