// Package router wires the HTTP API onto chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"RequestCriteria/internal/config"
	"RequestCriteria/internal/handler"
	"RequestCriteria/internal/logger"
	"RequestCriteria/internal/resolver"
)

const requestIDHeader = "X-Request-ID"

// New returns the API router.
func New(cfg config.CORSConfig, svc *resolver.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withRequestID)
	r.Use(withLogging)
	r.Use(withCORS(cfg.AllowOrigin, cfg.AllowCredentials))

	r.Get("/healthz", handler.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/index", handler.Index(svc))
		r.Post("/count", handler.Count(svc))
		r.Post("/compile", handler.Compile(svc))
	})
	return r
}

// withRequestID keeps an incoming X-Request-ID or mints one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		fields := logger.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  r.Header.Get(requestIDHeader),
		}
		switch {
		case sw.status >= 500:
			logger.Error("response", fields)
		case sw.status >= 400:
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	})
}
