/*
server.go - HTTP router and middleware configuration

ROUTES:
  POST /api/recommendations   Synchronous engine run over a full request body
  GET  /api/activities        Task types this process can serve
  GET  /health                Liveness
  GET  /ready                 Dependency checks (Zeebe, Postgres, Redis, Elasticsearch)
  GET  /metrics               Prometheus scrape endpoint

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. RealIP
  3. Request logging through the structured logger
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Origins from http.cors_allowed_origins
*/
package api

import (
	"net/http"
	"time"

	"handoff-workers/internal/common/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates the router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/recommendations", h.GenerateRecommendations)
		r.Get("/activities", h.ListActivities)
	})

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request", map[string]interface{}{
					"requestId":  middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"durationMs": time.Since(start).Milliseconds(),
				})
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
