// Package api assembles the HTTP router for the session lifecycle
// surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/finsight-ai/finsight/internal/api/handlers"
	"github.com/finsight-ai/finsight/internal/api/middleware"
	"github.com/finsight-ai/finsight/internal/observability"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health & metrics
	r.Get("/health", observability.HealthHandler())
	r.Get("/health/live", observability.LivenessHandler())
	r.Get("/health/ready", observability.ReadinessHandler())
	r.Handle("/metrics", observability.MetricsHandler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pipeline", h.Pipeline)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.CreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/start", h.StartSession)
				r.Post("/analyze", h.Analyze)
				r.Post("/complete", h.CompleteSession)
				r.Route("/agents/{agentID}", func(r chi.Router) {
					r.Get("/", h.GetAgentResult)
					r.Post("/", h.UpdateAgentResult)
				})
			})
		})
	})

	return r
}
