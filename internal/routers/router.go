package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"doccollab/internal/api"
	"doccollab/internal/config"
	"doccollab/internal/metrics"
)

const serviceName = "collab"

func New(h *api.Handlers, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(metrics.Middleware(serviceName))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// websocket connections outlive any request timeout
	r.Get("/ws/documents/{id}", h.CollabWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/api/v1/healthz", h.Health)
		r.Get("/api/v1/documents/{id}/session", h.SessionInfo)
		r.Get("/api/v1/documents/{id}/comments", h.ListComments)
	})

	return r
}
