package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/donorflow/donorflow/internal/middleware"
)

// newRouter wires every route behind the shared middleware stack.
func newRouter(deps *Dependencies) http.Handler {
	cfg := deps.Config

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.RateLimit(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", deps.AuthHandler.AuthRoutes())
		r.Mount("/crm", deps.CRMHandler.Routes())
		r.Mount("/upload_excel", deps.IngestHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.AuthService))
			r.Mount("/me", deps.AuthHandler.ProfileRoutes())
		})
	})

	return r
}
