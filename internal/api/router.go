package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	cfg *config.Config,
	runRepo *repository.RunRepo,
	artifactRepo *repository.ArtifactRepo,
	metricRepo *repository.MetricRepo,
) http.Handler {
	h := &Handlers{
		cfg:          cfg,
		runRepo:      runRepo,
		artifactRepo: artifactRepo,
		metricRepo:   metricRepo,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Pipeline runs.
		r.Post("/runs", h.TriggerRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/runs/{id}/metrics", h.GetRunMetrics)

		// Model artifacts.
		r.Get("/models", h.ListModels)
		r.Get("/models/{id}", h.GetModel)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
