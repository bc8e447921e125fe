package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
	"github.com/bluetab/fraudpipe/internal/pipeline"
	"github.com/bluetab/fraudpipe/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	cfg          *config.Config
	runRepo      *repository.RunRepo
	artifactRepo *repository.ArtifactRepo
	metricRepo   *repository.MetricRepo
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- TriggerRun ---

// TriggerRun executes the full pipeline synchronously and returns the run
// summary. A stage failure comes back as 422 with the originating stage.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	p := pipeline.New(h.cfg, h.runRepo, h.artifactRepo, h.metricRepo)

	summary, err := p.Run(r.Context())
	if err != nil {
		var stageErr *domain.StageError
		if errors.As(err, &stageErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": stageErr.Err.Error(),
				"stage": stageErr.Stage,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// --- ListRuns ---

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.RunFilter{
		Status: q.Get("status"),
		Page:   parseIntDefault(q.Get("page"), 1),
		Limit:  parseIntDefault(q.Get("limit"), 50),
	}

	runs, total, err := h.runRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// --- GetRun ---

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	run, err := h.runRepo.GetByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	metrics, err := h.metricRepo.GetByRunID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	artifact, err := h.artifactRepo.GetByRunID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":      run,
		"metrics":  metrics,
		"artifact": artifact,
	})
}

// --- GetRunMetrics ---

func (h *Handlers) GetRunMetrics(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if _, err := h.runRepo.GetByID(id); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	metrics, err := h.metricRepo.GetByRunID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  id,
		"metrics": metrics,
	})
}

// --- ListModels ---

func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	limit := parseIntDefault(q.Get("limit"), 50)

	artifacts, total, err := h.artifactRepo.List(page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models": artifacts,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// --- GetModel ---

func (h *Handlers) GetModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	artifact, err := h.artifactRepo.GetByID(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

// --- GetDashboard ---

// GetDashboard returns the summary payload external dashboards poll: run
// stats, the latest completed run with its evaluation metrics, and the
// headline metric trend across recent runs.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.runRepo.GetDashboardStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	latest, err := h.runRepo.GetLatestCompleted()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dashboard := map[string]any{
		"runs":  stats,
		"trend": []repository.TrendPoint{},
	}

	trend, err := h.metricRepo.GetEvalTrend(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trend != nil {
		dashboard["trend"] = trend
	}

	if latest != nil {
		evalMetrics, err := h.metricRepo.GetEvalMetrics(latest.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		dashboard["latest_run"] = latest
		dashboard["latest_eval"] = evalMetrics
		dashboard["class_balance"] = map[string]int{
			"train":     latest.TrainCount,
			"eval":      latest.EvalCount,
			"synthetic": latest.SyntheticCount,
		}
	}

	writeJSON(w, http.StatusOK, dashboard)
}
