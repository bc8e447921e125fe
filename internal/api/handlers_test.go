package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
	"github.com/bluetab/fraudpipe/internal/repository"
)

type fixture struct {
	router       http.Handler
	runRepo      *repository.RunRepo
	artifactRepo *repository.ArtifactRepo
	metricRepo   *repository.MetricRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		runRepo:      repository.NewRunRepo(db),
		artifactRepo: repository.NewArtifactRepo(db),
		metricRepo:   repository.NewMetricRepo(db),
	}
	f.router = NewRouter(config.Default(), f.runRepo, f.artifactRepo, f.metricRepo)
	return f
}

// seedRun stores one completed run with eval metrics and a model artifact.
func (f *fixture) seedRun(t *testing.T, id string) {
	t.Helper()
	run := &domain.PipelineRun{
		ID:           id,
		Status:       domain.RunRunning,
		Stage:        domain.StageRaw,
		StartedAt:    time.Now().UTC().Add(-time.Hour),
		RawCount:     250,
		MergedCount:  230,
		TrainCount:   184,
		EvalCount:    46,
		SourceHashes: map[string]string{"bank_a": "aaa"},
	}
	require.NoError(t, f.runRepo.Insert(run))
	run.BalancedCount = 280
	run.SyntheticCount = 96
	require.NoError(t, f.runRepo.MarkCompleted(run))

	require.NoError(t, f.artifactRepo.Insert(&domain.ModelArtifact{
		ID:           "model-" + id,
		RunID:        id,
		ModelType:    "logistic_regression",
		FeatureNames: []string{"amount"},
		Weights:      []float64{1.5},
		Means:        []float64{100},
		Stddevs:      []float64{20},
		Threshold:    0.5,
		TrainedAt:    time.Now().UTC(),
	}))

	_, err := f.metricRepo.BulkInsert(id, []domain.Metrics{
		{Scope: domain.ScopeEval, Precision: 0.8, Recall: 0.7, F1: 0.75, AUCPR: 0.82, ROCAUC: 0.91, TP: 7, FP: 2, TN: 35, FN: 2},
		{Scope: domain.ScopeFold, Fold: 0, F1: 0.7},
		{Scope: domain.ScopeCVMean, F1: 0.7},
		{Scope: domain.ScopeCVStddev, F1: 0.0},
	})
	require.NoError(t, err)
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-1")
	f.seedRun(t, "run-2")

	rec, body := f.get(t, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["runs"], 2)
}

func TestListRunsStatusFilter(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-1")
	require.NoError(t, f.runRepo.Insert(&domain.PipelineRun{
		ID: "run-2", Status: domain.RunRunning, Stage: domain.StageRaw, StartedAt: time.Now().UTC(),
	}))
	require.NoError(t, f.runRepo.MarkFailed("run-2", domain.StageMerged, "boom"))

	rec, body := f.get(t, "/api/v1/runs?status=failed")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])
}

func TestGetRun(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-1")

	rec, body := f.get(t, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusOK, rec.Code)

	run := body["run"].(map[string]any)
	assert.Equal(t, "run-1", run["id"])
	assert.Equal(t, "completed", run["status"])
	assert.Len(t, body["metrics"], 4)

	artifact := body["artifact"].(map[string]any)
	assert.Equal(t, "model-run-1", artifact["id"])
}

func TestGetRunNotFound(t *testing.T) {
	f := newFixture(t)
	rec, body := f.get(t, "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestGetRunMetrics(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-1")

	rec, body := f.get(t, "/api/v1/runs/run-1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", body["run_id"])
	assert.Len(t, body["metrics"], 4)
}

func TestListModels(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-1")

	rec, body := f.get(t, "/api/v1/models")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])
	assert.Len(t, body["models"], 1)
}

func TestGetModel(t *testing.T) {
	f := newFixture(t)
	f.seedRun(t, "run-1")

	rec, body := f.get(t, "/api/v1/models/model-run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logistic_regression", body["model_type"])

	rec, _ = f.get(t, "/api/v1/models/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDashboard(t *testing.T) {
	f := newFixture(t)

	// Empty database: stats only, no latest run.
	rec, body := f.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["runs"].(map[string]any)
	assert.Equal(t, float64(0), stats["total"])
	assert.NotContains(t, body, "latest_run")

	f.seedRun(t, "run-1")

	rec, body = f.get(t, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	stats = body["runs"].(map[string]any)
	assert.Equal(t, float64(1), stats["completed"])

	latest := body["latest_run"].(map[string]any)
	assert.Equal(t, "run-1", latest["id"])

	evalMetrics := body["latest_eval"].(map[string]any)
	assert.Equal(t, 0.75, evalMetrics["f1"])

	balance := body["class_balance"].(map[string]any)
	assert.Equal(t, float64(96), balance["synthetic"])

	assert.Len(t, body["trend"], 1)
}
