package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bluetab/fraudpipe/internal/balance"
	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
	"github.com/bluetab/fraudpipe/internal/features"
	"github.com/bluetab/fraudpipe/internal/ingestion"
	"github.com/bluetab/fraudpipe/internal/merge"
	"github.com/bluetab/fraudpipe/internal/repository"
	"github.com/bluetab/fraudpipe/internal/training"
)

// RunSummary is returned from a completed pipeline run.
type RunSummary struct {
	Run        *domain.PipelineRun     `json:"run"`
	Merge      *merge.Result           `json:"merge"`
	Features   *features.Stats         `json:"features"`
	Balance    *balance.Result         `json:"balance"`
	ArtifactID string                  `json:"artifact_id"`
	Eval       domain.Metrics          `json:"eval"`
	CV         *domain.CrossValidation `json:"cv,omitempty"`
}

// Pipeline executes the full batch sequence:
// ingest -> merge -> featurize -> split -> balance(train) -> train -> evaluate.
// A stage failure aborts the run and is persisted with the originating
// stage; the context aborts long feature or training work.
type Pipeline struct {
	cfg          *config.Config
	runRepo      *repository.RunRepo
	artifactRepo *repository.ArtifactRepo
	metricRepo   *repository.MetricRepo
}

func New(
	cfg *config.Config,
	runRepo *repository.RunRepo,
	artifactRepo *repository.ArtifactRepo,
	metricRepo *repository.MetricRepo,
) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		runRepo:      runRepo,
		artifactRepo: artifactRepo,
		metricRepo:   metricRepo,
	}
}

func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	run := &domain.PipelineRun{
		ID:        uuid.NewString(),
		Status:    domain.RunRunning,
		Stage:     domain.StageRaw,
		StartedAt: time.Now().UTC(),
	}
	if err := p.runRepo.Insert(run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	log.Printf("[pipeline] Run %s started", run.ID)

	// Ingest.
	raw, err := ingestion.NewService().LoadSources(p.cfg.Sources)
	if err != nil {
		return nil, p.fail(run, domain.StageRaw, err)
	}
	run.RawCount = raw.TransactionCount()
	run.SourceHashes = raw.Hashes

	// Merge.
	mergeRes, err := merge.NewMerger(p.cfg.Merge).Merge(raw)
	if err != nil {
		return nil, p.fail(run, domain.StageMerged, err)
	}
	run.MergedCount = len(mergeRes.Records)
	p.advance(run, domain.StageMerged)

	// Feature engineering.
	dataset, featStats, err := features.NewEngineer(p.cfg.Features).Transform(ctx, mergeRes.Records)
	if err != nil {
		return nil, p.fail(run, domain.StageFeatureEngineered, err)
	}
	p.advance(run, domain.StageFeatureEngineered)

	// Partition. The evaluation partition is read-only from here on.
	split, err := training.SplitTrainEval(dataset, p.cfg.Training.EvalFraction, p.cfg.Training.Seed)
	if err != nil {
		return nil, p.fail(run, domain.StageFeatureEngineered, err)
	}
	run.TrainCount = len(split.Train.Vectors)
	run.EvalCount = len(split.Eval.Vectors)

	// Balance the training partition only.
	smote := balance.NewSMOTE(p.cfg.Balancer)
	balancedTrain, balanceRes, err := smote.Balance(split.Train)
	if err != nil {
		return nil, p.fail(run, domain.StageBalanced, err)
	}
	run.BalancedCount = len(balancedTrain.Vectors)
	run.SyntheticCount = balanceRes.SyntheticAdded
	p.advance(run, domain.StageBalanced)

	// Train and evaluate.
	trainer := training.NewTrainer(p.cfg.Training)
	artifact, evalMetrics, err := trainer.TrainAndEvaluate(ctx, run.ID, balancedTrain, split.Eval)
	if err != nil {
		return nil, p.fail(run, domain.StageTrained, err)
	}
	p.advance(run, domain.StageTrained)

	// Cross-validation over the training partition; each fold's training
	// part is rebalanced, validation folds are not.
	cv, err := trainer.CrossValidate(ctx, split.Train, func(fold *domain.Dataset) (*domain.Dataset, error) {
		balanced, _, err := smote.Balance(fold)
		return balanced, err
	})
	if err != nil {
		return nil, p.fail(run, domain.StageTrained, err)
	}

	// Persist the terminal artifacts.
	if err := p.artifactRepo.Insert(artifact); err != nil {
		return nil, p.fail(run, domain.StageEvaluated, err)
	}
	metrics := []domain.Metrics{evalMetrics}
	if cv != nil {
		metrics = append(metrics, cv.Folds...)
		metrics = append(metrics, cv.Mean, cv.Stddev)
	}
	if _, err := p.metricRepo.BulkInsert(run.ID, metrics); err != nil {
		return nil, p.fail(run, domain.StageEvaluated, err)
	}
	if err := p.runRepo.MarkCompleted(run); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}

	log.Printf("[pipeline] Run %s evaluated: raw=%d merged=%d train=%d eval=%d synthetic=%d f1=%.3f auc_pr=%.3f",
		run.ID, run.RawCount, run.MergedCount, run.TrainCount, run.EvalCount,
		run.SyntheticCount, evalMetrics.F1, evalMetrics.AUCPR)

	return &RunSummary{
		Run:        run,
		Merge:      mergeRes,
		Features:   featStats,
		Balance:    balanceRes,
		ArtifactID: artifact.ID,
		Eval:       evalMetrics,
		CV:         cv,
	}, nil
}

func (p *Pipeline) advance(run *domain.PipelineRun, stage domain.RunStage) {
	run.Stage = stage
	if err := p.runRepo.UpdateStage(run.ID, stage); err != nil {
		log.Printf("[pipeline] WARNING: failed to update stage for %s: %v", run.ID, err)
	}
}

func (p *Pipeline) fail(run *domain.PipelineRun, stage domain.RunStage, err error) error {
	stageErr := &domain.StageError{Stage: stage, Err: err}
	log.Printf("[pipeline] Run %s failed: %v", run.ID, stageErr)
	if dbErr := p.runRepo.MarkFailed(run.ID, stage, err.Error()); dbErr != nil {
		log.Printf("[pipeline] WARNING: failed to record failure for %s: %v", run.ID, dbErr)
	}
	return stageErr
}
