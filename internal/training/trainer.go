package training

import (
	"context"
	"fmt"
	"log"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

// BalanceFunc rebalances a training fold. Injected so the trainer does not
// depend on the balancer package and tests can substitute a no-op.
type BalanceFunc func(*domain.Dataset) (*domain.Dataset, error)

// Trainer fits classifiers and evaluates them on held-out data.
type Trainer struct {
	cfg config.TrainingConfig
}

func NewTrainer(cfg config.TrainingConfig) *Trainer {
	return &Trainer{cfg: cfg}
}

// TrainAndEvaluate fits a model on the balanced training partition and
// scores it against the untouched evaluation partition.
func (t *Trainer) TrainAndEvaluate(ctx context.Context, runID string, balancedTrain, eval *domain.Dataset) (*domain.ModelArtifact, domain.Metrics, error) {
	if len(eval.Vectors) == 0 {
		return nil, domain.Metrics{}, &domain.InsufficientDataError{Detail: "empty evaluation partition"}
	}
	if neg, pos := eval.LabelCounts(); neg == 0 || pos == 0 {
		return nil, domain.Metrics{}, &domain.InsufficientDataError{Detail: "single-class evaluation partition"}
	}

	model := NewLogisticRegression(t.cfg)
	if err := model.Fit(ctx, balancedTrain); err != nil {
		return nil, domain.Metrics{}, fmt.Errorf("fit: %w", err)
	}

	probs, labels := score(model, eval)
	metrics := Compute(domain.ScopeEval, 0, probs, labels, t.cfg.Threshold)

	log.Printf("[training] Eval: precision=%.3f recall=%.3f f1=%.3f auc_pr=%.3f roc_auc=%.3f",
		metrics.Precision, metrics.Recall, metrics.F1, metrics.AUCPR, metrics.ROCAUC)

	return model.Artifact(runID, balancedTrain.FeatureNames), metrics, nil
}

// CrossValidate runs stratified k-fold cross-validation over the training
// partition. Each fold's training part is rebalanced through balanceFn; the
// validation fold is never balanced. A degenerate single-class validation
// fold fails the run with InsufficientData.
func (t *Trainer) CrossValidate(ctx context.Context, train *domain.Dataset, balanceFn BalanceFunc) (*domain.CrossValidation, error) {
	k := t.cfg.Folds
	if k < 2 {
		return nil, nil
	}
	if len(train.Vectors) < k {
		return nil, &domain.InsufficientDataError{
			Detail: fmt.Sprintf("%d vectors cannot fill %d folds", len(train.Vectors), k),
		}
	}

	folds := stratifiedFolds(train, k, t.cfg.Seed)
	cv := &domain.CrossValidation{}

	for f := 0; f < k; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		val := subset(train, folds[f])
		if neg, pos := val.LabelCounts(); neg == 0 || pos == 0 {
			return nil, &domain.InsufficientDataError{
				Detail: fmt.Sprintf("fold %d is single-class", f),
			}
		}

		var trainIdx []int
		for g := 0; g < k; g++ {
			if g != f {
				trainIdx = append(trainIdx, folds[g]...)
			}
		}
		foldTrain := subset(train, trainIdx)

		balanced, err := balanceFn(foldTrain)
		if err != nil {
			return nil, fmt.Errorf("balance fold %d: %w", f, err)
		}

		model := NewLogisticRegression(t.cfg)
		if err := model.Fit(ctx, balanced); err != nil {
			return nil, fmt.Errorf("fit fold %d: %w", f, err)
		}

		probs, labels := score(model, val)
		metrics := Compute(domain.ScopeFold, f, probs, labels, t.cfg.Threshold)
		cv.Folds = append(cv.Folds, metrics)
	}

	cv.Mean, cv.Stddev = summarize(cv.Folds)

	log.Printf("[training] %d-fold CV: f1=%.3f±%.3f auc_pr=%.3f±%.3f",
		k, cv.Mean.F1, cv.Stddev.F1, cv.Mean.AUCPR, cv.Stddev.AUCPR)

	return cv, nil
}

func score(model *LogisticRegression, ds *domain.Dataset) ([]float64, []bool) {
	probs := make([]float64, len(ds.Vectors))
	labels := make([]bool, len(ds.Vectors))
	for i := range ds.Vectors {
		probs[i] = model.Predict(ds.Vectors[i].Values)
		labels[i] = ds.Vectors[i].Label
	}
	return probs, labels
}
