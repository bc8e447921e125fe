package domain

import "time"

// ModelArtifact is a trained classifier plus the preprocessing parameters
// needed to score new vectors. It is the terminal output of a pipeline run,
// persisted for external dashboard consumption.
type ModelArtifact struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	ModelType    string    `json:"model_type"`
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Stddevs      []float64 `json:"stddevs"`
	Threshold    float64   `json:"threshold"`
	TrainedAt    time.Time `json:"trained_at"`
}

// MetricScope distinguishes where a metrics row was measured.
type MetricScope string

const (
	ScopeEval     MetricScope = "eval"
	ScopeFold     MetricScope = "fold"
	ScopeCVMean   MetricScope = "cv_mean"
	ScopeCVStddev MetricScope = "cv_stddev"
)

// Metrics holds classification metrics for one evaluation. Precision,
// recall, F1 and AUC-PR are the headline numbers for imbalanced data;
// accuracy is reported but not relied on.
type Metrics struct {
	Scope     MetricScope `json:"scope"`
	Fold      int         `json:"fold"`
	Precision float64     `json:"precision"`
	Recall    float64     `json:"recall"`
	F1        float64     `json:"f1"`
	Accuracy  float64     `json:"accuracy"`
	AUCPR     float64     `json:"auc_pr"`
	ROCAUC    float64     `json:"roc_auc"`
	TP        int         `json:"tp"`
	FP        int         `json:"fp"`
	TN        int         `json:"tn"`
	FN        int         `json:"fn"`
}

// CrossValidation summarises a k-fold run: per-fold metrics plus the mean
// and standard deviation across folds.
type CrossValidation struct {
	Folds  []Metrics `json:"folds"`
	Mean   Metrics   `json:"mean"`
	Stddev Metrics   `json:"stddev"`
}
