package domain

import "time"

// RunStage is the pipeline-level state machine:
// raw -> merged -> feature_engineered -> balanced -> trained -> evaluated.
// The balancer only touches the training partition; the evaluation
// partition passes through unchanged.
type RunStage string

const (
	StageRaw               RunStage = "raw"
	StageMerged            RunStage = "merged"
	StageFeatureEngineered RunStage = "feature_engineered"
	StageBalanced          RunStage = "balanced"
	StageTrained           RunStage = "trained"
	StageEvaluated         RunStage = "evaluated"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// PipelineRun records one end-to-end execution of the pipeline, including
// per-stage record counts and the failure stage if the run aborted.
type PipelineRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Stage      RunStage   `json:"stage"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	RawCount       int `json:"raw_count"`
	MergedCount    int `json:"merged_count"`
	TrainCount     int `json:"train_count"`
	EvalCount      int `json:"eval_count"`
	BalancedCount  int `json:"balanced_count"`
	SyntheticCount int `json:"synthetic_count"`

	// SourceHashes maps source name to the sha256 of its raw bytes, for
	// provenance of what exactly was ingested.
	SourceHashes map[string]string `json:"source_hashes,omitempty"`
}
