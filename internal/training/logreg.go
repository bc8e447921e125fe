package training

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

const modelTypeLogReg = "logistic_regression"

// LogisticRegression is a binary classifier fit by mini-batch gradient
// descent on standardized inputs.
type LogisticRegression struct {
	Weights []float64
	Bias    float64

	means   []float64
	stddevs []float64
	cfg     config.TrainingConfig
}

func NewLogisticRegression(cfg config.TrainingConfig) *LogisticRegression {
	return &LogisticRegression{cfg: cfg}
}

// Fit trains the model on the given (already balanced) dataset. It returns
// InsufficientDataError on an empty or single-class dataset and
// ConvergenceError if the loss diverges. The context aborts a long run
// between epochs.
func (m *LogisticRegression) Fit(ctx context.Context, ds *domain.Dataset) error {
	n := len(ds.Vectors)
	if n == 0 {
		return &domain.InsufficientDataError{Detail: "empty training partition"}
	}
	negatives, positives := ds.LabelCounts()
	if negatives == 0 || positives == 0 {
		return &domain.InsufficientDataError{Detail: "single-class training partition"}
	}

	dims := len(ds.Vectors[0].Values)
	m.means, m.stddevs = fitStandardizer(ds)

	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range ds.Vectors {
		x[i] = m.standardize(ds.Vectors[i].Values)
		if ds.Vectors[i].Label {
			y[i] = 1
		}
	}

	m.Weights = make([]float64, dims)
	m.Bias = 0

	batch := m.cfg.BatchSize
	if batch <= 0 || batch > n {
		batch = n
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < n; start += batch {
			end := start + batch
			if end > n {
				end = n
			}
			m.step(x, y, order[start:end])
		}

		loss := m.loss(x, y)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return &domain.ConvergenceError{Epoch: epoch, Loss: loss}
		}
	}

	return nil
}

// step applies one mini-batch gradient update.
func (m *LogisticRegression) step(x [][]float64, y []float64, batch []int) {
	dims := len(m.Weights)
	gradW := make([]float64, dims)
	var gradB float64

	for _, i := range batch {
		err := sigmoid(m.raw(x[i])) - y[i]
		for d := 0; d < dims; d++ {
			gradW[d] += err * x[i][d]
		}
		gradB += err
	}

	scale := m.cfg.LearningRate / float64(len(batch))
	for d := 0; d < dims; d++ {
		m.Weights[d] -= scale*gradW[d] + m.cfg.LearningRate*m.cfg.L2*m.Weights[d]
	}
	m.Bias -= scale * gradB
}

// loss is the mean cross-entropy over the full set.
func (m *LogisticRegression) loss(x [][]float64, y []float64) float64 {
	const eps = 1e-12
	var total float64
	for i := range x {
		p := sigmoid(m.raw(x[i]))
		if y[i] == 1 {
			total += -math.Log(p + eps)
		} else {
			total += -math.Log(1 - p + eps)
		}
	}
	return total / float64(len(x))
}

func (m *LogisticRegression) raw(x []float64) float64 {
	z := m.Bias
	for d, w := range m.Weights {
		z += w * x[d]
	}
	return z
}

// Predict returns the fraud probability for a raw (unstandardized) vector.
func (m *LogisticRegression) Predict(values []float64) float64 {
	return sigmoid(m.raw(m.standardize(values)))
}

// Artifact exports the fitted model for persistence.
func (m *LogisticRegression) Artifact(runID string, featureNames []string) *domain.ModelArtifact {
	return &domain.ModelArtifact{
		ID:           uuid.NewString(),
		RunID:        runID,
		ModelType:    modelTypeLogReg,
		FeatureNames: append([]string(nil), featureNames...),
		Weights:      append([]float64(nil), m.Weights...),
		Bias:         m.Bias,
		Means:        append([]float64(nil), m.means...),
		Stddevs:      append([]float64(nil), m.stddevs...),
		Threshold:    m.cfg.Threshold,
		TrainedAt:    time.Now().UTC(),
	}
}

func (m *LogisticRegression) standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	for d, v := range values {
		out[d] = (v - m.means[d]) / m.stddevs[d]
	}
	return out
}

// fitStandardizer computes per-feature mean and standard deviation on the
// training partition. Constant features get stddev 1 so they standardize to
// zero rather than dividing by zero.
func fitStandardizer(ds *domain.Dataset) (means, stddevs []float64) {
	n := float64(len(ds.Vectors))
	dims := len(ds.Vectors[0].Values)
	means = make([]float64, dims)
	stddevs = make([]float64, dims)

	for i := range ds.Vectors {
		for d, v := range ds.Vectors[i].Values {
			means[d] += v
		}
	}
	for d := range means {
		means[d] /= n
	}
	for i := range ds.Vectors {
		for d, v := range ds.Vectors[i].Values {
			diff := v - means[d]
			stddevs[d] += diff * diff
		}
	}
	for d := range stddevs {
		stddevs[d] = math.Sqrt(stddevs[d] / n)
		if stddevs[d] == 0 {
			stddevs[d] = 1
		}
	}
	return means, stddevs
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
