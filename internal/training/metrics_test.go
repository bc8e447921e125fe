package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluetab/fraudpipe/internal/domain"
)

func TestComputeConfusionMatrix(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.4, 0.2}
	labels := []bool{true, false, true, false}

	m := Compute(domain.ScopeEval, 0, probs, labels, 0.5)

	assert.Equal(t, 1, m.TP)
	assert.Equal(t, 1, m.FP)
	assert.Equal(t, 1, m.TN)
	assert.Equal(t, 1, m.FN)
	assert.Equal(t, 0.5, m.Precision)
	assert.Equal(t, 0.5, m.Recall)
	assert.Equal(t, 0.5, m.F1)
	assert.Equal(t, 0.5, m.Accuracy)

	// Average precision: hit at rank 1 (1/1) and rank 3 (2/3) over 2 positives.
	assert.InDelta(t, 5.0/6.0, m.AUCPR, 1e-9)
	assert.InDelta(t, 0.75, m.ROCAUC, 1e-9)
}

func TestComputePerfectRanking(t *testing.T) {
	probs := []float64{0.95, 0.9, 0.1, 0.05}
	labels := []bool{true, true, false, false}

	m := Compute(domain.ScopeEval, 0, probs, labels, 0.5)

	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
	assert.Equal(t, 1.0, m.AUCPR)
	assert.Equal(t, 1.0, m.ROCAUC)
}

func TestComputeAllTiedScores(t *testing.T) {
	// A constant classifier has no ranking skill: tie-averaged ranks give 0.5.
	probs := []float64{0.5, 0.5, 0.5, 0.5}
	labels := []bool{true, false, true, false}

	m := Compute(domain.ScopeEval, 0, probs, labels, 0.5)
	assert.InDelta(t, 0.5, m.ROCAUC, 1e-9)
}

func TestComputeDegenerateLabels(t *testing.T) {
	probs := []float64{0.9, 0.1}

	m := Compute(domain.ScopeEval, 0, probs, []bool{false, false}, 0.5)
	assert.Equal(t, 0.0, m.AUCPR)
	assert.Equal(t, 0.0, m.ROCAUC)
	assert.Equal(t, 0.0, m.Recall)

	m = Compute(domain.ScopeEval, 0, probs, []bool{true, true}, 0.5)
	assert.Equal(t, 0.0, m.ROCAUC)
	assert.Equal(t, 1.0, m.AUCPR)
}

func TestSummarize(t *testing.T) {
	folds := []domain.Metrics{
		{Scope: domain.ScopeFold, Fold: 0, F1: 0.4, AUCPR: 0.6},
		{Scope: domain.ScopeFold, Fold: 1, F1: 0.6, AUCPR: 0.8},
	}

	mean, stddev := summarize(folds)

	assert.Equal(t, domain.ScopeCVMean, mean.Scope)
	assert.Equal(t, domain.ScopeCVStddev, stddev.Scope)
	assert.InDelta(t, 0.5, mean.F1, 1e-9)
	assert.InDelta(t, 0.7, mean.AUCPR, 1e-9)
	assert.InDelta(t, 0.1, stddev.F1, 1e-9)
	assert.InDelta(t, 0.1, stddev.AUCPR, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	mean, stddev := summarize(nil)
	require.Equal(t, 0.0, mean.F1)
	require.Equal(t, 0.0, stddev.F1)
}
