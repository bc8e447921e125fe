package balance

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

func testCfg() config.BalancerConfig {
	return config.BalancerConfig{TargetRatio: 1.0, Neighbors: 5, Seed: 42}
}

// imbalanced builds a dataset with the given class counts. Positives cluster
// around (10, 10), negatives around (0, 0).
func imbalanced(negatives, positives int) *domain.Dataset {
	ds := &domain.Dataset{FeatureNames: []string{"x", "y"}}
	for i := 0; i < negatives; i++ {
		ds.Vectors = append(ds.Vectors, domain.FeatureVector{
			TransactionID: fmt.Sprintf("NEG-%03d", i),
			AccountID:     "ACC-01",
			Timestamp:     time.Date(2026, 8, 1, 0, i, 0, 0, time.UTC),
			Values:        []float64{float64(i % 5), float64(i % 3)},
		})
	}
	for i := 0; i < positives; i++ {
		ds.Vectors = append(ds.Vectors, domain.FeatureVector{
			TransactionID: fmt.Sprintf("POS-%03d", i),
			AccountID:     "ACC-02",
			Timestamp:     time.Date(2026, 8, 1, 1, i, 0, 0, time.UTC),
			Values:        []float64{10 + float64(i%4), 10 + float64(i%2)},
			Label:         true,
		})
	}
	return ds
}

func TestBalanceReachesTargetRatio(t *testing.T) {
	// 95:5 in, 95:95 out.
	train := imbalanced(95, 5)

	out, res, err := NewSMOTE(testCfg()).Balance(train)
	require.NoError(t, err)

	neg, pos := out.LabelCounts()
	assert.Equal(t, 95, neg)
	assert.Equal(t, 95, pos)
	assert.Equal(t, 90, res.SyntheticAdded)
	assert.Equal(t, 5, res.MinorityBefore)
	assert.Equal(t, 95, res.MajorityBefore)
	assert.Equal(t, 95, res.MinorityAfter)
}

func TestBalancePartialRatio(t *testing.T) {
	cfg := testCfg()
	cfg.TargetRatio = 0.5

	out, res, err := NewSMOTE(cfg).Balance(imbalanced(100, 10))
	require.NoError(t, err)

	neg, pos := out.LabelCounts()
	assert.Equal(t, 100, neg)
	assert.Equal(t, 50, pos)
	assert.Equal(t, 40, res.SyntheticAdded)
}

func TestBalanceSyntheticVectorsInterpolate(t *testing.T) {
	train := imbalanced(50, 6)

	out, _, err := NewSMOTE(testCfg()).Balance(train)
	require.NoError(t, err)

	// Bounding box of the real minority samples.
	lo := []float64{math.Inf(1), math.Inf(1)}
	hi := []float64{math.Inf(-1), math.Inf(-1)}
	for _, v := range train.Vectors {
		if !v.Label {
			continue
		}
		for d, x := range v.Values {
			lo[d] = math.Min(lo[d], x)
			hi[d] = math.Max(hi[d], x)
		}
	}

	synth := 0
	for _, v := range out.Vectors {
		if !v.Synthetic {
			continue
		}
		synth++
		assert.True(t, v.Label)
		assert.True(t, strings.HasPrefix(v.TransactionID, "SYN-"))
		for d, x := range v.Values {
			assert.GreaterOrEqual(t, x, lo[d])
			assert.LessOrEqual(t, x, hi[d])
		}
	}
	assert.Equal(t, 44, synth)
}

func TestBalanceDoesNotMutateInput(t *testing.T) {
	train := imbalanced(20, 4)
	before := train.Clone()

	_, _, err := NewSMOTE(testCfg()).Balance(train)
	require.NoError(t, err)

	require.Equal(t, len(before.Vectors), len(train.Vectors))
	for i := range before.Vectors {
		assert.Equal(t, before.Vectors[i].Values, train.Vectors[i].Values)
	}
}

func TestBalanceDeterministic(t *testing.T) {
	first, _, err := NewSMOTE(testCfg()).Balance(imbalanced(40, 4))
	require.NoError(t, err)
	second, _, err := NewSMOTE(testCfg()).Balance(imbalanced(40, 4))
	require.NoError(t, err)

	require.Equal(t, len(first.Vectors), len(second.Vectors))
	for i := range first.Vectors {
		assert.Equal(t, first.Vectors[i].Values, second.Vectors[i].Values)
	}
}

func TestBalanceAlreadyBalanced(t *testing.T) {
	train := imbalanced(10, 10)

	out, res, err := NewSMOTE(testCfg()).Balance(train)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SyntheticAdded)
	assert.Len(t, out.Vectors, 20)
}

func TestBalanceSingleClass(t *testing.T) {
	_, _, err := NewSMOTE(testCfg()).Balance(imbalanced(30, 0))
	require.Error(t, err)

	var insufficient *domain.InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestBalanceTooFewMinoritySamples(t *testing.T) {
	_, _, err := NewSMOTE(testCfg()).Balance(imbalanced(30, 1))
	require.Error(t, err)

	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Contains(t, insufficient.Detail, "2 minority samples")
}
