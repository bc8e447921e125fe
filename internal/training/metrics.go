package training

import (
	"math"
	"sort"

	"github.com/bluetab/fraudpipe/internal/domain"
)

// Compute derives classification metrics from predicted probabilities and
// true labels. AUC-PR and ROC-AUC are threshold-free; the confusion matrix
// and derived rates use the given probability cutoff.
func Compute(scope domain.MetricScope, fold int, probs []float64, labels []bool, threshold float64) domain.Metrics {
	m := domain.Metrics{Scope: scope, Fold: fold}

	for i, p := range probs {
		predicted := p >= threshold
		switch {
		case predicted && labels[i]:
			m.TP++
		case predicted && !labels[i]:
			m.FP++
		case !predicted && !labels[i]:
			m.TN++
		default:
			m.FN++
		}
	}

	if m.TP+m.FP > 0 {
		m.Precision = float64(m.TP) / float64(m.TP+m.FP)
	}
	if m.TP+m.FN > 0 {
		m.Recall = float64(m.TP) / float64(m.TP+m.FN)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if len(probs) > 0 {
		m.Accuracy = float64(m.TP+m.TN) / float64(len(probs))
	}
	m.AUCPR = aucPR(probs, labels)
	m.ROCAUC = rocAUC(probs, labels)

	return m
}

// aucPR is average precision: the mean of precision values at each positive
// hit when ranking by descending score.
func aucPR(probs []float64, labels []bool) float64 {
	order := rankOrder(probs)

	totalPos := 0
	for _, l := range labels {
		if l {
			totalPos++
		}
	}
	if totalPos == 0 {
		return 0
	}

	var ap float64
	tp := 0
	for rank, idx := range order {
		if labels[idx] {
			tp++
			ap += float64(tp) / float64(rank+1)
		}
	}
	return ap / float64(totalPos)
}

// rocAUC is the Mann-Whitney rank statistic with average ranks on ties.
func rocAUC(probs []float64, labels []bool) float64 {
	n := len(probs)
	nPos, nNeg := 0, 0
	for _, l := range labels {
		if l {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// Average rank across the tie group (1-based ranks).
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var sumPos float64
	for i, l := range labels {
		if l {
			sumPos += ranks[i]
		}
	}
	u := sumPos - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg))
}

// rankOrder returns indices sorted by descending probability.
func rankOrder(probs []float64) []int {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })
	return order
}

// summarize computes the per-metric mean and standard deviation across
// folds, so run reports carry fold variance.
func summarize(folds []domain.Metrics) (mean, stddev domain.Metrics) {
	mean = domain.Metrics{Scope: domain.ScopeCVMean}
	stddev = domain.Metrics{Scope: domain.ScopeCVStddev}
	if len(folds) == 0 {
		return mean, stddev
	}

	fields := func(m *domain.Metrics) []*float64 {
		return []*float64{&m.Precision, &m.Recall, &m.F1, &m.Accuracy, &m.AUCPR, &m.ROCAUC}
	}

	n := float64(len(folds))
	meanF := fields(&mean)
	for i := range folds {
		for j, f := range fields(&folds[i]) {
			*meanF[j] += *f
		}
	}
	for _, f := range meanF {
		*f /= n
	}

	stdF := fields(&stddev)
	for i := range folds {
		for j, f := range fields(&folds[i]) {
			diff := *f - *meanF[j]
			*stdF[j] += diff * diff
		}
	}
	for _, f := range stdF {
		*f = math.Sqrt(*f / n)
	}

	return mean, stddev
}
