package balance

import (
	"log"
	"math"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/bluetab/fraudpipe/internal/config"
	"github.com/bluetab/fraudpipe/internal/domain"
)

// Result summarises a balancing run.
type Result struct {
	MinorityBefore int `json:"minority_before"`
	MajorityBefore int `json:"majority_before"`
	SyntheticAdded int `json:"synthetic_added"`
	MinorityAfter  int `json:"minority_after"`
	MajorityAfter  int `json:"majority_after"`
}

// SMOTE oversamples the minority class by interpolating between a minority
// sample and one of its k nearest minority-class neighbours in feature
// space. It never duplicates a sample verbatim, so the classifier cannot
// overfit to exact replicas.
//
// SMOTE is applied to the training partition only; the evaluation partition
// must never pass through it.
type SMOTE struct {
	cfg config.BalancerConfig
}

func NewSMOTE(cfg config.BalancerConfig) *SMOTE {
	return &SMOTE{cfg: cfg}
}

// Balance returns a new dataset with synthetic minority vectors appended
// until the minority:majority ratio reaches the configured target. The
// input dataset is not mutated. The RNG is seeded from config, so runs are
// reproducible.
func (s *SMOTE) Balance(train *domain.Dataset) (*domain.Dataset, *Result, error) {
	negatives, positives := train.LabelCounts()

	minorityLabel := true
	minority, majority := positives, negatives
	if negatives < positives {
		minorityLabel = false
		minority, majority = negatives, positives
	}

	res := &Result{
		MinorityBefore: minority,
		MajorityBefore: majority,
		MinorityAfter:  minority,
		MajorityAfter:  majority,
	}

	if majority == 0 || minority == 0 {
		return nil, res, &domain.InsufficientDataError{
			Detail: "training partition contains a single class, cannot balance",
		}
	}

	needed := int(math.Ceil(s.cfg.TargetRatio*float64(majority))) - minority
	if needed <= 0 {
		log.Printf("[balance] Training partition already at target ratio, nothing to do")
		return train.Clone(), res, nil
	}

	if minority < 2 {
		return nil, res, &domain.InsufficientDataError{
			Detail: "need at least 2 minority samples for neighbour interpolation",
		}
	}

	var minorityIdx []int
	for i := range train.Vectors {
		if train.Vectors[i].Label == minorityLabel {
			minorityIdx = append(minorityIdx, i)
		}
	}

	k := s.cfg.Neighbors
	if k > len(minorityIdx)-1 {
		k = len(minorityIdx) - 1
	}
	neighbours := nearestNeighbours(train, minorityIdx, k)

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	out := train.Clone()

	for n := 0; n < needed; n++ {
		i := rng.Intn(len(minorityIdx))
		parent := &train.Vectors[minorityIdx[i]]
		nb := &train.Vectors[neighbours[i][rng.Intn(len(neighbours[i]))]]

		gap := rng.Float64()
		values := make([]float64, len(parent.Values))
		for d := range values {
			values[d] = parent.Values[d] + gap*(nb.Values[d]-parent.Values[d])
		}

		out.Vectors = append(out.Vectors, domain.FeatureVector{
			TransactionID: "SYN-" + uuid.NewString(),
			AccountID:     parent.AccountID,
			Timestamp:     parent.Timestamp,
			Values:        values,
			Label:         minorityLabel,
			Synthetic:     true,
		})
	}

	res.SyntheticAdded = needed
	res.MinorityAfter = minority + needed
	log.Printf("[balance] Added %d synthetic minority vectors (%d:%d -> %d:%d)",
		needed, minority, majority, res.MinorityAfter, majority)

	return out, res, nil
}

// nearestNeighbours returns, for each minority vector, the indices (into
// the dataset) of its k nearest minority-class neighbours by Euclidean
// distance. Brute force: minority classes are small by definition.
func nearestNeighbours(ds *domain.Dataset, minorityIdx []int, k int) [][]int {
	type candidate struct {
		idx  int
		dist float64
	}

	out := make([][]int, len(minorityIdx))
	for i, a := range minorityIdx {
		cands := make([]candidate, 0, len(minorityIdx)-1)
		for j, b := range minorityIdx {
			if i == j {
				continue
			}
			cands = append(cands, candidate{idx: b, dist: euclidean(ds.Vectors[a].Values, ds.Vectors[b].Values)})
		}
		sort.Slice(cands, func(x, y int) bool {
			if cands[x].dist != cands[y].dist {
				return cands[x].dist < cands[y].dist
			}
			return cands[x].idx < cands[y].idx
		})
		nbs := make([]int, 0, k)
		for _, c := range cands[:k] {
			nbs = append(nbs, c.idx)
		}
		out[i] = nbs
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
