package training

import (
	"math/rand"

	"github.com/bluetab/fraudpipe/internal/domain"
)

// SplitTrainEval partitions a dataset into training and evaluation sets,
// stratified by label so the evaluation partition keeps the original class
// ratio. The shuffle is seeded, so splits are reproducible.
func SplitTrainEval(ds *domain.Dataset, evalFraction float64, seed int64) (*domain.Split, error) {
	if len(ds.Vectors) == 0 {
		return nil, &domain.InsufficientDataError{Detail: "empty dataset, nothing to split"}
	}

	var posIdx, negIdx []int
	for i := range ds.Vectors {
		if ds.Vectors[i].Label {
			posIdx = append(posIdx, i)
		} else {
			negIdx = append(negIdx, i)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(posIdx), func(i, j int) { posIdx[i], posIdx[j] = posIdx[j], posIdx[i] })
	rng.Shuffle(len(negIdx), func(i, j int) { negIdx[i], negIdx[j] = negIdx[j], negIdx[i] })

	train := &domain.Dataset{FeatureNames: ds.FeatureNames}
	eval := &domain.Dataset{FeatureNames: ds.FeatureNames}

	for _, class := range [][]int{negIdx, posIdx} {
		nEval := int(float64(len(class)) * evalFraction)
		for i, idx := range class {
			if i < nEval {
				eval.Vectors = append(eval.Vectors, ds.Vectors[idx])
			} else {
				train.Vectors = append(train.Vectors, ds.Vectors[idx])
			}
		}
	}

	if len(train.Vectors) == 0 || len(eval.Vectors) == 0 {
		return nil, &domain.InsufficientDataError{Detail: "dataset too small for the configured eval fraction"}
	}

	return &domain.Split{Train: train, Eval: eval}, nil
}

// stratifiedFolds assigns dataset indices to k folds, distributing each
// class round-robin so every fold keeps roughly the global class ratio.
func stratifiedFolds(ds *domain.Dataset, k int, seed int64) [][]int {
	var posIdx, negIdx []int
	for i := range ds.Vectors {
		if ds.Vectors[i].Label {
			posIdx = append(posIdx, i)
		} else {
			negIdx = append(negIdx, i)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(posIdx), func(i, j int) { posIdx[i], posIdx[j] = posIdx[j], posIdx[i] })
	rng.Shuffle(len(negIdx), func(i, j int) { negIdx[i], negIdx[j] = negIdx[j], negIdx[i] })

	folds := make([][]int, k)
	for i, idx := range negIdx {
		folds[i%k] = append(folds[i%k], idx)
	}
	for i, idx := range posIdx {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}

// subset returns a dataset containing the given indices.
func subset(ds *domain.Dataset, indices []int) *domain.Dataset {
	out := &domain.Dataset{
		FeatureNames: ds.FeatureNames,
		Vectors:      make([]domain.FeatureVector, 0, len(indices)),
	}
	for _, idx := range indices {
		out.Vectors = append(out.Vectors, ds.Vectors[idx])
	}
	return out
}
