package domain

import "time"

// FeatureVector is the numeric representation of one merged record plus its
// engineered aggregates. Every non-synthetic vector traces back to exactly
// one transaction via TransactionID.
type FeatureVector struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Timestamp     time.Time `json:"timestamp"`
	Values        []float64 `json:"values"`
	Label         bool      `json:"label"`

	// Imputed marks vectors whose windowed aggregates were filled with the
	// configured sentinel because the account lacked sufficient history.
	Imputed bool `json:"imputed,omitempty"`

	// Synthetic marks vectors produced by the class balancer rather than
	// derived from a real transaction.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Dataset is an ordered collection of feature vectors sharing one schema.
type Dataset struct {
	FeatureNames []string        `json:"feature_names"`
	Vectors      []FeatureVector `json:"vectors"`
}

// LabelCounts returns the number of negative and positive vectors.
func (d *Dataset) LabelCounts() (negatives, positives int) {
	for i := range d.Vectors {
		if d.Vectors[i].Label {
			positives++
		} else {
			negatives++
		}
	}
	return negatives, positives
}

// Clone returns a deep copy. The balancer works on a clone so the caller's
// dataset is never mutated.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		FeatureNames: append([]string(nil), d.FeatureNames...),
		Vectors:      make([]FeatureVector, len(d.Vectors)),
	}
	for i := range d.Vectors {
		v := d.Vectors[i]
		v.Values = append([]float64(nil), v.Values...)
		out.Vectors[i] = v
	}
	return out
}

// Split holds the training and evaluation partitions. The evaluation
// partition is read-only from the balancer stage onward.
type Split struct {
	Train *Dataset `json:"train"`
	Eval  *Dataset `json:"eval"`
}
