package model

import (
	"encoding/json"
	"fmt"
)

// Tree is one decision tree in sklearn's flattened node-array export format.
// Node i is a leaf when ChildrenLeft[i] == -1. Value rows hold the class
// distribution observed at each node; they are normalized to probabilities
// at load time.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a tree-ensemble classifier averaging per-tree leaf distributions.
type Forest struct {
	NFeatures   int       `json:"n_features"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"feature_importances"`
}

func loadForest(raw []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode forest artifact: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	f.normalize()
	return &f, nil
}

func (f *Forest) validate() error {
	if f.NFeatures <= 0 {
		return fmt.Errorf("forest artifact missing n_features")
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest artifact has no trees")
	}
	if len(f.Importances) > 0 && len(f.Importances) != f.NFeatures {
		return fmt.Errorf("feature_importances length %d does not match n_features %d",
			len(f.Importances), f.NFeatures)
	}

	for ti, t := range f.Trees {
		n := len(t.ChildrenLeft)
		if len(t.ChildrenRight) != n || len(t.Feature) != n ||
			len(t.Threshold) != n || len(t.Value) != n {
			return fmt.Errorf("tree %d has inconsistent node arrays", ti)
		}
		for i := 0; i < n; i++ {
			if len(t.Value[i]) != 2 {
				return fmt.Errorf("tree %d node %d is not binary-class", ti, i)
			}
			if t.ChildrenLeft[i] != -1 {
				if t.Feature[i] < 0 || t.Feature[i] >= f.NFeatures {
					return fmt.Errorf("tree %d node %d references feature %d outside schema",
						ti, i, t.Feature[i])
				}
				if t.ChildrenLeft[i] >= n || t.ChildrenRight[i] >= n {
					return fmt.Errorf("tree %d node %d has out-of-range children", ti, i)
				}
			}
		}
	}
	return nil
}

// normalize converts raw class counts in node values to probabilities.
func (f *Forest) normalize() {
	for ti := range f.Trees {
		t := &f.Trees[ti]
		for i := range t.Value {
			total := t.Value[i][0] + t.Value[i][1]
			if total > 0 {
				t.Value[i][0] /= total
				t.Value[i][1] /= total
			}
		}
	}
}

// NumFeatures implements Model.
func (f *Forest) NumFeatures() int { return f.NFeatures }

// PredictProba averages leaf class distributions across the ensemble.
func (f *Forest) PredictProba(x []float64) [2]float64 {
	var p0, p1 float64
	for i := range f.Trees {
		leaf := f.Trees[i].leafFor(x)
		p0 += f.Trees[i].Value[leaf][0]
		p1 += f.Trees[i].Value[leaf][1]
	}
	n := float64(len(f.Trees))
	return [2]float64{p0 / n, p1 / n}
}

// Predict implements Model.
func (f *Forest) Predict(x []float64) int {
	if f.PredictProba(x)[1] >= 0.5 {
		return 1
	}
	return 0
}

// FeatureImportances implements FeatureImporter. Returns nil when the
// training export did not include importances.
func (f *Forest) FeatureImportances() []float64 { return f.Importances }

// PathContributions implements TreeEnsemble. For each tree, walking the
// decision path from root to leaf telescopes the positive-class probability
// shift between consecutive nodes onto the feature split at the parent;
// per-tree contributions therefore sum exactly to leaf − root. Averaging over
// the ensemble keeps the identity base + sum(contrib) == PredictProba(x)[1].
func (f *Forest) PathContributions(x []float64) (float64, []float64) {
	contrib := make([]float64, f.NFeatures)
	var base float64

	for i := range f.Trees {
		t := &f.Trees[i]
		base += t.Value[0][1]

		node := 0
		for t.ChildrenLeft[node] != -1 {
			next := t.ChildrenRight[node]
			if x[t.Feature[node]] <= t.Threshold[node] {
				next = t.ChildrenLeft[node]
			}
			contrib[t.Feature[node]] += t.Value[next][1] - t.Value[node][1]
			node = next
		}
	}

	n := float64(len(f.Trees))
	for i := range contrib {
		contrib[i] /= n
	}
	return base / n, contrib
}

func (t *Tree) leafFor(x []float64) int {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}
