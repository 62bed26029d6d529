package xai

import (
	"context"

	"github.com/cardiolab/heart-xai/internal/model"
)

// treePathStrategy is the exact additive path for tree ensembles: the
// positive-class probability shift along each root-to-leaf decision path is
// assigned to the feature split at each branch, so contributions sum exactly
// to probability minus the ensemble's root expectation. Preferred when
// available: no sampling, no background perturbation, O(depth) per tree.
type treePathStrategy struct {
	ensemble  model.TreeEnsemble
	nFeatures int
}

func (s *treePathStrategy) name() string { return "tree_path" }

func (s *treePathStrategy) attribute(ctx context.Context, x []float64) (float64, []float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	base, contrib := s.ensemble.PathContributions(x)
	if len(contrib) != s.nFeatures {
		contrib = append(contrib, make([]float64, s.nFeatures-len(contrib))...)
	}
	return base, contrib, nil
}
