package xai

import (
	"math"
	"sort"

	"github.com/cardiolab/heart-xai/internal/predict"
	"github.com/cardiolab/heart-xai/internal/types"
)

// Assemble merges a prediction and an explanation into the external response
// contract. The additive view stays in schema order with every feature
// present; the importance view is a magnitude-sorted permutation of the same
// features (stable sort, schema order breaks ties); the sparse surrogate view
// keeps the surrogate's own ranking.
func Assemble(pred predict.Result, expl *Explanation, schema []string) types.ExplanationResponse {
	shapValues := make([]types.ShapValue, len(schema))
	for i, name := range schema {
		shapValues[i] = types.ShapValue{Feature: name, Value: expl.Additive[i]}
	}

	importance := make([]types.FeatureImportance, len(schema))
	for i, name := range schema {
		v := expl.Additive[i]
		direction := "negative"
		if v > 0 {
			direction = "positive"
		}
		importance[i] = types.FeatureImportance{
			Feature:    name,
			Importance: math.Abs(v),
			Direction:  direction,
		}
	}
	sort.SliceStable(importance, func(a, b int) bool {
		return importance[a].Importance > importance[b].Importance
	})

	limeFeatures := make([]types.LimeFeature, len(expl.Sparse))
	for i, fw := range expl.Sparse {
		limeFeatures[i] = types.LimeFeature{Feature: schema[fw.Index], Weight: fw.Weight}
	}

	return types.ExplanationResponse{
		Prediction:        pred.Label,
		Probability:       pred.Probability,
		ShapValues:        shapValues,
		FeatureImportance: importance,
		LimeExplanation: types.LimeExplanation{
			Intercept: expl.Intercept,
			Features:  limeFeatures,
		},
	}
}
