package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testForest builds a two-tree ensemble over 2 features with node values given
// as raw class counts, matching the persisted artifact format.
func testForest(t *testing.T) *Forest {
	t.Helper()

	f := &Forest{
		NFeatures: 2,
		Trees: []Tree{
			{
				// split on feature 0 at 0.0: left leaf p1=0.25, right leaf p1=0.75
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{0, -2, -2},
				Threshold:     []float64{0.0, 0, 0},
				Value:         [][]float64{{4, 4}, {3, 1}, {1, 3}},
			},
			{
				// split on feature 1 at 1.0: left leaf p1=0.5, right leaf p1=1.0
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{1, -2, -2},
				Threshold:     []float64{1.0, 0, 0},
				Value:         [][]float64{{5, 3}, {2, 2}, {0, 2}},
			},
		},
		Importances: []float64{0.6, 0.4},
	}
	require.NoError(t, f.validate())
	f.normalize()
	return f
}

func TestForestPredictProba(t *testing.T) {
	f := testForest(t)

	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{name: "both left branches", x: []float64{-1, 0}, want: (0.25 + 0.5) / 2},
		{name: "both right branches", x: []float64{1, 2}, want: (0.75 + 1.0) / 2},
		{name: "boundary goes left", x: []float64{0, 1}, want: (0.25 + 0.5) / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := f.PredictProba(tt.x)
			assert.InDelta(t, tt.want, probs[1], 1e-12)
			assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-12)
		})
	}
}

func TestForestPathContributions_Additivity(t *testing.T) {
	f := testForest(t)

	inputs := [][]float64{
		{-1, 0}, {1, 2}, {0, 1}, {3, -3}, {-2, 5},
	}

	for _, x := range inputs {
		base, contrib := f.PathContributions(x)
		require.Len(t, contrib, f.NFeatures)

		sum := base
		for _, c := range contrib {
			sum += c
		}
		assert.InDelta(t, f.PredictProba(x)[1], sum, 1e-12,
			"base + contributions must reconstruct the probability for %v", x)
	}
}

func TestForestPathContributions_UnusedFeatureIsZero(t *testing.T) {
	f := testForest(t)
	// drop the second tree so only feature 0 is ever split on
	f.Trees = f.Trees[:1]

	_, contrib := f.PathContributions([]float64{-1, 99})
	assert.NotZero(t, contrib[0])
	assert.Zero(t, contrib[1])
}

func TestLogisticPredictProba(t *testing.T) {
	lr := &Logistic{Coefs: []float64{1.0, -2.0}, Bias: 0.5, NFeatures: 2}

	z := 0.5 + 1.0*1.0 + -2.0*0.25
	want := 1 / (1 + math.Exp(-z))

	probs := lr.PredictProba([]float64{1.0, 0.25})
	assert.InDelta(t, want, probs[1], 1e-12)
	assert.InDelta(t, 1-want, probs[0], 1e-12)
}

func TestDetect(t *testing.T) {
	t.Run("forest with importances", func(t *testing.T) {
		caps := Detect(testForest(t))
		assert.True(t, caps.TreePaths)
		assert.True(t, caps.NativeImportances)
		assert.False(t, caps.LinearCoefficients)
	})

	t.Run("forest without importances", func(t *testing.T) {
		f := testForest(t)
		f.Importances = nil
		caps := Detect(f)
		assert.True(t, caps.TreePaths)
		assert.False(t, caps.NativeImportances)
	})

	t.Run("logistic", func(t *testing.T) {
		caps := Detect(&Logistic{Coefs: []float64{1, 2}, NFeatures: 2})
		assert.False(t, caps.TreePaths)
		assert.True(t, caps.LinearCoefficients)
		assert.False(t, caps.NativeImportances)
	})
}

func TestLoad(t *testing.T) {
	write := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "model.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	t.Run("random forest artifact", func(t *testing.T) {
		path := write(t, `{
			"model_type": "random_forest",
			"n_features": 1,
			"trees": [{
				"children_left": [1, -1, -1],
				"children_right": [2, -1, -1],
				"feature": [0, -2, -2],
				"threshold": [0.5, 0, 0],
				"value": [[2, 2], [4, 0], [0, 4]]
			}],
			"feature_importances": [1.0]
		}`)

		m, caps, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 1, m.NumFeatures())
		assert.True(t, caps.TreePaths)

		// counts normalized to probabilities at load time
		assert.InDelta(t, 0.0, m.PredictProba([]float64{0.0})[1], 1e-12)
		assert.InDelta(t, 1.0, m.PredictProba([]float64{1.0})[1], 1e-12)
		assert.Equal(t, 1, m.Predict([]float64{1.0}))
	})

	t.Run("logistic regression artifact", func(t *testing.T) {
		path := write(t, `{
			"model_type": "logistic_regression",
			"coefficients": [0.5, -0.5],
			"intercept": 0.0
		}`)

		m, caps, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2, m.NumFeatures())
		assert.True(t, caps.LinearCoefficients)
		assert.InDelta(t, 0.5, m.PredictProba([]float64{0, 0})[1], 1e-12)
	})

	t.Run("unsupported model type", func(t *testing.T) {
		path := write(t, `{"model_type": "svm"}`)
		_, _, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported model type")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("corrupt forest rejected", func(t *testing.T) {
		path := write(t, `{
			"model_type": "random_forest",
			"n_features": 1,
			"trees": [{
				"children_left": [1, -1],
				"children_right": [2, -1, -1],
				"feature": [0, -2],
				"threshold": [0.5, 0],
				"value": [[1, 1], [1, 0]]
			}]
		}`)
		_, _, err := Load(path)
		require.Error(t, err)
	})
}
