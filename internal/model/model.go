package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Model is the minimal contract every loaded classifier satisfies. Instances
// are loaded once at startup and shared read-only across requests.
type Model interface {
	// Predict returns the class label for a scaled feature vector.
	Predict(x []float64) int
	// PredictProba returns [p0, p1] class probabilities.
	PredictProba(x []float64) [2]float64
	// NumFeatures returns the feature count the model was trained on.
	NumFeatures() int
}

// TreeEnsemble is the capability of models that expose their decision paths,
// enabling the exact additive attribution method.
type TreeEnsemble interface {
	// PathContributions decomposes the positive-class probability into a
	// baseline (the ensemble's root expectation) plus one signed contribution
	// per feature, such that base + sum(contrib) equals PredictProba(x)[1].
	PathContributions(x []float64) (base float64, contrib []float64)
}

// LinearModel is the capability of models with per-feature coefficients.
type LinearModel interface {
	Coefficients() []float64
	Intercept() float64
}

// FeatureImporter is the capability of models with native global importances.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// Capabilities records what a loaded model can do. Detected once at load time
// and cached alongside the model; never re-detected per request.
type Capabilities struct {
	TreePaths          bool `json:"tree_paths"`
	LinearCoefficients bool `json:"linear_coefficients"`
	NativeImportances  bool `json:"native_importances"`
}

// Detect inspects a model's capability set.
func Detect(m Model) Capabilities {
	caps := Capabilities{}

	if _, ok := m.(TreeEnsemble); ok {
		caps.TreePaths = true
	}
	if lm, ok := m.(LinearModel); ok && len(lm.Coefficients()) > 0 {
		caps.LinearCoefficients = true
	}
	if fi, ok := m.(FeatureImporter); ok && len(fi.FeatureImportances()) > 0 {
		caps.NativeImportances = true
	}

	return caps
}

// artifactHeader is decoded first to dispatch on the persisted model type.
type artifactHeader struct {
	ModelType string `json:"model_type"`
	Version   string `json:"version"`
}

// Load reads a persisted model artifact and returns the model together with
// its capability set.
func Load(path string) (Model, Capabilities, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Capabilities{}, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var header artifactHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, Capabilities{}, fmt.Errorf("failed to decode model artifact: %w", err)
	}

	var m Model
	switch header.ModelType {
	case "random_forest", "gradient_boosting":
		forest, err := loadForest(raw)
		if err != nil {
			return nil, Capabilities{}, err
		}
		m = forest
	case "logistic_regression":
		lr, err := loadLogistic(raw)
		if err != nil {
			return nil, Capabilities{}, err
		}
		m = lr
	default:
		return nil, Capabilities{}, fmt.Errorf("unsupported model type %q", header.ModelType)
	}

	return m, Detect(m), nil
}
