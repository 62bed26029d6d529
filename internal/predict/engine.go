package predict

import (
	apperrors "github.com/cardiolab/heart-xai/internal/errors"
	"github.com/cardiolab/heart-xai/internal/model"
)

// Threshold is the fixed decision boundary for the positive class. Not
// configurable per request.
const Threshold = 0.5

// Risk tier boundaries, inclusive on the lower bound of each tier.
const (
	highRiskBound   = 0.7
	mediumRiskBound = 0.3
)

// Result is the outcome of a single prediction.
type Result struct {
	Label       int
	Probability float64
	RiskLevel   string
}

// Engine wraps the trained classifier for single-vector inference. The model
// reference is set once at startup; a nil model degrades every call to
// ModelUnavailableError instead of crashing.
type Engine struct {
	model model.Model
}

// NewEngine creates a prediction engine. A nil model is accepted so the
// process can come up in a not-ready state.
func NewEngine(m model.Model) *Engine {
	return &Engine{model: m}
}

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool { return e != nil && e.model != nil }

// Predict returns the class label, positive-class probability and risk tier
// for a scaled feature vector.
func (e *Engine) Predict(vector []float64) (Result, error) {
	if !e.Ready() {
		return Result{}, apperrors.NewModelUnavailableError()
	}

	probs := e.model.PredictProba(vector)
	p := probs[1]

	label := 0
	if p >= Threshold {
		label = 1
	}

	return Result{
		Label:       label,
		Probability: p,
		RiskLevel:   RiskLevel(p),
	}, nil
}

// RiskLevel buckets a probability into the three display tiers.
func RiskLevel(p float64) string {
	switch {
	case p >= highRiskBound:
		return "High"
	case p >= mediumRiskBound:
		return "Medium"
	default:
		return "Low"
	}
}
