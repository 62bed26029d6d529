// Package xai generates post-hoc explanations for single predictions: an
// additive per-feature attribution, a sparse local surrogate view and a global
// importance view, dispatched on the loaded model's capability set.
package xai

import (
	"context"
	"errors"
	"fmt"
	"math"

	apperrors "github.com/cardiolab/heart-xai/internal/errors"
	"github.com/cardiolab/heart-xai/internal/model"
)

// Config tunes the sampling-based explainers.
type Config struct {
	// Seed fixes every RNG draw so repeated explanations are reproducible.
	Seed int64
	// KernelSamples bounds the coalitions drawn by the kernel attribution path.
	KernelSamples int
	// SurrogateSamples bounds the perturbations drawn by the local surrogate.
	SurrogateSamples int
	// TopK caps the sparse surrogate output.
	TopK int
}

// DefaultConfig returns the production defaults.
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:             seed,
		KernelSamples:    2048,
		SurrogateSamples: 1000,
		TopK:             10,
	}
}

// FeatureWeight is one sparse surrogate weight, indexed into the schema.
type FeatureWeight struct {
	Index  int
	Weight float64
}

// Explanation is the raw output of one explanation run, before response
// assembly.
type Explanation struct {
	// BaseValue is the attribution method's expectation over the background
	// reference set; Additive sums (near-)exactly to probability - BaseValue.
	BaseValue float64
	// Additive holds one signed attribution per schema feature, schema order,
	// zeros retained.
	Additive []float64
	// Sparse holds at most TopK surrogate weights in the surrogate's own
	// ranking order.
	Sparse []FeatureWeight
	// Intercept is the local surrogate model's intercept.
	Intercept float64
	// Method names the additive path used ("tree_path" or "kernel").
	Method string
}

// additiveStrategy is one of the closed set of additive attribution methods.
type additiveStrategy interface {
	name() string
	attribute(ctx context.Context, x []float64) (base float64, contrib []float64, err error)
}

// Engine computes explanations for a single model. It is built once at
// startup; if the preferred attribution path cannot be constructed that is a
// startup failure, never a silent per-request fallback.
type Engine struct {
	model      model.Model
	caps       model.Capabilities
	schema     []string
	background [][]float64
	cfg        Config

	additive additiveStrategy
	globals  []float64
}

// NewEngine validates inputs, selects the additive strategy from the model's
// cached capability set and precomputes the global importance view.
func NewEngine(m model.Model, caps model.Capabilities, schema []string, background [][]float64, cfg Config) (*Engine, error) {
	if m == nil {
		return nil, fmt.Errorf("attribution engine requires a loaded model")
	}
	if len(schema) != m.NumFeatures() {
		return nil, fmt.Errorf("schema has %d features, model expects %d",
			len(schema), m.NumFeatures())
	}
	if len(background) == 0 {
		return nil, fmt.Errorf("attribution engine requires a background reference set")
	}
	for i, row := range background {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("background row %d has %d columns, expected %d",
				i, len(row), len(schema))
		}
	}
	if cfg.KernelSamples <= 0 || cfg.SurrogateSamples <= 0 || cfg.TopK <= 0 {
		return nil, fmt.Errorf("attribution sample budgets must be positive")
	}

	e := &Engine{
		model:      m,
		caps:       caps,
		schema:     schema,
		background: background,
		cfg:        cfg,
	}

	if caps.TreePaths {
		ensemble, ok := m.(model.TreeEnsemble)
		if !ok {
			return nil, fmt.Errorf("model advertises tree paths but does not expose them")
		}
		e.additive = &treePathStrategy{ensemble: ensemble, nFeatures: len(schema)}
	} else {
		e.additive = newKernelStrategy(m, background, cfg.KernelSamples, cfg.Seed)
	}

	e.globals = globalImportance(m, caps, len(schema))

	return e, nil
}

// Method names the selected additive attribution path.
func (e *Engine) Method() string { return e.additive.name() }

// GlobalImportance returns the model-level importance view: native importances
// when exposed, |coefficients| for linear models, all zeros otherwise. Never
// fails.
func (e *Engine) GlobalImportance() []float64 {
	out := make([]float64, len(e.globals))
	copy(out, e.globals)
	return out
}

// Explain produces both attribution views for one scaled input vector. A
// failure in either view fails the whole request; there is no partial
// response.
func (e *Engine) Explain(ctx context.Context, x []float64) (*Explanation, error) {
	if len(x) != len(e.schema) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("input vector has %d features, expected %d", len(x), len(e.schema)))
	}

	base, contrib, err := e.additive.attribute(ctx, x)
	if err != nil {
		return nil, asAttributionError(fmt.Sprintf("%s attribution failed", e.additive.name()), err)
	}

	sparse, intercept, err := e.surrogate(ctx, x)
	if err != nil {
		return nil, asAttributionError("surrogate explanation failed", err)
	}

	return &Explanation{
		BaseValue: base,
		Additive:  contrib,
		Sparse:    sparse,
		Intercept: intercept,
		Method:    e.additive.name(),
	}, nil
}

// asAttributionError maps context expiry to the timeout error kind and
// everything else to AttributionError.
func asAttributionError(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("Attribution timed out", err)
	}
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr
	}
	return apperrors.NewAttributionError(msg, err)
}

func globalImportance(m model.Model, caps model.Capabilities, nFeatures int) []float64 {
	out := make([]float64, nFeatures)

	switch {
	case caps.NativeImportances:
		copy(out, m.(model.FeatureImporter).FeatureImportances())
	case caps.LinearCoefficients:
		for i, c := range m.(model.LinearModel).Coefficients() {
			out[i] = math.Abs(c)
		}
	}
	// No capability: all zeros rather than an error.

	return out
}
