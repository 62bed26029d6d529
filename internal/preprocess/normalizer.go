package preprocess

import (
	"fmt"
	"math"

	apperrors "github.com/cardiolab/heart-xai/internal/errors"
	"github.com/cardiolab/heart-xai/internal/types"
)

// Normalizer coerces a raw patient record into a scaled, fixed-order feature
// vector matching the model's training schema. Constructed once at startup and
// shared read-only.
type Normalizer struct {
	schema []string
	scaler *Scaler
}

// NewNormalizer validates that the scaler's feature order covers exactly the
// known clinical fields and binds it to the normalizer.
func NewNormalizer(scaler *Scaler) (*Normalizer, error) {
	known := make(map[string]bool, len(types.FeatureSchema))
	for _, name := range types.FeatureSchema {
		known[name] = true
	}

	if len(scaler.FeatureNames) != len(types.FeatureSchema) {
		return nil, fmt.Errorf("scaler schema has %d features, expected %d",
			len(scaler.FeatureNames), len(types.FeatureSchema))
	}
	for _, name := range scaler.FeatureNames {
		if !known[name] {
			return nil, fmt.Errorf("scaler schema contains unknown feature %q", name)
		}
	}

	return &Normalizer{schema: scaler.FeatureNames, scaler: scaler}, nil
}

// Schema returns the canonical feature order.
func (n *Normalizer) Schema() []string { return n.schema }

// Normalize validates the record, orders it by the training schema and applies
// the persisted scaling transform. Missing fields are rejected, never
// defaulted.
func (n *Normalizer) Normalize(record *types.PatientRecord) ([]float64, error) {
	fields := record.Fields()

	raw := make([]float64, len(n.schema))
	for i, name := range n.schema {
		v, ok := fields[name]
		if !ok || v == nil {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("missing required field %q", name))
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("field %q must be a finite number", name))
		}
		raw[i] = *v
	}

	return n.scaler.Transform(raw), nil
}
