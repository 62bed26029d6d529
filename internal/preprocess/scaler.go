package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scaler applies the standardization fit once during training. The mean and
// scale parameters are persisted at training time and loaded verbatim; they
// are never refit at inference.
type Scaler struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// LoadScaler reads a persisted scaler artifact.
func LoadScaler(path string) (*Scaler, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scaler artifact: %w", err)
	}

	var s Scaler
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode scaler artifact: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Scaler) validate() error {
	n := len(s.FeatureNames)
	if n == 0 {
		return fmt.Errorf("scaler artifact has no feature names")
	}
	if len(s.Mean) != n || len(s.Scale) != n {
		return fmt.Errorf("scaler arrays do not match feature count %d", n)
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("scaler has zero scale for feature %q", s.FeatureNames[i])
		}
	}
	return nil
}

// Transform standardizes a raw feature vector in place-order, returning a new
// slice. The input must already be in the scaler's feature order.
func (s *Scaler) Transform(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out
}
