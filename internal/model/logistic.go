package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// Logistic is a binary logistic-regression classifier over scaled features.
type Logistic struct {
	Coefs     []float64 `json:"coefficients"`
	Bias      float64   `json:"intercept"`
	NFeatures int       `json:"n_features"`
}

func loadLogistic(raw []byte) (*Logistic, error) {
	var lr Logistic
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, fmt.Errorf("failed to decode logistic artifact: %w", err)
	}
	if len(lr.Coefs) == 0 {
		return nil, fmt.Errorf("logistic artifact has no coefficients")
	}
	if lr.NFeatures == 0 {
		lr.NFeatures = len(lr.Coefs)
	}
	if lr.NFeatures != len(lr.Coefs) {
		return nil, fmt.Errorf("coefficient length %d does not match n_features %d",
			len(lr.Coefs), lr.NFeatures)
	}
	return &lr, nil
}

// NumFeatures implements Model.
func (l *Logistic) NumFeatures() int { return l.NFeatures }

// PredictProba implements Model.
func (l *Logistic) PredictProba(x []float64) [2]float64 {
	z := l.Bias
	for i, c := range l.Coefs {
		z += c * x[i]
	}
	p1 := 1 / (1 + math.Exp(-z))
	return [2]float64{1 - p1, p1}
}

// Predict implements Model.
func (l *Logistic) Predict(x []float64) int {
	if l.PredictProba(x)[1] >= 0.5 {
		return 1
	}
	return 0
}

// Coefficients implements LinearModel.
func (l *Logistic) Coefficients() []float64 { return l.Coefs }

// Intercept implements LinearModel.
func (l *Logistic) Intercept() float64 { return l.Bias }
