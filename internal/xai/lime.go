package xai

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// surrogate fits the sparse local explanation: gaussian perturbations drawn
// around the background distribution, weighted by proximity to the instance,
// fit with a weighted ridge regression. The top-K features by the surrogate's
// own weight ranking are reported; the assembler leaves their order untouched.
func (e *Engine) surrogate(ctx context.Context, x []float64) ([]FeatureWeight, float64, error) {
	m := len(x)
	n := e.cfg.SurrogateSamples

	rng := rand.New(rand.NewSource(e.cfg.Seed))

	mean, std := columnStats(e.background)

	// First sample is the instance itself; the rest perturb around the data
	// distribution, with locality enforced by the proximity kernel.
	samples := make([][]float64, n)
	labels := make([]float64, n)
	weights := make([]float64, n)

	kernelWidth := math.Sqrt(float64(m)) * 0.75

	for j := 0; j < n; j++ {
		if j%128 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		var z []float64
		if j == 0 {
			z = append([]float64(nil), x...)
		} else {
			z = make([]float64, m)
			for i := 0; i < m; i++ {
				z[i] = mean[i] + rng.NormFloat64()*std[i]
			}
		}

		samples[j] = z
		labels[j] = e.model.PredictProba(z)[1]

		d := euclidean(x, z)
		weights[j] = math.Sqrt(math.Exp(-(d * d) / (kernelWidth * kernelWidth)))
	}

	all := make([]int, m)
	for i := range all {
		all[i] = i
	}

	// First pass over all features ranks them; the sparse model is then refit
	// on the selected subset only.
	coefs, _, err := weightedRidge(samples, labels, weights, all)
	if err != nil {
		return nil, 0, err
	}

	k := e.cfg.TopK
	if m < k {
		k = m
	}
	selected := topKByMagnitude(coefs, all, k)

	refit, intercept, err := weightedRidge(samples, labels, weights, selected)
	if err != nil {
		return nil, 0, err
	}

	out := make([]FeatureWeight, len(selected))
	for i, idx := range selected {
		out[i] = FeatureWeight{Index: idx, Weight: refit[i]}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Weight) > math.Abs(out[b].Weight)
	})

	return out, intercept, nil
}

// weightedRidge solves a proximity-weighted ridge regression over the given
// feature subset, returning per-feature coefficients and the intercept. The
// intercept column is not penalized.
func weightedRidge(samples [][]float64, labels, weights []float64, features []int) ([]float64, float64, error) {
	n := len(samples)
	p := len(features)
	cols := p + 1 // leading intercept column

	const alpha = 1.0

	xData := make([]float64, n*cols)
	for j, z := range samples {
		xData[j*cols] = 1.0
		for i, idx := range features {
			xData[j*cols+1+i] = z[idx]
		}
	}

	X := mat.NewDense(n, cols, xData)
	W := mat.NewDiagDense(n, weights)
	y := mat.NewVecDense(n, labels)

	var xtw mat.Dense
	xtw.Mul(X.T(), W)

	var xtwx mat.Dense
	xtwx.Mul(&xtw, X)
	for i := 1; i < cols; i++ {
		xtwx.Set(i, i, xtwx.At(i, i)+alpha)
	}

	var xtwy mat.VecDense
	xtwy.MulVec(&xtw, y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtwx, &xtwy); err != nil {
		return nil, 0, fmt.Errorf("surrogate regression solve failed: %w", err)
	}

	coefs := make([]float64, p)
	for i := 0; i < p; i++ {
		coefs[i] = beta.AtVec(i + 1)
	}
	return coefs, beta.AtVec(0), nil
}

// topKByMagnitude returns the k feature indices with the largest absolute
// coefficients, ties broken by schema order.
func topKByMagnitude(coefs []float64, features []int, k int) []int {
	pos := make([]int, len(features))
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(a, b int) bool {
		return math.Abs(coefs[pos[a]]) > math.Abs(coefs[pos[b]])
	})

	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = features[pos[i]]
	}
	return out
}

func columnStats(rows [][]float64) (mean, std []float64) {
	m := len(rows[0])
	mean = make([]float64, m)
	std = make([]float64, m)

	for _, row := range rows {
		for i, v := range row {
			mean[i] += v
		}
	}
	n := float64(len(rows))
	for i := range mean {
		mean[i] /= n
	}

	for _, row := range rows {
		for i, v := range row {
			d := v - mean[i]
			std[i] += d * d
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
		if std[i] == 0 {
			std[i] = 1
		}
	}
	return mean, std
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
