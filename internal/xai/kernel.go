package xai

import (
	"context"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/cardiolab/heart-xai/internal/model"
)

// kernelStrategy is the generic additive path for models without native
// attribution structure. It samples feature coalitions weighted by the Shapley
// kernel, evaluates each coalition against the bounded background reference
// set, and recovers per-feature attributions from a constrained least-squares
// fit. Slower than the tree path but model-agnostic.
type kernelStrategy struct {
	model      model.Model
	background [][]float64
	nsamples   int
	seed       int64

	// ridge stabilizes the normal-equations solve when sampled coalitions are
	// nearly collinear.
	ridge float64
}

func newKernelStrategy(m model.Model, background [][]float64, nsamples int, seed int64) *kernelStrategy {
	return &kernelStrategy{
		model:      m,
		background: background,
		nsamples:   nsamples,
		seed:       seed,
		ridge:      1e-8,
	}
}

func (s *kernelStrategy) name() string { return "kernel" }

func (s *kernelStrategy) attribute(ctx context.Context, x []float64) (float64, []float64, error) {
	m := len(x)
	if m < 2 {
		return 0, nil, fmt.Errorf("kernel attribution needs at least 2 features, got %d", m)
	}

	// Fresh deterministic RNG per call: reproducible under the fixed seed and
	// safe for concurrent requests.
	rng := rand.New(rand.NewSource(s.seed))

	base := s.expectedValue()
	fx := s.model.PredictProba(x)[1]

	sizeDist := shapleySizeDistribution(m)

	coalitions := make([][]bool, s.nsamples)
	targets := make([]float64, s.nsamples)

	for j := 0; j < s.nsamples; j++ {
		if j%64 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, nil, err
			}
		}

		size := sampleSize(rng, sizeDist)
		z := make([]bool, m)
		for _, idx := range rng.Perm(m)[:size] {
			z[idx] = true
		}

		coalitions[j] = z
		targets[j] = s.coalitionValue(x, z)
	}

	contrib, err := solveAttributions(coalitions, targets, base, fx, s.ridge)
	if err != nil {
		return 0, nil, err
	}
	return base, contrib, nil
}

// expectedValue is the mean positive-class probability over the background
// set: the baseline the attributions are measured against.
func (s *kernelStrategy) expectedValue() float64 {
	sum := 0.0
	for _, row := range s.background {
		sum += s.model.PredictProba(row)[1]
	}
	return sum / float64(len(s.background))
}

// coalitionValue evaluates a masked input averaged over the background set:
// present features keep the instance value, absent ones are imputed from each
// background row in turn.
func (s *kernelStrategy) coalitionValue(x []float64, z []bool) float64 {
	masked := make([]float64, len(x))
	sum := 0.0

	for _, row := range s.background {
		for i := range x {
			if z[i] {
				masked[i] = x[i]
			} else {
				masked[i] = row[i]
			}
		}
		sum += s.model.PredictProba(masked)[1]
	}
	return sum / float64(len(s.background))
}

// shapleySizeDistribution returns the cumulative distribution over coalition
// sizes 1..m-1 induced by the Shapley kernel weight (m-1)/(s*(m-s)). Sampling
// sizes from this distribution and subsets uniformly within a size folds the
// kernel weight into the sampling frequency, so the regression itself is
// unweighted.
func shapleySizeDistribution(m int) []float64 {
	weights := make([]float64, m-1)
	total := 0.0
	for sz := 1; sz < m; sz++ {
		w := float64(m-1) / (float64(sz) * float64(m-sz))
		weights[sz-1] = w
		total += w
	}

	cdf := make([]float64, m-1)
	acc := 0.0
	for i, w := range weights {
		acc += w / total
		cdf[i] = acc
	}
	cdf[m-2] = 1.0
	return cdf
}

func sampleSize(rng *rand.Rand, cdf []float64) int {
	u := rng.Float64()
	for i, c := range cdf {
		if u <= c {
			return i + 1
		}
	}
	return len(cdf)
}

// solveAttributions recovers attributions from sampled coalitions under the
// additivity constraint sum(phi) == fx - base. The constraint is enforced by
// eliminating the last feature from the regression and reconstructing it from
// the residual of the sum.
func solveAttributions(coalitions [][]bool, targets []float64, base, fx, ridge float64) ([]float64, error) {
	n := len(coalitions)
	m := len(coalitions[0])
	cols := m - 1

	xData := make([]float64, n*cols)
	yData := make([]float64, n)

	for j, z := range coalitions {
		last := 0.0
		if z[m-1] {
			last = 1.0
		}
		for k := 0; k < cols; k++ {
			zk := 0.0
			if z[k] {
				zk = 1.0
			}
			xData[j*cols+k] = zk - last
		}
		yData[j] = targets[j] - base - last*(fx-base)
	}

	X := mat.NewDense(n, cols, xData)
	y := mat.NewVecDense(n, yData)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	for i := 0; i < cols; i++ {
		xtx.Set(i, i, xtx.At(i, i)+ridge)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("kernel regression solve failed: %w", err)
	}

	contrib := make([]float64, m)
	sum := 0.0
	for k := 0; k < cols; k++ {
		contrib[k] = beta.AtVec(k)
		sum += contrib[k]
	}
	contrib[m-1] = (fx - base) - sum

	return contrib, nil
}
