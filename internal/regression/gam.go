package regression

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"volcast/internal/volatility"
)

// GAMOptions configures the penalized-spline generalized additive model.
type GAMOptions struct {
	// Knots is the number of interior knots placed at training quantiles.
	Knots int `json:"knots"`
	// LambdaGrid lists candidate smoothing penalties. Nil uses a log-spaced
	// grid from 1e-4 to 1e4.
	LambdaGrid []float64 `json:"lambda_grid,omitempty"`
}

// DefaultGAMOptions returns eight knots and the automatic penalty grid.
func DefaultGAMOptions() GAMOptions {
	return GAMOptions{Knots: 8}
}

// GAM fits a cubic regression spline of the response on the implied
// predictor using a truncated power basis, with a ridge penalty on the
// truncated terms chosen by generalized cross-validation. Exogenous columns
// are ignored; the smooth is univariate.
type GAM struct {
	opts   GAMOptions
	knots  []float64
	coef   []float64
	lambda float64
	gcv    float64
	mean   float64
	flat   bool
	fitted bool
}

// NewGAM returns an unfitted spline model.
func NewGAM(opts GAMOptions) *GAM {
	return &GAM{opts: opts}
}

// Family returns FamilyGAM.
func (m *GAM) Family() Family {
	return FamilyGAM
}

// Lambda returns the penalty selected by GCV during Fit.
func (m *GAM) Lambda() float64 {
	return m.lambda
}

// Fit places knots at training quantiles, then solves the penalized least
// squares system for every candidate penalty and keeps the one minimizing
// the GCV score. A flat predictor leaves nothing to smooth and degrades to
// predicting the training mean response.
func (m *GAM) Fit(train volatility.Dataset) error {
	if err := checkTrain(train); err != nil {
		return err
	}

	x := train.Predictors()
	y := train.Responses()
	n := len(x)

	m.flat = isConstant(x)
	m.mean = stat.Mean(y, nil)
	if m.flat {
		m.knots = nil
		m.coef = nil
		m.fitted = true
		return nil
	}

	m.knots = quantileKnots(x, m.opts.Knots)
	p := 4 + len(m.knots)

	basis := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		basis.SetRow(i, splineRow(x[i], m.knots))
	}
	bt := mat.DenseCopyOf(basis.T())

	// Right-hand sides for the penalized solve: B'y in the first column,
	// then B' itself so the hat-matrix trace comes from the same solve.
	rhs := mat.NewDense(p, n+1, nil)
	for j := 0; j < p; j++ {
		var v float64
		for i := 0; i < n; i++ {
			v += bt.At(j, i) * y[i]
		}
		rhs.Set(j, 0, v)
		for i := 0; i < n; i++ {
			rhs.Set(j, 1+i, bt.At(j, i))
		}
	}

	var gram mat.Dense
	gram.Mul(basis.T(), basis)

	grid := m.opts.LambdaGrid
	if len(grid) == 0 {
		grid = logspace(-4, 4, 9)
	}

	bestGCV := math.Inf(1)
	var bestCoef []float64
	var bestLambda float64
	for _, lambda := range grid {
		coef, edf, err := solvePenalized(&gram, rhs, bt, lambda, p, n)
		if err != nil {
			continue
		}
		if edf >= float64(n) {
			continue
		}

		var rss float64
		for i := 0; i < n; i++ {
			var fit float64
			for j := 0; j < p; j++ {
				fit += basis.At(i, j) * coef[j]
			}
			r := y[i] - fit
			rss += r * r
		}
		gcv := float64(n) * rss / ((float64(n) - edf) * (float64(n) - edf))
		if gcv < bestGCV {
			bestGCV = gcv
			bestCoef = coef
			bestLambda = lambda
		}
	}
	if bestCoef == nil {
		return fmt.Errorf("gam fit: no admissible penalty in grid of %d", len(grid))
	}

	m.coef = bestCoef
	m.lambda = bestLambda
	m.gcv = bestGCV
	m.fitted = true
	return nil
}

// solvePenalized solves (B'B + lambda*D)a = rhs where D penalizes only the
// truncated basis terms, and returns the coefficient column together with
// the effective degrees of freedom tr(H).
func solvePenalized(gram *mat.Dense, rhs, bt *mat.Dense, lambda float64, p, n int) ([]float64, float64, error) {
	a := mat.DenseCopyOf(gram)
	for j := 4; j < p; j++ {
		a.Set(j, j, a.At(j, j)+lambda)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, 0, fmt.Errorf("svd factorization failed")
	}
	rank := svd.Rank(svdRankTolerance)
	if rank == 0 {
		return nil, 0, fmt.Errorf("penalized system has zero rank")
	}
	var sol mat.Dense
	svd.SolveTo(&sol, rhs, rank)

	coef := make([]float64, p)
	for j := 0; j < p; j++ {
		coef[j] = sol.At(j, 0)
	}

	var edf float64
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			edf += bt.At(j, i) * sol.At(j, 1+i)
		}
	}
	return coef, edf, nil
}

// Predict evaluates the spline at each observation's predictor. Outside the
// training range the truncated cubics keep growing, so extrapolated values
// degrade with distance from the fitted support. They are returned, not
// rejected.
func (m *GAM) Predict(obs []volatility.Observation) ([]float64, error) {
	if !m.fitted {
		return nil, &volatility.ValidationError{Field: "model", Message: "model has not been fitted"}
	}

	out := make([]float64, len(obs))
	for i, o := range obs {
		if m.flat {
			out[i] = m.mean
			continue
		}
		row := splineRow(o.Predictor, m.knots)
		var v float64
		for j, c := range m.coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out, nil
}

// splineRow returns the truncated power basis row [1, x, x^2, x^3,
// (x-k1)^3+, ...] for a single predictor value.
func splineRow(x float64, knots []float64) []float64 {
	row := make([]float64, 4+len(knots))
	row[0] = 1
	row[1] = x
	row[2] = x * x
	row[3] = x * x * x
	for j, k := range knots {
		if d := x - k; d > 0 {
			row[4+j] = d * d * d
		}
	}
	return row
}

// quantileKnots places up to count knots at evenly spaced quantiles of x,
// keeping only strictly interior, strictly increasing values.
func quantileKnots(x []float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	knots := make([]float64, 0, count)
	for j := 1; j <= count; j++ {
		k := stat.Quantile(float64(j)/float64(count+1), stat.Empirical, sorted, nil)
		if k <= lo || k >= hi {
			continue
		}
		if len(knots) > 0 && k-knots[len(knots)-1] <= 1e-12 {
			continue
		}
		knots = append(knots, k)
	}
	return knots
}

// logspace returns count values spaced evenly in log10 between 10^lo and
// 10^hi inclusive.
func logspace(lo, hi float64, count int) []float64 {
	if count == 1 {
		return []float64{math.Pow(10, lo)}
	}
	out := make([]float64, count)
	step := (hi - lo) / float64(count-1)
	for i := range out {
		out[i] = math.Pow(10, lo+float64(i)*step)
	}
	return out
}
