package regression

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"volcast/internal/volatility"
)

// LassoOptions configures the L1-penalized regression.
type LassoOptions struct {
	// Lambdas lists candidate penalties. Nil builds a log-spaced path from
	// the smallest penalty that zeroes every coefficient down three decades.
	Lambdas []float64 `json:"lambdas,omitempty"`
	// PathLen is the length of the automatic penalty path.
	PathLen int `json:"path_len"`
	// CVSplits is the number of expanding, time-ordered validation splits
	// used to choose the penalty.
	CVSplits int `json:"cv_splits"`
	// MaxIter bounds the coordinate descent sweeps per penalty.
	MaxIter int `json:"max_iter"`
	// Tolerance stops descent once no coefficient moves by more than this.
	Tolerance float64 `json:"tolerance"`
}

// DefaultLassoOptions returns a 20-step path, five validation splits, and
// the usual descent bounds.
func DefaultLassoOptions() LassoOptions {
	return LassoOptions{PathLen: 20, CVSplits: 5, MaxIter: 1000, Tolerance: 1e-7}
}

// Lasso fits L1-penalized least squares of the response on the implied
// predictor and any exogenous columns, with coefficients estimated by
// cyclic coordinate descent on standardized features. The penalty strength
// is chosen by an internal cross-validation whose splits respect time
// order, training on an expanding prefix and validating on the rows that
// follow it.
type Lasso struct {
	opts      LassoOptions
	intercept float64
	coef      []float64
	lambda    float64
	nExog     int
	fitted    bool
}

// NewLasso returns an unfitted Lasso model.
func NewLasso(opts LassoOptions) *Lasso {
	return &Lasso{opts: opts}
}

// Family returns FamilyLasso.
func (m *Lasso) Family() Family {
	return FamilyLasso
}

// Lambda returns the penalty selected during Fit.
func (m *Lasso) Lambda() float64 {
	return m.lambda
}

// Coefficients returns a copy of the fitted coefficients on the original
// feature scale, ordered as the implied predictor followed by the exogenous
// columns. Constant columns keep a zero coefficient.
func (m *Lasso) Coefficients() []float64 {
	out := make([]float64, len(m.coef))
	copy(out, m.coef)
	return out
}

// Intercept returns the fitted intercept.
func (m *Lasso) Intercept() float64 {
	return m.intercept
}

// Fit chooses the penalty on time-ordered validation splits of the training
// data, then runs coordinate descent on the full training set with the
// winning penalty.
func (m *Lasso) Fit(train volatility.Dataset) error {
	if err := checkTrain(train); err != nil {
		return err
	}

	cols := featureColumns(train)
	y := train.Responses()
	maxIter, tol := m.descentBounds()

	path := m.opts.Lambdas
	if len(path) == 0 {
		path = lambdaPath(cols, y, m.pathLen())
	}

	lambda := m.selectLambda(cols, y, path, maxIter, tol)

	st := standardizeDesign(cols, y)
	beta := coordinateDescent(st, lambda, maxIter, tol, nil)

	m.coef = make([]float64, len(cols))
	m.intercept = st.ymean
	for j := range cols {
		if st.scale[j] == 0 {
			continue
		}
		m.coef[j] = beta[j] / st.scale[j]
		m.intercept -= m.coef[j] * st.mean[j]
	}
	m.lambda = lambda
	m.nExog = len(cols) - 1
	m.fitted = true
	return nil
}

// Predict evaluates the fitted linear rule at the features of each
// observation.
func (m *Lasso) Predict(obs []volatility.Observation) ([]float64, error) {
	if err := checkPredict(obs, m.nExog, m.fitted); err != nil {
		return nil, err
	}
	out := make([]float64, len(obs))
	for i, o := range obs {
		row := observationFeatures(o)
		v := m.intercept
		for j, c := range m.coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out, nil
}

func (m *Lasso) descentBounds() (int, float64) {
	maxIter := m.opts.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}
	tol := m.opts.Tolerance
	if tol <= 0 {
		tol = 1e-7
	}
	return maxIter, tol
}

func (m *Lasso) pathLen() int {
	if m.opts.PathLen <= 0 {
		return 20
	}
	return m.opts.PathLen
}

// selectLambda scores every candidate penalty on expanding time-ordered
// splits and returns the one with the lowest mean validation error. With
// too few rows for at least two splits it returns the path midpoint.
func (m *Lasso) selectLambda(cols [][]float64, y []float64, path []float64, maxIter int, tol float64) float64 {
	if len(path) == 0 {
		return 0
	}
	if len(path) == 1 {
		return path[0]
	}

	n := len(y)
	splits := m.opts.CVSplits
	if splits <= 0 {
		splits = 5
	}
	if splits > n-1 {
		splits = n - 1
	}
	if splits < 2 {
		return path[len(path)/2]
	}

	// Split boundaries cut the rows into splits+1 contiguous segments; split
	// s trains on segments up to s and validates on segment s+1.
	bounds := make([]int, splits+2)
	for i := range bounds {
		bounds[i] = i * n / (splits + 1)
	}
	bounds[splits+1] = n

	best := path[0]
	bestScore := math.Inf(1)
	for _, lambda := range path {
		var score float64
		var folds int
		for s := 1; s <= splits; s++ {
			cut, end := bounds[s], bounds[s+1]
			if cut < 2 || end <= cut {
				continue
			}
			trainCols := make([][]float64, len(cols))
			for j := range cols {
				trainCols[j] = cols[j][:cut]
			}
			st := standardizeDesign(trainCols, y[:cut])
			beta := coordinateDescent(st, lambda, maxIter, tol, nil)

			var mse float64
			for i := cut; i < end; i++ {
				row := make([]float64, len(cols))
				for j := range cols {
					row[j] = cols[j][i]
				}
				r := y[i] - predictStandardized(st, beta, row)
				mse += r * r
			}
			score += mse / float64(end-cut)
			folds++
		}
		if folds == 0 {
			continue
		}
		score /= float64(folds)
		if score < bestScore {
			bestScore = score
			best = lambda
		}
	}
	return best
}

// standardized holds a design standardized column by column. Constant
// columns get a zero scale and are skipped by descent, so their
// coefficients stay zero.
type standardized struct {
	cols  [][]float64
	mean  []float64
	scale []float64
	ymean float64
	yc    []float64
}

func standardizeDesign(cols [][]float64, y []float64) *standardized {
	st := &standardized{
		cols:  make([][]float64, len(cols)),
		mean:  make([]float64, len(cols)),
		scale: make([]float64, len(cols)),
		ymean: stat.Mean(y, nil),
	}
	st.yc = make([]float64, len(y))
	for i, v := range y {
		st.yc[i] = v - st.ymean
	}
	for j, col := range cols {
		mean, sd := stat.MeanStdDev(col, nil)
		st.mean[j] = mean
		std := make([]float64, len(col))
		if sd > 0 && !isConstant(col) {
			st.scale[j] = sd
			for i, v := range col {
				std[i] = (v - mean) / sd
			}
		}
		st.cols[j] = std
	}
	return st
}

func predictStandardized(st *standardized, beta, row []float64) float64 {
	v := st.ymean
	for j, b := range beta {
		if st.scale[j] == 0 {
			continue
		}
		v += b * (row[j] - st.mean[j]) / st.scale[j]
	}
	return v
}

// lambdaPath builds a descending log-spaced penalty path starting at the
// smallest value that zeroes every coefficient.
func lambdaPath(cols [][]float64, y []float64, length int) []float64 {
	st := standardizeDesign(cols, y)
	n := float64(len(y))

	var lambdaMax float64
	for j, col := range st.cols {
		if st.scale[j] == 0 {
			continue
		}
		var dot float64
		for i, v := range col {
			dot += v * st.yc[i]
		}
		if a := math.Abs(dot) / n; a > lambdaMax {
			lambdaMax = a
		}
	}
	if lambdaMax == 0 {
		return nil
	}

	hi := math.Log10(lambdaMax)
	return reverse(logspace(hi-3, hi, length))
}

func reverse(v []float64) []float64 {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
	return v
}

// coordinateDescent minimizes 1/(2n)*RSS + lambda*sum|beta| by cyclic
// soft-thresholding updates, keeping the residual vector incremental.
func coordinateDescent(st *standardized, lambda float64, maxIter int, tol float64, warm []float64) []float64 {
	p := len(st.cols)
	n := len(st.yc)
	beta := make([]float64, p)
	if warm != nil {
		copy(beta, warm)
	}

	resid := make([]float64, n)
	copy(resid, st.yc)
	for j, b := range beta {
		if b == 0 {
			continue
		}
		for i, v := range st.cols[j] {
			resid[i] -= v * b
		}
	}

	norm := make([]float64, p)
	for j, col := range st.cols {
		var z float64
		for _, v := range col {
			z += v * v
		}
		norm[j] = z / float64(n)
	}

	for iter := 0; iter < maxIter; iter++ {
		var maxDelta float64
		for j := 0; j < p; j++ {
			if st.scale[j] == 0 || norm[j] == 0 {
				continue
			}
			var rho float64
			for i, v := range st.cols[j] {
				rho += v * (resid[i] + v*beta[j])
			}
			rho /= float64(n)

			next := softThreshold(rho, lambda) / norm[j]
			if delta := next - beta[j]; delta != 0 {
				for i, v := range st.cols[j] {
					resid[i] -= v * delta
				}
				if d := math.Abs(delta); d > maxDelta {
					maxDelta = d
				}
				beta[j] = next
			}
		}
		if maxDelta < tol {
			break
		}
	}
	return beta
}

func softThreshold(a, gamma float64) float64 {
	switch {
	case a > gamma:
		return a - gamma
	case a < -gamma:
		return a + gamma
	default:
		return 0
	}
}
