package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"volcast/internal/volatility"
)

// svdRankTolerance is the relative singular-value cutoff used when solving
// least-squares systems. Singular values below this fraction of the largest
// are treated as zero.
const svdRankTolerance = 1e-12

// featureColumns returns the design columns of a dataset in column-major
// order: the implied predictor first, then the exogenous columns in dataset
// order.
func featureColumns(ds volatility.Dataset) [][]float64 {
	n := ds.Len()
	cols := make([][]float64, 1+len(ds.ExogNames()))
	cols[0] = ds.Predictors()
	for j := 1; j < len(cols); j++ {
		cols[j] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		o := ds.At(i)
		for j, v := range o.Exog {
			cols[1+j][i] = v
		}
	}
	return cols
}

// observationFeatures returns the feature row of a single observation in the
// same column order as featureColumns.
func observationFeatures(o volatility.Observation) []float64 {
	row := make([]float64, 1+len(o.Exog))
	row[0] = o.Predictor
	copy(row[1:], o.Exog)
	return row
}

// isConstant reports whether a column carries no variation. The comparison
// uses an absolute tolerance scaled by the column magnitude.
func isConstant(col []float64) bool {
	if len(col) == 0 {
		return true
	}
	lo, hi := col[0], col[0]
	for _, v := range col[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := math.Max(math.Abs(lo), math.Abs(hi))
	return hi-lo <= 1e-12*(1+scale)
}

// designWithIntercept assembles a dense design matrix with a leading ones
// column from column-major features.
func designWithIntercept(cols [][]float64, n int) *mat.Dense {
	design := mat.NewDense(n, 1+len(cols), nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j, col := range cols {
			design.Set(i, 1+j, col[i])
		}
	}
	return design
}

// solveLeastSquares returns the minimum-norm least-squares solution of
// x*beta = y using a singular value decomposition with a rank tolerance, so
// rank-deficient systems solve without error.
func solveLeastSquares(x *mat.Dense, y []float64) ([]float64, error) {
	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("design has %d rows but response has %d", rows, len(y))
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("svd factorization failed")
	}
	rank := svd.Rank(svdRankTolerance)
	if rank == 0 {
		return nil, fmt.Errorf("design matrix has zero rank")
	}

	var sol mat.Dense
	svd.SolveTo(&sol, mat.NewVecDense(rows, y), rank)

	beta := make([]float64, cols)
	for j := 0; j < cols; j++ {
		beta[j] = sol.At(j, 0)
	}
	return beta, nil
}

// checkTrain validates a training dataset for a model fit.
func checkTrain(ds volatility.Dataset) error {
	if ds.Len() < volatility.MinObservationsForFit {
		return &volatility.ValidationError{
			Field:   "train",
			Message: fmt.Sprintf("training dataset needs at least %d observations, got %d", volatility.MinObservationsForFit, ds.Len()),
			Value:   ds.Len(),
		}
	}
	return nil
}

// checkPredict validates prediction inputs against the feature width the
// model was trained with.
func checkPredict(obs []volatility.Observation, nExog int, fitted bool) error {
	if !fitted {
		return &volatility.ValidationError{
			Field:   "model",
			Message: "model has not been fitted",
		}
	}
	for i, o := range obs {
		if len(o.Exog) != nExog {
			return &volatility.ValidationError{
				Field:   "exog",
				Message: fmt.Sprintf("observation %d has %d exogenous values, model was trained with %d", i, len(o.Exog), nExog),
				Value:   len(o.Exog),
			}
		}
	}
	return nil
}
