package regression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcast/internal/volatility"
)

func TestLassoRecoversStrongSignal(t *testing.T) {
	n := 80
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = 10 + 0.25*float64(i%16)
		ys[i] = 1 + 3*xs[i]
	}
	ds := testDataset(t, xs, ys)

	model := NewLasso(DefaultLassoOptions())
	require.NoError(t, model.Fit(ds))
	assert.Equal(t, FamilyLasso, model.Family())
	assert.Greater(t, model.Lambda(), 0.0)

	coef := model.Coefficients()
	require.Len(t, coef, 1)
	assert.InDelta(t, 3.0, coef[0], 0.1)
	assert.InDelta(t, 1.0, model.Intercept(), 1.5)

	preds, err := model.Predict(ds.Observations())
	require.NoError(t, err)
	for i, p := range preds {
		assert.InDelta(t, ys[i], p, 0.25)
	}
}

func TestLassoShrinksIrrelevantColumn(t *testing.T) {
	// The exogenous column is pure noise orthogonal-ish to the target; its
	// coefficient should shrink to a small fraction of the real one.
	n := 60
	xs := make([]float64, n)
	exog := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = 5 + 0.5*float64(i%10)
		exog[i] = math.Sin(float64(i) * 1.7)
		ys[i] = 2 * xs[i]
	}
	ds := testDatasetExog(t, xs, ys, exog, "noise")

	model := NewLasso(DefaultLassoOptions())
	require.NoError(t, model.Fit(ds))

	coef := model.Coefficients()
	require.Len(t, coef, 2)
	assert.InDelta(t, 2.0, coef[0], 0.1)
	assert.Less(t, math.Abs(coef[1]), 0.1)
}

func TestLassoConstantPredictorZeroCoefficients(t *testing.T) {
	xs := []float64{9, 9, 9, 9, 9, 9}
	ys := []float64{1, 2, 3, 4, 5, 6}
	ds := testDataset(t, xs, ys)

	model := NewLasso(DefaultLassoOptions())
	require.NoError(t, model.Fit(ds))

	coef := model.Coefficients()
	assert.Equal(t, 0.0, coef[0])
	assert.InDelta(t, 3.5, model.Intercept(), 1e-9)

	preds, err := model.Predict([]volatility.Observation{{Predictor: 9}, {Predictor: 90}})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, preds[0], 1e-9)
	assert.InDelta(t, 3.5, preds[1], 1e-9)
}

func TestLassoFixedLambdaGrid(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	ys := []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}
	ds := testDataset(t, xs, ys)

	model := NewLasso(LassoOptions{Lambdas: []float64{0.01}, CVSplits: 3, MaxIter: 500, Tolerance: 1e-8})
	require.NoError(t, model.Fit(ds))
	assert.InDelta(t, 0.01, model.Lambda(), 1e-12)
	assert.InDelta(t, 2.0, model.Coefficients()[0], 0.1)
}

func TestSoftThreshold(t *testing.T) {
	assert.Equal(t, 0.5, softThreshold(1.0, 0.5))
	assert.Equal(t, -0.5, softThreshold(-1.0, 0.5))
	assert.Equal(t, 0.0, softThreshold(0.3, 0.5))
	assert.Equal(t, 0.0, softThreshold(-0.3, 0.5))
}

func TestLambdaPathDescends(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6}
	ys := []float64{2, 4, 6, 8, 10, 12}
	cols := [][]float64{xs}
	path := lambdaPath(cols, ys, 10)
	require.Len(t, path, 10)
	for i := 1; i < len(path); i++ {
		assert.Less(t, path[i], path[i-1])
	}

	flat := lambdaPath([][]float64{{3, 3, 3}}, []float64{1, 2, 3}, 10)
	assert.Nil(t, flat)
}

func TestLassoTooFewObservations(t *testing.T) {
	ds := testDataset(t, []float64{1}, []float64{3})
	var ve *volatility.ValidationError
	err := NewLasso(DefaultLassoOptions()).Fit(ds)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "train", ve.Field)
}
