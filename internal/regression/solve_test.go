package regression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"

	"volcast/internal/volatility"
)

// testDataset builds a dataset from parallel predictor and response slices
// on consecutive calendar days.
func testDataset(t *testing.T, xs, ys []float64) volatility.Dataset {
	t.Helper()
	require.Equal(t, len(xs), len(ys))

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	obs := make([]volatility.Observation, len(xs))
	for i := range xs {
		obs[i] = volatility.Observation{
			Date:      base.AddDate(0, 0, i),
			Predictor: xs[i],
			Response:  ys[i],
		}
	}
	ds, err := volatility.NewDataset(obs, nil)
	require.NoError(t, err)
	require.Equal(t, len(xs), ds.Len())
	return ds
}

// testDatasetExog builds a dataset with one exogenous column.
func testDatasetExog(t *testing.T, xs, ys, exog []float64, name string) volatility.Dataset {
	t.Helper()

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	obs := make([]volatility.Observation, len(xs))
	for i := range xs {
		obs[i] = volatility.Observation{
			Date:      base.AddDate(0, 0, i),
			Predictor: xs[i],
			Response:  ys[i],
			Exog:      []float64{exog[i]},
		}
	}
	ds, err := volatility.NewDataset(obs, []string{name})
	require.NoError(t, err)
	return ds
}

func TestIsConstant(t *testing.T) {
	assert.True(t, isConstant(nil))
	assert.True(t, isConstant([]float64{3, 3, 3}))
	assert.True(t, isConstant([]float64{1e6, 1e6, 1e6}))
	assert.False(t, isConstant([]float64{1, 1.5, 1}))
	assert.False(t, isConstant([]float64{0, 1e-6}))
}

func TestSolveLeastSquaresExact(t *testing.T) {
	// y = 1 + 2x at three points, full rank.
	design := mat.NewDense(3, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
	})
	beta, err := solveLeastSquares(design, []float64{1, 3, 5})
	require.NoError(t, err)
	require.Len(t, beta, 2)
	assert.InDelta(t, 1.0, beta[0], 1e-9)
	assert.InDelta(t, 2.0, beta[1], 1e-9)
}

func TestSolveLeastSquaresRankDeficient(t *testing.T) {
	// Duplicated column; the minimum-norm solution still reproduces the
	// fitted values.
	design := mat.NewDense(3, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
	})
	beta, err := solveLeastSquares(design, []float64{2, 4, 6})
	require.NoError(t, err)
	for i, x := range []float64{1, 2, 3} {
		fitted := beta[0]*x + beta[1]*x
		assert.InDelta(t, []float64{2, 4, 6}[i], fitted, 1e-9)
	}
}

func TestSolveLeastSquaresLengthMismatch(t *testing.T) {
	design := mat.NewDense(2, 1, []float64{1, 1})
	_, err := solveLeastSquares(design, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestLogspace(t *testing.T) {
	grid := logspace(-4, 4, 9)
	require.Len(t, grid, 9)
	assert.InDelta(t, 1e-4, grid[0], 1e-12)
	assert.InDelta(t, 1.0, grid[4], 1e-9)
	assert.InDelta(t, 1e4, grid[8], 1e-6)
	for i := 1; i < len(grid); i++ {
		assert.Greater(t, grid[i], grid[i-1])
	}
}

func TestCheckPredictUnfitted(t *testing.T) {
	err := checkPredict(nil, 0, false)
	var ve *volatility.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "model", ve.Field)
}
