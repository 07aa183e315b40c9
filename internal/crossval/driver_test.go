package crossval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcast/internal/regression"
	"volcast/internal/volatility"
)

// lineDataset builds n observations of an exact line so any training subset
// fits it perfectly.
func lineDataset(t *testing.T, n int) volatility.Dataset {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	obs := make([]volatility.Observation, n)
	for i := 0; i < n; i++ {
		x := 10 + float64(i%9)
		obs[i] = volatility.Observation{
			Date:      base.AddDate(0, 0, i),
			Predictor: x,
			Response:  0.5 + 3*x,
		}
	}
	ds, err := volatility.NewDataset(obs, nil)
	require.NoError(t, err)
	return ds
}

func TestRunTwoFoldToy(t *testing.T) {
	// Response equals predictor, so every two-row training fold fits the
	// held-out rows perfectly.
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	values := []float64{0.1, 0.2, 0.3, 0.4}
	obs := make([]volatility.Observation, len(values))
	for i, v := range values {
		obs[i] = volatility.Observation{Date: base.AddDate(0, 0, i), Predictor: v, Response: v}
	}
	ds, err := volatility.NewDataset(obs, nil)
	require.NoError(t, err)

	res, err := Run(context.Background(), ds, regression.FamilyLinear, Options{K: 2, Mode: ModeShuffled, Seed: 5})
	require.NoError(t, err)

	require.Len(t, res.Folds, 2)
	for _, fold := range res.Folds {
		assert.Equal(t, 2, fold.TrainSize)
		assert.Equal(t, 2, fold.TestSize)
		assert.InDelta(t, 0.0, fold.RMSE, 1e-9)
	}
	assert.InDelta(t, 0.0, res.MeanRMSE, 1e-9)
	assert.InDelta(t, 0.0, res.BestRMSE, 1e-9)
}

func TestRunFoldTable(t *testing.T) {
	ds := lineDataset(t, 30)

	res, err := Run(context.Background(), ds, regression.FamilyLinear, Options{K: 5, Mode: ModeShuffled, Seed: 11})
	require.NoError(t, err)

	require.Len(t, res.Folds, 5)
	for i, fold := range res.Folds {
		assert.Equal(t, i+1, fold.Fold)
		assert.Equal(t, 30, fold.TrainSize+fold.TestSize)
	}
	assert.Equal(t, regression.FamilyLinear, res.Family)
	assert.Equal(t, ModeShuffled, res.Mode)
	assert.Equal(t, 5, res.K)
	assert.Equal(t, int64(11), res.Seed)
}

func TestRunDefaultFoldCount(t *testing.T) {
	ds := lineDataset(t, 40)

	res, err := Run(context.Background(), ds, regression.FamilyLinear, Options{Mode: ModeShuffled, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, DefaultK, res.K)
	assert.Len(t, res.Folds, DefaultK)
}

func TestRunBestTrainMatchesBestFold(t *testing.T) {
	ds := lineDataset(t, 25)
	opts := Options{K: 5, Mode: ModeShuffled, Seed: 17}

	res, err := Run(context.Background(), ds, regression.FamilyLinear, opts)
	require.NoError(t, err)

	// Rebuild the layout from the recorded seed and check the best fold's
	// training rows are exactly what the result carries.
	folds, err := Assign(ds.Len(), res.K, res.Mode, res.Seed)
	require.NoError(t, err)

	var bestTest int
	found := false
	for _, fold := range folds {
		if fold.Index != res.BestFold {
			continue
		}
		found = true
		bestTest = len(fold.Test)
		assert.Equal(t, ds.Subset(fold.Train).Dates(), res.BestTrain.Dates())
	}
	require.True(t, found)
	assert.Equal(t, ds.Len(), res.BestTrain.Len()+bestTest, "best training subset and its test fold cover the dataset")
}

func TestRunMeanIsFoldAverage(t *testing.T) {
	// Noisy responses give every fold a strictly positive RMSE.
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	obs := make([]volatility.Observation, 24)
	for i := range obs {
		x := 10 + float64(i%6)
		noise := 0.5
		if i%2 == 0 {
			noise = -0.5
		}
		obs[i] = volatility.Observation{
			Date:      base.AddDate(0, 0, i),
			Predictor: x,
			Response:  5 + 2*x + noise,
		}
	}
	ds, err := volatility.NewDataset(obs, nil)
	require.NoError(t, err)

	res, err := Run(context.Background(), ds, regression.FamilyLinear, Options{K: 4, Mode: ModeShuffled, Seed: 29})
	require.NoError(t, err)

	var sum float64
	for _, fold := range res.Folds {
		assert.Greater(t, fold.RMSE, 0.0)
		sum += fold.RMSE
	}
	assert.InDelta(t, sum/float64(len(res.Folds)), res.MeanRMSE, 1e-12)
	assert.LessOrEqual(t, res.BestRMSE, res.MeanRMSE)
}

func TestRunExpandingMode(t *testing.T) {
	ds := lineDataset(t, 24)

	res, err := Run(context.Background(), ds, regression.FamilyLinear, Options{K: 3, Mode: ModeExpanding})
	require.NoError(t, err)

	require.Len(t, res.Folds, 3)
	assert.Equal(t, 6, res.Folds[0].TrainSize)
	assert.Equal(t, 12, res.Folds[1].TrainSize)
	assert.Equal(t, 18, res.Folds[2].TrainSize)
	for _, fold := range res.Folds {
		assert.Equal(t, 6, fold.TestSize)
		assert.InDelta(t, 0.0, fold.RMSE, 1e-9)
	}
}

func TestRunSARIMAXExpanding(t *testing.T) {
	ds := lineDataset(t, 60)

	res, err := Run(context.Background(), ds, regression.FamilySARIMAX, Options{K: 3, Mode: ModeExpanding})
	require.NoError(t, err)
	assert.Less(t, res.MeanRMSE, 0.05)
}

func TestRunFitErrorNamesFoldAndFamily(t *testing.T) {
	// The first expanding fold trains on 6 rows, too few for the default
	// seasonal orders.
	ds := lineDataset(t, 24)

	_, err := Run(context.Background(), ds, regression.FamilySARIMAX, Options{K: 3, Mode: ModeExpanding})
	require.Error(t, err)
	assert.ErrorContains(t, err, "fold 1: fit sarimax model")
}

func TestRunEmptyDataset(t *testing.T) {
	var empty volatility.Dataset
	_, err := Run(context.Background(), empty, regression.FamilyLinear, DefaultOptions())
	var ve *volatility.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "dataset", ve.Field)
}

func TestRunMoreFoldsThanRows(t *testing.T) {
	ds := lineDataset(t, 5)
	_, err := Run(context.Background(), ds, regression.FamilyLinear, Options{K: 10, Mode: ModeShuffled, Seed: 1})
	var ve *volatility.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "k", ve.Field)
}

func TestRunContextCancelled(t *testing.T) {
	ds := lineDataset(t, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, ds, regression.FamilyLinear, Options{K: 4, Mode: ModeShuffled, Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFamiliesSharesSeed(t *testing.T) {
	ds := lineDataset(t, 30)
	families := []regression.Family{regression.FamilyLinear, regression.FamilyLasso}

	results, err := RunFamilies(context.Background(), ds, families, Options{K: 5, Mode: ModeShuffled})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, regression.FamilyLinear, results[0].Family)
	assert.Equal(t, regression.FamilyLasso, results[1].Family)
	assert.Equal(t, results[0].Seed, results[1].Seed, "families are compared on the same fold layout")
	assert.InDelta(t, 0.0, results[0].MeanRMSE, 1e-9)
	assert.Less(t, results[1].MeanRMSE, 0.2)
}
