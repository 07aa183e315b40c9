package volatility

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowString(t *testing.T) {
	tests := []struct {
		window   Window
		expected string
	}{
		{Window5, "5d"},
		{Window21, "21d"},
		{Window63, "63d"},
		{Window(10), "10d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.window.String())
			assert.Equal(t, int(tt.window), tt.window.Days())
		})
	}
}

func TestObservationIsValid(t *testing.T) {
	base := Observation{Date: day(2024, 3, 1), Predictor: 0.15, Response: 0.18}

	tests := []struct {
		name   string
		modify func(o *Observation)
		valid  bool
	}{
		{
			name:   "valid observation",
			modify: func(o *Observation) {},
			valid:  true,
		},
		{
			name:   "zero date",
			modify: func(o *Observation) { o.Date = time.Time{} },
			valid:  false,
		},
		{
			name:   "NaN predictor",
			modify: func(o *Observation) { o.Predictor = math.NaN() },
			valid:  false,
		},
		{
			name:   "Inf response",
			modify: func(o *Observation) { o.Response = math.Inf(1) },
			valid:  false,
		},
		{
			name:   "negative predictor",
			modify: func(o *Observation) { o.Predictor = -0.01 },
			valid:  false,
		},
		{
			name:   "negative response",
			modify: func(o *Observation) { o.Response = -0.2 },
			valid:  false,
		},
		{
			name:   "NaN exogenous value",
			modify: func(o *Observation) { o.Exog = []float64{0.1, math.NaN()} },
			valid:  false,
		},
		{
			name:   "negative exogenous value is allowed",
			modify: func(o *Observation) { o.Exog = []float64{-0.02} },
			valid:  true,
		},
		{
			name:   "zero volatilities are allowed",
			modify: func(o *Observation) { o.Predictor = 0; o.Response = 0 },
			valid:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base
			tt.modify(&o)
			assert.Equal(t, tt.valid, o.IsValid())
		})
	}
}

func TestNewDatasetRemovesMissingAndSorts(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, 3, 4), Predictor: 0.22, Response: 0.20},
		{Date: day(2024, 3, 1), Predictor: 0.18, Response: 0.19},
		{Date: day(2024, 3, 2), Predictor: math.NaN(), Response: 0.21},
		{Date: day(2024, 3, 3), Predictor: 0.20, Response: math.NaN()},
	}

	ds, err := NewDataset(obs, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, day(2024, 3, 1), ds.At(0).Date)
	assert.Equal(t, day(2024, 3, 4), ds.At(1).Date)
	assert.Equal(t, []float64{0.18, 0.22}, ds.Predictors())
	assert.Equal(t, []float64{0.19, 0.20}, ds.Responses())
}

func TestNewDatasetDuplicateDate(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, 3, 1), Predictor: 0.18, Response: 0.19},
		{Date: day(2024, 3, 1), Predictor: 0.20, Response: 0.21},
	}

	_, err := NewDataset(obs, nil)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date", verr.Field)
}

func TestNewDatasetExogWidthMismatch(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, 3, 1), Predictor: 0.18, Response: 0.19, Exog: []float64{0.1}},
	}

	_, err := NewDataset(obs, []string{"rv_5d", "term_slope"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "exog", verr.Field)
}

func TestDatasetSubset(t *testing.T) {
	obs := make([]Observation, 0, 5)
	for i := 0; i < 5; i++ {
		obs = append(obs, Observation{
			Date:      day(2024, 3, 1+i),
			Predictor: 0.10 + float64(i)*0.01,
			Response:  0.15 + float64(i)*0.01,
		})
	}
	ds, err := NewDataset(obs, nil)
	require.NoError(t, err)

	sub := ds.Subset([]int{4, 0, 2})
	require.Equal(t, 3, sub.Len())

	// Order by date regardless of the index order supplied.
	assert.Equal(t, day(2024, 3, 1), sub.At(0).Date)
	assert.Equal(t, day(2024, 3, 3), sub.At(1).Date)
	assert.Equal(t, day(2024, 3, 5), sub.At(2).Date)
}

func TestDatasetSubsetIsACopy(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, 3, 1), Predictor: 0.18, Response: 0.19, Exog: []float64{0.1}},
	}
	ds, err := NewDataset(obs, []string{"rv_5d"})
	require.NoError(t, err)

	sub := ds.Subset([]int{0})
	got := sub.At(0)
	got.Exog[0] = 99

	assert.InDelta(t, 0.1, ds.At(0).Exog[0], 1e-12)
}

func TestSplitFraction(t *testing.T) {
	obs := make([]Observation, 0, 10)
	for i := 0; i < 10; i++ {
		obs = append(obs, Observation{
			Date:      day(2024, 3, 1+i),
			Predictor: 0.10,
			Response:  0.15,
		})
	}
	ds, err := NewDataset(obs, nil)
	require.NoError(t, err)

	train, hold, err := ds.SplitFraction(0.8)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, hold.Len())

	// Every holdout row is strictly later than every training row.
	_, lastTrain := train.DateRange()
	firstHold, _ := hold.DateRange()
	assert.True(t, lastTrain.Before(firstHold))
}

func TestSplitFractionBounds(t *testing.T) {
	obs := []Observation{
		{Date: day(2024, 3, 1), Predictor: 0.1, Response: 0.1},
		{Date: day(2024, 3, 2), Predictor: 0.1, Response: 0.1},
	}
	ds, err := NewDataset(obs, nil)
	require.NoError(t, err)

	for _, frac := range []float64{0, 1, -0.5, 1.5} {
		_, _, err := ds.SplitFraction(frac)
		assert.Error(t, err, "fraction %v should be rejected", frac)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "folds", Message: "fold count must be at least 2", Value: 1}
	assert.Equal(t, "fold count must be at least 2", err.Error())
}
