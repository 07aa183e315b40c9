package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcast/internal/volatility"
)

func fingerprintDataset(t *testing.T, responses []float64) volatility.Dataset {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	obs := make([]volatility.Observation, len(responses))
	for i, r := range responses {
		obs[i] = volatility.Observation{
			Date:      base.AddDate(0, 0, i),
			Predictor: 0.10 + 0.01*float64(i),
			Response:  r,
			Exog:      []float64{0.08 + 0.01*float64(i)},
		}
	}
	ds, err := volatility.NewDataset(obs, []string{"rv_5"})
	require.NoError(t, err)
	return ds
}

func TestFingerprintDeterministic(t *testing.T) {
	ds := fingerprintDataset(t, []float64{0.15, 0.16, 0.17})

	first := Fingerprint(ds)
	second := Fingerprint(ds)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestFingerprintSensitiveToData(t *testing.T) {
	base := Fingerprint(fingerprintDataset(t, []float64{0.15, 0.16, 0.17}))
	changed := Fingerprint(fingerprintDataset(t, []float64{0.15, 0.16, 0.18}))
	assert.NotEqual(t, base, changed)
}

func TestSeriesFingerprint(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	series, err := volatility.NewSeries(dates, []float64{13.20, 14.04})
	require.NoError(t, err)

	first := SeriesFingerprint(series)
	assert.Equal(t, first, SeriesFingerprint(series))
	assert.Len(t, first, 64)

	bumped, err := volatility.NewSeries(dates, []float64{13.20, 14.05})
	require.NoError(t, err)
	assert.NotEqual(t, first, SeriesFingerprint(bumped))
}
