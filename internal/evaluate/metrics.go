// Package evaluate computes out-of-sample accuracy metrics for fitted
// volatility models: error magnitudes, explained variance, forecast bias,
// and residual diagnostics.
package evaluate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"volcast/internal/regression"
	"volcast/internal/volatility"
)

// Metrics summarizes how a model's predictions compare with realized
// values. MeanBias is mean(predicted-actual), so positive values mean the
// model overpredicts volatility.
type Metrics struct {
	N            int     `json:"n"`
	RMSE         float64 `json:"rmse"`
	MAE          float64 `json:"mae"`
	R2           float64 `json:"r2"`
	MeanBias     float64 `json:"mean_bias"`
	DurbinWatson float64 `json:"durbin_watson"`
	JarqueBera   float64 `json:"jarque_bera"`
	JarqueBeraP  float64 `json:"jarque_bera_p"`
}

// Compute derives the full metric set from aligned actual and predicted
// slices.
//
// R2 is the out-of-sample coefficient of determination and is not clamped:
// predictions worse than the actual mean give negative values. With a
// constant actual series the ratio is undefined and reported as zero.
// Residual-free predictions report the white-noise Durbin-Watson value of 2.
func Compute(actual, predicted []float64) (Metrics, error) {
	if len(actual) == 0 {
		return Metrics{}, &volatility.ValidationError{
			Field:   "actual",
			Message: "metrics require at least one observation",
		}
	}
	if len(actual) != len(predicted) {
		return Metrics{}, &volatility.ValidationError{
			Field:   "predicted",
			Message: fmt.Sprintf("actual has %d values but predicted has %d", len(actual), len(predicted)),
			Value:   len(predicted),
		}
	}

	n := len(actual)
	resid := make([]float64, n)
	var sse, sae, bias float64
	for i := range actual {
		r := actual[i] - predicted[i]
		resid[i] = r
		sse += r * r
		sae += math.Abs(r)
		bias += predicted[i] - actual[i]
	}

	m := Metrics{
		N:        n,
		RMSE:     math.Sqrt(sse / float64(n)),
		MAE:      sae / float64(n),
		MeanBias: bias / float64(n),
	}

	mean := stat.Mean(actual, nil)
	var sst float64
	for _, v := range actual {
		d := v - mean
		sst += d * d
	}
	if sst > 0 {
		m.R2 = 1 - sse/sst
	}

	m.DurbinWatson = durbinWatson(resid, sse)
	m.JarqueBera, m.JarqueBeraP = jarqueBera(resid)
	return m, nil
}

// EvaluateModel predicts the test observations with an already fitted model
// and scores the predictions against the realized responses. The
// predictions are returned alongside the metrics so callers can persist
// them.
func EvaluateModel(model regression.Model, test volatility.Dataset) (Metrics, []float64, error) {
	if test.Len() == 0 {
		return Metrics{}, nil, &volatility.ValidationError{
			Field:   "test",
			Message: "evaluation dataset is empty",
		}
	}

	predicted, err := model.Predict(test.Observations())
	if err != nil {
		return Metrics{}, nil, fmt.Errorf("predict %s model: %w", model.Family(), err)
	}

	m, err := Compute(test.Responses(), predicted)
	if err != nil {
		return Metrics{}, nil, err
	}
	return m, predicted, nil
}

// durbinWatson measures first-order residual autocorrelation. Values near 2
// indicate none, near 0 persistent errors, near 4 alternating errors.
func durbinWatson(resid []float64, sse float64) float64 {
	if sse == 0 || len(resid) < 2 {
		return 2
	}
	var num float64
	for i := 1; i < len(resid); i++ {
		d := resid[i] - resid[i-1]
		num += d * d
	}
	return num / sse
}

// jarqueBera tests residual normality from sample skewness and excess
// kurtosis. The statistic is asymptotically chi-squared with two degrees of
// freedom; degenerate residuals report a statistic of zero.
func jarqueBera(resid []float64) (float64, float64) {
	if len(resid) < 4 || stat.Variance(resid, nil) == 0 {
		return 0, 1
	}

	skew := stat.Skew(resid, nil)
	exk := stat.ExKurtosis(resid, nil)
	if math.IsNaN(skew) || math.IsNaN(exk) {
		return 0, 1
	}

	jb := float64(len(resid)) / 6 * (skew*skew + exk*exk/4)
	chi2 := distuv.ChiSquared{K: 2}
	p := 1 - chi2.CDF(jb)
	return jb, p
}
