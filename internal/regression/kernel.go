package regression

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"volcast/internal/volatility"
)

// KernelOptions configures Nadaraya-Watson kernel regression.
type KernelOptions struct {
	// Bandwidth fixes the kernel bandwidth. Zero selects Silverman's rule
	// of thumb from the training predictors at fit time.
	Bandwidth float64 `json:"bandwidth"`
}

// DefaultKernelOptions returns options selecting the bandwidth automatically.
func DefaultKernelOptions() KernelOptions {
	return KernelOptions{}
}

// Kernel is a Gaussian Nadaraya-Watson smoother of the response on the
// implied predictor. Exogenous columns are ignored; the smoother is
// univariate.
type Kernel struct {
	opts      KernelOptions
	x         []float64
	y         []float64
	bandwidth float64
	mean      float64
	flat      bool
	fitted    bool
}

// NewKernel returns an unfitted kernel regression model.
func NewKernel(opts KernelOptions) *Kernel {
	return &Kernel{opts: opts}
}

// Family returns FamilyKernel.
func (m *Kernel) Family() Family {
	return FamilyKernel
}

// Bandwidth returns the bandwidth in effect after Fit.
func (m *Kernel) Bandwidth() float64 {
	return m.bandwidth
}

// Fit stores the training sample and resolves the bandwidth. A flat
// predictor leaves no scale to smooth over, so the model degrades to
// predicting the training mean response.
func (m *Kernel) Fit(train volatility.Dataset) error {
	if err := checkTrain(train); err != nil {
		return err
	}

	m.x = train.Predictors()
	m.y = train.Responses()
	m.mean = stat.Mean(m.y, nil)
	m.flat = isConstant(m.x)
	m.bandwidth = m.opts.Bandwidth
	if m.bandwidth <= 0 && !m.flat {
		m.bandwidth = silvermanBandwidth(m.x)
	}
	if m.bandwidth <= 0 {
		m.flat = true
	}
	m.fitted = true
	return nil
}

// Predict evaluates the smoother at each observation's predictor. Queries
// outside the training range are extrapolations: the nearest training
// points dominate the weights and accuracy degrades with distance. They are
// returned, not rejected.
func (m *Kernel) Predict(obs []volatility.Observation) ([]float64, error) {
	if !m.fitted {
		return nil, &volatility.ValidationError{Field: "model", Message: "model has not been fitted"}
	}

	out := make([]float64, len(obs))
	for i, o := range obs {
		if m.flat {
			out[i] = m.mean
			continue
		}
		out[i] = m.smooth(o.Predictor)
	}
	return out, nil
}

// smooth computes the weighted response average at query q. Squared
// distances are shifted by their minimum before exponentiation so far
// queries do not underflow every weight to zero.
func (m *Kernel) smooth(q float64) float64 {
	d2 := make([]float64, len(m.x))
	min := math.Inf(1)
	for i, xi := range m.x {
		z := (q - xi) / m.bandwidth
		d2[i] = z * z
		if d2[i] < min {
			min = d2[i]
		}
	}

	var wsum, ysum float64
	for i, d := range d2 {
		w := math.Exp(-0.5 * (d - min))
		wsum += w
		ysum += w * m.y[i]
	}
	return ysum / wsum
}

// silvermanBandwidth applies Silverman's rule of thumb,
// 1.06*min(sd, iqr/1.34)*n^(-1/5), falling back to the standard deviation
// when the interquartile range collapses.
func silvermanBandwidth(x []float64) float64 {
	n := float64(len(x))
	sd := stat.StdDev(x, nil)

	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)
	iqr := stat.Quantile(0.75, stat.Empirical, sorted, nil) - stat.Quantile(0.25, stat.Empirical, sorted, nil)

	spread := sd
	if iqr > 0 && iqr/1.34 < spread {
		spread = iqr / 1.34
	}
	return 1.06 * spread * math.Pow(n, -0.2)
}
