package regression

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"volcast/internal/volatility"
)

// SARIMAXOptions configures the seasonal ARIMA orders. Orders follow the
// usual (p,d,q)(P,D,Q)s notation with s counted in observation rows.
type SARIMAXOptions struct {
	P         int `json:"p"`
	D         int `json:"d"`
	Q         int `json:"q"`
	SeasonalP int `json:"seasonal_p"`
	SeasonalD int `json:"seasonal_d"`
	SeasonalQ int `json:"seasonal_q"`
	// Period is the season length in rows. Daily data uses 5 for a trading
	// week.
	Period int `json:"period"`
}

// DefaultSARIMAXOptions returns (1,0,1)(1,0,0) with a trading-week season.
func DefaultSARIMAXOptions() SARIMAXOptions {
	return SARIMAXOptions{P: 1, D: 0, Q: 1, SeasonalP: 1, SeasonalD: 0, SeasonalQ: 0, Period: 5}
}

// SARIMAX regresses the (possibly differenced) response on the implied
// predictor and exogenous columns, and models the regression errors as a
// seasonal ARMA process. Parameters are estimated by minimizing the
// conditional sum of squared innovations with Nelder-Mead, which keeps the
// fit free of randomness.
//
// Prediction is forecast-oriented. Rows dated after the training range are
// forecast in sequence, the ARMA error forecast decaying toward zero with
// the horizon. When no differencing is configured, held-out rows inside the
// training range receive the regression component alone, the ARMA term
// being zero in expectation. A differenced model has no level regression to
// fall back on, so it rejects prediction dates inside the training range.
type SARIMAX struct {
	opts SARIMAXOptions

	arFull, maFull []float64
	phi, theta     []float64
	sphi, stheta   []float64
	c              float64
	beta           []float64

	u, e     []float64
	stages   [][]float64
	diffLags []int
	xTail    [][]float64
	sigma2   float64
	css      float64
	nEff     int
	lastDate time.Time
	nExog    int
	fitted   bool
}

// NewSARIMAX returns an unfitted seasonal ARIMA model.
func NewSARIMAX(opts SARIMAXOptions) *SARIMAX {
	return &SARIMAX{opts: opts}
}

// Family returns FamilySARIMAX.
func (m *SARIMAX) Family() Family {
	return FamilySARIMAX
}

// AIC returns the Akaike information criterion of the fitted model.
func (m *SARIMAX) AIC() float64 {
	k := float64(m.paramCount())
	return float64(m.nEff)*math.Log(m.sigma2) + 2*k
}

// BIC returns the Bayesian information criterion of the fitted model.
func (m *SARIMAX) BIC() float64 {
	k := float64(m.paramCount())
	return float64(m.nEff)*math.Log(m.sigma2) + k*math.Log(float64(m.nEff))
}

func (m *SARIMAX) paramCount() int {
	return m.opts.P + m.opts.Q + m.opts.SeasonalP + m.opts.SeasonalQ + 1 + len(m.beta)
}

func (m *SARIMAX) period() int {
	if m.opts.Period < 1 {
		return 1
	}
	return m.opts.Period
}

func (m *SARIMAX) validateOrders() error {
	o := m.opts
	if o.P < 0 || o.D < 0 || o.Q < 0 || o.SeasonalP < 0 || o.SeasonalD < 0 || o.SeasonalQ < 0 {
		return &volatility.ValidationError{Field: "sarimax", Message: "model orders must be non-negative"}
	}
	if o.SeasonalP+o.SeasonalD+o.SeasonalQ > 0 && o.Period < 2 {
		return &volatility.ValidationError{
			Field:   "sarimax",
			Message: fmt.Sprintf("seasonal orders require a period of at least 2, got %d", o.Period),
			Value:   o.Period,
		}
	}
	return nil
}

// Fit estimates the regression and ARMA parameters. The response and every
// feature column are differenced per the configured orders, the regression
// coefficients are seeded by least squares on the differenced data, and the
// joint parameter vector is then refined against the conditional sum of
// squares.
func (m *SARIMAX) Fit(train volatility.Dataset) error {
	if err := checkTrain(train); err != nil {
		return err
	}
	if err := m.validateOrders(); err != nil {
		return err
	}

	o := m.opts
	s := m.period()
	cols := featureColumns(train)
	y := train.Responses()

	stages := differenceStages(y, o.D, o.SeasonalD, s)
	ystar := stages[len(stages)-1]
	dcols := make([][]float64, len(cols))
	for j, col := range cols {
		dcols[j] = diffColumn(col, o.D, o.SeasonalD, s)
	}

	arLags := o.P + s*o.SeasonalP
	maLags := o.Q + s*o.SeasonalQ
	nStar := len(ystar)
	if nStar < arLags+maLags+len(cols)+2 {
		return &volatility.ValidationError{
			Field:   "train",
			Message: fmt.Sprintf("training dataset too short for the configured orders: %d rows after differencing", nStar),
			Value:   nStar,
		}
	}

	c0, beta0, err := seedRegression(dcols, ystar)
	if err != nil {
		return fmt.Errorf("sarimax fit: %w", err)
	}

	layout := paramLayout{p: o.P, q: o.Q, sp: o.SeasonalP, sq: o.SeasonalQ, k: len(cols)}
	init := layout.pack(c0, beta0, residualAutocorr(dcols, ystar, c0, beta0))

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			return cssObjective(params, layout, dcols, ystar, s)
		},
	}
	result, err := optimize.Minimize(problem, init, nil, &optimize.NelderMead{})
	if err != nil {
		return fmt.Errorf("sarimax fit: minimize css: %w", err)
	}

	phi, theta, sphi, stheta, c, beta := layout.unpack(result.X)
	m.phi, m.theta, m.sphi, m.stheta = phi, theta, sphi, stheta
	m.c, m.beta = c, beta
	m.arFull = expandPoly(phi, sphi, s)
	m.maFull = expandPoly(theta, stheta, s)

	m.u = regressionResiduals(dcols, ystar, c, beta)
	m.e, m.css = innovations(m.u, m.arFull, m.maFull)
	m.nEff = nStar - len(m.arFull)
	if m.nEff < 1 {
		m.nEff = 1
	}
	m.sigma2 = m.css / float64(m.nEff)

	m.stages = stages
	m.diffLags = diffLagSequence(o.D, o.SeasonalD, s)
	m.xTail = tailRows(cols, o.D+s*o.SeasonalD)
	m.lastDate = train.At(train.Len() - 1).Date
	m.nExog = len(cols) - 1
	m.fitted = true
	return nil
}

// Predict forecasts the response at each observation. Rows after the
// training range are treated as consecutive forecast steps in the order
// given; earlier rows are only admissible without differencing and receive
// the regression component.
func (m *SARIMAX) Predict(obs []volatility.Observation) ([]float64, error) {
	if err := checkPredict(obs, m.nExog, m.fitted); err != nil {
		return nil, err
	}

	differenced := len(m.diffLags) > 0
	future := make([]volatility.Observation, 0, len(obs))
	for _, o := range obs {
		if o.Date.After(m.lastDate) {
			future = append(future, o)
		} else if differenced {
			return nil, &volatility.ValidationError{
				Field:   "obs",
				Message: "differenced sarimax model requires prediction dates after the training range",
				Value:   o.Date.Format("2006-01-02"),
			}
		}
	}

	levels := m.forecastLevels(future)

	out := make([]float64, len(obs))
	h := 0
	for i, o := range obs {
		if o.Date.After(m.lastDate) {
			out[i] = levels[h]
			h++
			continue
		}
		row := observationFeatures(o)
		v := m.c
		for j, b := range m.beta {
			v += b * row[j]
		}
		out[i] = v
	}
	return out, nil
}

// forecastLevels produces level forecasts for consecutive future rows: the
// regression component on boundary-differenced features, plus the ARMA
// error forecast, integrated back through the differencing stages.
func (m *SARIMAX) forecastLevels(future []volatility.Observation) []float64 {
	if len(future) == 0 {
		return nil
	}

	// Differencing the feature columns across the training boundary uses
	// the stored tail rows, so the combined differenced length equals the
	// forecast horizon.
	combined := make([][]float64, 0, len(m.xTail)+len(future))
	combined = append(combined, m.xTail...)
	for _, o := range future {
		combined = append(combined, observationFeatures(o))
	}
	k := 1 + m.nExog
	dfeat := make([][]float64, k)
	for j := 0; j < k; j++ {
		col := make([]float64, len(combined))
		for i, row := range combined {
			col[i] = row[j]
		}
		dfeat[j] = diffColumn(col, m.opts.D, m.opts.SeasonalD, m.period())
	}

	nStar := len(m.u)
	uFore := make([]float64, 0, len(future))
	z := make([]float64, len(future))
	for h := 0; h < len(future); h++ {
		t := nStar + h
		var v float64
		for i, a := range m.arFull {
			lag := t - (i + 1)
			if lag < 0 {
				continue
			}
			if lag < nStar {
				v += a * m.u[lag]
			} else {
				v += a * uFore[lag-nStar]
			}
		}
		for j, b := range m.maFull {
			lag := t - (j + 1)
			if lag >= 0 && lag < len(m.e) {
				v += b * m.e[lag]
			}
		}
		uFore = append(uFore, v)

		reg := m.c
		for j, b := range m.beta {
			reg += b * dfeat[j][h]
		}
		z[h] = reg + v
	}

	// Invert the differencing stages from innermost outward.
	for stage := len(m.stages) - 2; stage >= 0; stage-- {
		z = undifference(z, m.stages[stage], m.diffLags[stage])
	}
	return z
}

// paramLayout maps the flat optimizer vector onto the model parameters in
// the order phi, theta, seasonal phi, seasonal theta, intercept, betas.
type paramLayout struct {
	p, q, sp, sq, k int
}

func (l paramLayout) size() int {
	return l.p + l.q + l.sp + l.sq + 1 + l.k
}

func (l paramLayout) pack(c float64, beta []float64, phi1 float64) []float64 {
	params := make([]float64, l.size())
	for i := 0; i < l.p+l.q+l.sp+l.sq; i++ {
		params[i] = 0.1
	}
	if l.p > 0 {
		params[0] = phi1
	}
	params[l.p+l.q+l.sp+l.sq] = c
	copy(params[l.p+l.q+l.sp+l.sq+1:], beta)
	return params
}

func (l paramLayout) unpack(params []float64) (phi, theta, sphi, stheta []float64, c float64, beta []float64) {
	at := 0
	take := func(n int) []float64 {
		out := make([]float64, n)
		copy(out, params[at:at+n])
		at += n
		return out
	}
	phi = take(l.p)
	theta = take(l.q)
	sphi = take(l.sp)
	stheta = take(l.sq)
	c = params[at]
	at++
	beta = take(l.k)
	return phi, theta, sphi, stheta, c, beta
}

// cssObjective is the concentrated conditional-sum-of-squares criterion.
// AR and MA coefficients outside the unit box carry a finite penalty that
// grows with the overshoot, steering the simplex back inside.
func cssObjective(params []float64, layout paramLayout, dcols [][]float64, ystar []float64, period int) float64 {
	phi, theta, sphi, stheta, c, beta := layout.unpack(params)

	var overshoot float64
	for _, group := range [][]float64{phi, theta, sphi, stheta} {
		for _, v := range group {
			if math.IsNaN(v) {
				return 1e12
			}
			if a := math.Abs(v); a >= 0.999 {
				overshoot += a - 0.999
			}
		}
	}
	if overshoot > 0 {
		return 1e10 * (1 + overshoot)
	}

	u := regressionResiduals(dcols, ystar, c, beta)
	arFull := expandPoly(phi, sphi, period)
	maFull := expandPoly(theta, stheta, period)
	_, css := innovations(u, arFull, maFull)

	nEff := len(u) - len(arFull)
	if nEff < 1 {
		nEff = 1
	}
	mean := css / float64(nEff)
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 1e12
	}
	if mean < 1e-300 {
		mean = 1e-300
	}
	return math.Log(mean)
}

// regressionResiduals subtracts the intercept and regression component from
// the differenced response.
func regressionResiduals(dcols [][]float64, ystar []float64, c float64, beta []float64) []float64 {
	u := make([]float64, len(ystar))
	for i, v := range ystar {
		r := v - c
		for j, b := range beta {
			r -= b * dcols[j][i]
		}
		u[i] = r
	}
	return u
}

// innovations runs the ARMA recursion over the regression residuals and
// returns the innovation series together with its conditional sum of
// squares. Innovations before the first fully lagged index are zero and
// excluded from the sum.
func innovations(u, arFull, maFull []float64) ([]float64, float64) {
	e := make([]float64, len(u))
	start := len(arFull)
	var css float64
	for t := start; t < len(u); t++ {
		v := u[t]
		for i, a := range arFull {
			v -= a * u[t-(i+1)]
		}
		for j, b := range maFull {
			lag := t - (j + 1)
			if lag >= 0 {
				v -= b * e[lag]
			}
		}
		e[t] = v
		css += v * v
	}
	return e, css
}

// expandPoly multiplies the non-seasonal and seasonal lag polynomials into
// a single coefficient vector indexed by lag minus one.
func expandPoly(coefs, seasonal []float64, period int) []float64 {
	p1 := make([]float64, len(coefs)+1)
	p1[0] = 1
	for i, c := range coefs {
		p1[i+1] = -c
	}
	p2 := make([]float64, period*len(seasonal)+1)
	p2[0] = 1
	for i, c := range seasonal {
		p2[period*(i+1)] = -c
	}

	prod := make([]float64, len(p1)+len(p2)-1)
	for i, a := range p1 {
		if a == 0 {
			continue
		}
		for j, b := range p2 {
			prod[i+j] += a * b
		}
	}

	full := make([]float64, len(prod)-1)
	for lag := 1; lag < len(prod); lag++ {
		full[lag-1] = -prod[lag]
	}
	return full
}

// seedRegression estimates the intercept and feature coefficients on the
// differenced data by least squares.
func seedRegression(dcols [][]float64, ystar []float64) (float64, []float64, error) {
	n := len(ystar)
	design := designWithIntercept(dcols, n)
	beta, err := solveLeastSquares(design, ystar)
	if err != nil {
		return 0, nil, err
	}
	return beta[0], beta[1:], nil
}

// residualAutocorr seeds the first AR coefficient from the lag-1
// autocorrelation of the seed-regression residuals, clamped inside the
// stationary region.
func residualAutocorr(dcols [][]float64, ystar []float64, c float64, beta []float64) float64 {
	u := regressionResiduals(dcols, ystar, c, beta)
	if len(u) < 3 {
		return 0.1
	}
	r := stat.Correlation(u[:len(u)-1], u[1:], nil)
	if math.IsNaN(r) {
		return 0.1
	}
	if r > 0.9 {
		r = 0.9
	}
	if r < -0.9 {
		r = -0.9
	}
	return r
}

// differenceStages applies d regular then D seasonal differences, returning
// every intermediate series with the original first.
func differenceStages(v []float64, d, D, period int) [][]float64 {
	stages := [][]float64{v}
	cur := v
	for i := 0; i < d; i++ {
		cur = diffLag(cur, 1)
		stages = append(stages, cur)
	}
	for i := 0; i < D; i++ {
		cur = diffLag(cur, period)
		stages = append(stages, cur)
	}
	return stages
}

// diffColumn returns only the final stage of differencing a column.
func diffColumn(col []float64, d, D, period int) []float64 {
	cur := col
	for i := 0; i < d; i++ {
		cur = diffLag(cur, 1)
	}
	for i := 0; i < D; i++ {
		cur = diffLag(cur, period)
	}
	return cur
}

func diffLag(v []float64, lag int) []float64 {
	if len(v) <= lag {
		return nil
	}
	out := make([]float64, len(v)-lag)
	for i := range out {
		out[i] = v[i+lag] - v[i]
	}
	return out
}

// diffLagSequence lists the lag of each differencing stage in application
// order.
func diffLagSequence(d, D, period int) []int {
	lags := make([]int, 0, d+D)
	for i := 0; i < d; i++ {
		lags = append(lags, 1)
	}
	for i := 0; i < D; i++ {
		lags = append(lags, period)
	}
	return lags
}

// undifference inverts one differencing stage for a forecast continuation,
// reading lagged values from the fitted stage history until the forecasts
// reach back into themselves.
func undifference(fore, base []float64, lag int) []float64 {
	out := make([]float64, len(fore))
	for h, z := range fore {
		idx := len(base) + h - lag
		var prev float64
		switch {
		case idx >= len(base):
			prev = out[idx-len(base)]
		case idx >= 0:
			prev = base[idx]
		}
		out[h] = z + prev
	}
	return out
}

// tailRows copies the last count feature rows of a column-major design.
func tailRows(cols [][]float64, count int) [][]float64 {
	if count <= 0 || len(cols) == 0 {
		return nil
	}
	n := len(cols[0])
	if count > n {
		count = n
	}
	rows := make([][]float64, count)
	for i := 0; i < count; i++ {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][n-count+i]
		}
		rows[i] = row
	}
	return rows
}
