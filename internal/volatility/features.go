package volatility

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Series is a date-indexed sequence of float values, the raw form in which
// price and index data arrives from the loaders.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// NewSeries pairs dates with values, rejecting length mismatches
func NewSeries(dates []time.Time, values []float64) (Series, error) {
	if len(dates) != len(values) {
		return Series{}, &ValidationError{
			Field:   "series",
			Message: fmt.Sprintf("dates have length %d but values have length %d", len(dates), len(values)),
			Value:   len(values),
		}
	}
	return Series{Dates: dates, Values: values}, nil
}

// Len returns the number of points in the series
func (s Series) Len() int {
	return len(s.Values)
}

// FeatureConfig controls how a Dataset is assembled from raw series
type FeatureConfig struct {
	// Window is the rolling window for the primary realized-volatility predictor
	Window Window `json:"window"`

	// ImpliedDivisor rescales the implied index level into a decimal
	// fraction (VIX quotes 18.5 for 18.5%, so the divisor is 100)
	ImpliedDivisor float64 `json:"implied_divisor"`

	// ExogWindows lists additional realized-volatility windows appended as
	// exogenous columns for the multivariate families
	ExogWindows []Window `json:"exog_windows,omitempty"`
}

// DefaultFeatureConfig returns the standard assembly settings: a one-month
// realized-volatility predictor with weekly and quarterly windows as
// exogenous columns, and percentage-quoted implied levels.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		Window:         DefaultWindow,
		ImpliedDivisor: 100,
		ExogWindows:    []Window{Window5, Window63},
	}
}

// LogReturns computes day-over-day log-returns of a price series. The
// result is aligned to the date of the later price, so it is one point
// shorter than the input. Pairs involving a non-positive price produce NaN
// and are excluded later as missing values.
func LogReturns(prices Series) Series {
	if prices.Len() < 2 {
		return Series{}
	}
	dates := make([]time.Time, prices.Len()-1)
	values := make([]float64, prices.Len()-1)
	for i := 1; i < prices.Len(); i++ {
		dates[i-1] = prices.Dates[i]
		prev, cur := prices.Values[i-1], prices.Values[i]
		if prev <= 0 || cur <= 0 {
			values[i-1] = math.NaN()
			continue
		}
		values[i-1] = math.Log(cur / prev)
	}
	return Series{Dates: dates, Values: values}
}

// RollingRealized computes annualized realized volatility over a trailing
// window of log-returns: the sample standard deviation of the window scaled
// by sqrt(TradingPeriodsPerYear). Each output point is aligned to the date
// of the last return in its window; the first window-1 points are NaN
// (warmup rows, removed as missing during dataset assembly).
func RollingRealized(returns Series, window Window) Series {
	n := returns.Len()
	days := window.Days()
	dates := make([]time.Time, n)
	copy(dates, returns.Dates)
	values := make([]float64, n)

	factor := math.Sqrt(TradingPeriodsPerYear)
	for i := 0; i < n; i++ {
		if days < 2 || i < days-1 {
			values[i] = math.NaN()
			continue
		}
		win := returns.Values[i-days+1 : i+1]
		if containsNaN(win) {
			values[i] = math.NaN()
			continue
		}
		values[i] = stat.StdDev(win, nil) * factor
	}
	return Series{Dates: dates, Values: values}
}

// BuildDataset assembles the analysis dataset from a price series and an
// implied-volatility index series: log-returns of the prices feed rolling
// realized volatility (the predictor), the implied level divided by
// ImpliedDivisor is the response, and the two are joined on calendar date.
// An optional term series (a longer-horizon implied index such as VIX3M)
// adds a "term_slope" exogenous column holding the long-minus-short implied
// spread. Dates present on only one side, warmup rows, and rows with
// non-finite values are excluded before the Dataset is returned.
func BuildDataset(prices, implied Series, term *Series, cfg FeatureConfig) (Dataset, error) {
	if cfg.Window.Days() < 2 {
		return Dataset{}, &ValidationError{
			Field:   "window",
			Message: "realized-volatility window must cover at least 2 returns",
			Value:   cfg.Window.Days(),
		}
	}
	if cfg.ImpliedDivisor <= 0 {
		return Dataset{}, &ValidationError{
			Field:   "implied_divisor",
			Message: "implied divisor must be positive",
			Value:   cfg.ImpliedDivisor,
		}
	}
	if prices.Len() < cfg.Window.Days()+1 {
		return Dataset{}, &ValidationError{
			Field:   "prices",
			Message: fmt.Sprintf("need at least %d prices for a %s window, got %d", cfg.Window.Days()+1, cfg.Window, prices.Len()),
			Value:   prices.Len(),
		}
	}
	if implied.Len() == 0 {
		return Dataset{}, &ValidationError{
			Field:   "implied",
			Message: "implied series is empty",
		}
	}

	returns := LogReturns(prices)
	realized := RollingRealized(returns, cfg.Window)

	exogNames := make([]string, 0, len(cfg.ExogWindows)+1)
	exogSeries := make([]map[int64]float64, 0, len(cfg.ExogWindows)+1)
	for _, w := range cfg.ExogWindows {
		if w == cfg.Window {
			continue
		}
		exogNames = append(exogNames, fmt.Sprintf("rv_%s", w))
		exogSeries = append(exogSeries, indexByDay(RollingRealized(returns, w)))
	}

	impliedByDay := indexByDay(implied)

	var termByDay map[int64]float64
	if term != nil && term.Len() > 0 {
		exogNames = append(exogNames, "term_slope")
		termByDay = indexByDay(*term)
	}

	obs := make([]Observation, 0, realized.Len())
	for i, date := range realized.Dates {
		day := dayKey(date)
		level, ok := impliedByDay[day]
		if !ok {
			continue
		}

		o := Observation{
			Date:      date,
			Predictor: realized.Values[i],
			Response:  level / cfg.ImpliedDivisor,
		}

		if len(exogNames) > 0 {
			o.Exog = make([]float64, 0, len(exogNames))
			for _, byDay := range exogSeries {
				v, ok := byDay[day]
				if !ok {
					v = math.NaN()
				}
				o.Exog = append(o.Exog, v)
			}
			if termByDay != nil {
				long, ok := termByDay[day]
				if !ok {
					o.Exog = append(o.Exog, math.NaN())
				} else {
					o.Exog = append(o.Exog, (long-level)/cfg.ImpliedDivisor)
				}
			}
		}

		obs = append(obs, o)
	}

	return NewDataset(obs, exogNames)
}

// dayKey normalizes a timestamp to its UTC calendar day for joining
func dayKey(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func indexByDay(s Series) map[int64]float64 {
	byDay := make(map[int64]float64, s.Len())
	for i, date := range s.Dates {
		byDay[dayKey(date)] = s.Values[i]
	}
	return byDay
}

func containsNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
