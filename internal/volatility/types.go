package volatility

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Window represents different rolling windows for realized volatility, in trading days
type Window int

const (
	// Window5 represents a 5-day (one week) rolling window
	Window5 Window = 5
	// Window21 represents a 21-day (one month) rolling window
	Window21 Window = 21
	// Window63 represents a 63-day (one quarter) rolling window
	Window63 Window = 63
)

// String returns the string representation of the window
func (w Window) String() string {
	switch w {
	case Window5:
		return "5d"
	case Window21:
		return "21d"
	case Window63:
		return "63d"
	default:
		return fmt.Sprintf("%dd", int(w))
	}
}

// Days returns the number of trading days in the window
func (w Window) Days() int {
	return int(w)
}

// Constants for default values
const (
	// TradingPeriodsPerYear is the number of trading days used for annualization
	TradingPeriodsPerYear = 252

	// DefaultWindow is the realized-volatility window used when none is configured
	DefaultWindow = Window21

	// MinObservationsForFit is the smallest dataset any model family accepts.
	// Two points pin down a line, so two-row training folds stay fittable.
	MinObservationsForFit = 2
)

// Observation pairs one date's predictor (annualized realized volatility)
// with its response (implied volatility index level, as a decimal fraction).
// Exog carries optional additional predictor columns for the multivariate
// families; its layout is described by the owning Dataset's ExogNames.
type Observation struct {
	Date      time.Time `json:"date"`
	Predictor float64   `json:"predictor"`
	Response  float64   `json:"response"`
	Exog      []float64 `json:"exog,omitempty"`
}

// IsValid checks that the observation carries a usable (predictor, response) pair
func (o Observation) IsValid() bool {
	if o.Date.IsZero() {
		return false
	}
	if !isFinite(o.Predictor) || !isFinite(o.Response) {
		return false
	}
	if o.Predictor < 0 || o.Response < 0 {
		return false
	}
	for _, v := range o.Exog {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// Dataset is an ordered-by-date collection of observations with missing
// values already removed. It is built once per analysis run and treated as
// read-only afterwards; every accessor returns copies.
type Dataset struct {
	obs       []Observation
	exogNames []string
}

// NewDataset builds a Dataset from raw observations. Rows with NaN or Inf
// values, negative volatilities, or zero dates are dropped (rolling-window
// warmup rows and one-sided join gaps arrive here as NaN). The surviving
// rows are sorted by date. Structural problems are errors: duplicate dates,
// or exogenous rows whose width disagrees with exogNames.
func NewDataset(obs []Observation, exogNames []string) (Dataset, error) {
	kept := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !o.IsValid() {
			continue
		}
		if len(o.Exog) != len(exogNames) {
			return Dataset{}, &ValidationError{
				Field:   "exog",
				Message: fmt.Sprintf("observation %s has %d exogenous values, expected %d", o.Date.Format("2006-01-02"), len(o.Exog), len(exogNames)),
				Value:   len(o.Exog),
			}
		}
		kept = append(kept, cloneObservation(o))
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })

	for i := 1; i < len(kept); i++ {
		if kept[i].Date.Equal(kept[i-1].Date) {
			return Dataset{}, &ValidationError{
				Field:   "date",
				Message: "duplicate observation date",
				Value:   kept[i].Date.Format("2006-01-02"),
			}
		}
	}

	names := make([]string, len(exogNames))
	copy(names, exogNames)

	return Dataset{obs: kept, exogNames: names}, nil
}

// Len returns the number of observations
func (d Dataset) Len() int {
	return len(d.obs)
}

// ExogNames returns the names of the exogenous predictor columns
func (d Dataset) ExogNames() []string {
	names := make([]string, len(d.exogNames))
	copy(names, d.exogNames)
	return names
}

// At returns the observation at index i
func (d Dataset) At(i int) Observation {
	return cloneObservation(d.obs[i])
}

// Observations returns a copy of all observations in date order
func (d Dataset) Observations() []Observation {
	out := make([]Observation, len(d.obs))
	for i, o := range d.obs {
		out[i] = cloneObservation(o)
	}
	return out
}

// Predictors returns the predictor column in date order
func (d Dataset) Predictors() []float64 {
	out := make([]float64, len(d.obs))
	for i, o := range d.obs {
		out[i] = o.Predictor
	}
	return out
}

// Responses returns the response column in date order
func (d Dataset) Responses() []float64 {
	out := make([]float64, len(d.obs))
	for i, o := range d.obs {
		out[i] = o.Response
	}
	return out
}

// Dates returns the observation dates in order
func (d Dataset) Dates() []time.Time {
	out := make([]time.Time, len(d.obs))
	for i, o := range d.obs {
		out[i] = o.Date
	}
	return out
}

// DateRange returns the first and last observation dates. Zero times are
// returned for an empty dataset.
func (d Dataset) DateRange() (time.Time, time.Time) {
	if len(d.obs) == 0 {
		return time.Time{}, time.Time{}
	}
	return d.obs[0].Date, d.obs[len(d.obs)-1].Date
}

// Subset returns a new Dataset containing the observations at the given
// indices, preserving date order regardless of index order.
func (d Dataset) Subset(indices []int) Dataset {
	idx := make([]int, len(indices))
	copy(idx, indices)
	sort.Ints(idx)

	obs := make([]Observation, 0, len(idx))
	for _, i := range idx {
		obs = append(obs, cloneObservation(d.obs[i]))
	}
	return Dataset{obs: obs, exogNames: d.ExogNames()}
}

// SplitFraction splits the dataset in date order: the first trainFrac of
// rows become the training portion and the remainder the holdout. The
// holdout is therefore always later in time than every training row.
func (d Dataset) SplitFraction(trainFrac float64) (Dataset, Dataset, error) {
	if trainFrac <= 0 || trainFrac >= 1 {
		return Dataset{}, Dataset{}, &ValidationError{
			Field:   "trainFrac",
			Message: "training fraction must be strictly between 0 and 1",
			Value:   trainFrac,
		}
	}
	cut := int(math.Round(trainFrac * float64(len(d.obs))))
	if cut < 1 || cut >= len(d.obs) {
		return Dataset{}, Dataset{}, &ValidationError{
			Field:   "trainFrac",
			Message: "training fraction leaves an empty split",
			Value:   trainFrac,
		}
	}
	train := Dataset{obs: cloneObservations(d.obs[:cut]), exogNames: d.ExogNames()}
	hold := Dataset{obs: cloneObservations(d.obs[cut:]), exogNames: d.ExogNames()}
	return train, hold, nil
}

func cloneObservation(o Observation) Observation {
	c := o
	if o.Exog != nil {
		c.Exog = make([]float64, len(o.Exog))
		copy(c.Exog, o.Exog)
	}
	return c
}

func cloneObservations(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	for i, o := range obs {
		out[i] = cloneObservation(o)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return ve.Message
}
