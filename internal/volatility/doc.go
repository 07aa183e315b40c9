// Package volatility holds the core data model of the analysis: dated
// observations pairing annualized realized volatility (the predictor) with
// an implied-volatility index level (the response), and the feature builder
// that assembles them from raw price and index series.
//
// # Core Components
//
//   - types.go: Observation, Dataset, Window, and validation errors
//   - features.go: log-returns, rolling realized volatility, date joins
//
// # Data Flow
//
// Raw daily series (S&P 500 closes, VIX and optionally VIX3M levels) enter
// as Series values. Log-returns of the prices feed a rolling sample
// standard deviation scaled by sqrt(252) to produce annualized realized
// volatility. The implied level is rescaled from percentage points to a
// decimal fraction and joined to the realized series on calendar date.
// Warmup rows, one-sided join gaps, and non-finite values are removed
// before a Dataset is handed to the model layer; nothing downstream ever
// sees a missing value.
//
// # Usage Example
//
//	rets := volatility.LogReturns(prices)
//	rv := volatility.RollingRealized(rets, volatility.Window21)
//
//	ds, err := volatility.BuildDataset(prices, vix, &vix3m, volatility.DefaultFeatureConfig())
//	if err != nil {
//	    return err
//	}
//
// Datasets are immutable after construction: accessors return copies, and
// Subset/SplitFraction build new values rather than sharing backing arrays.
package volatility
