// Package regression implements the model families compared by the
// cross-validation harness: ordinary least squares, Nadaraya-Watson kernel
// regression, a penalized-spline generalized additive model, Lasso
// regression, and seasonal ARIMA with exogenous regressors.
//
// # Model Families
//
// Families are identified by the Family enum and constructed once through
// New; callers never dispatch on strings. Every family implements the same
// capability interface:
//
//	type Model interface {
//	    Fit(train volatility.Dataset) error
//	    Predict(obs []volatility.Observation) ([]float64, error)
//	    Family() Family
//	}
//
// so any family can be swapped into the cross-validation driver unchanged.
// Fits are deterministic: the same training data always produces the same
// model and the same predictions.
//
// # Files
//
//   - family.go: Family enum, parsing, and the New dispatch
//   - solve.go: shared SVD least-squares solve with rank tolerance
//   - ols.go: closed-form least squares, intercept-only on constant columns
//   - kernel.go: Gaussian Nadaraya-Watson with Silverman bandwidth
//   - gam.go: penalized cubic regression spline, lambda chosen by GCV
//   - lasso.go: coordinate descent with an internal time-ordered CV for
//     the penalty strength
//   - sarimax.go: seasonal ARIMA with exogenous regressors fit by
//     conditional-sum-of-squares likelihood via Nelder-Mead
//
// # Extrapolation
//
// Kernel and GAM predictions for predictor values outside the training
// range are extrapolations with degraded accuracy. They are intentionally
// not errors; the behavior is documented on the respective Predict methods.
package regression
