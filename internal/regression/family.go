package regression

import (
	"strings"

	"volcast/internal/volatility"
)

// Family identifies a regression model family.
type Family int

const (
	// FamilyLinear is ordinary least squares on the predictor and any
	// exogenous columns.
	FamilyLinear Family = iota
	// FamilyKernel is Gaussian Nadaraya-Watson kernel regression.
	FamilyKernel
	// FamilyGAM is a penalized cubic regression spline.
	FamilyGAM
	// FamilyLasso is L1-penalized least squares fit by coordinate descent.
	FamilyLasso
	// FamilySARIMAX is seasonal ARIMA with exogenous regressors.
	FamilySARIMAX
)

// String returns the canonical lowercase name of the family.
func (f Family) String() string {
	switch f {
	case FamilyLinear:
		return "linear"
	case FamilyKernel:
		return "kernel"
	case FamilyGAM:
		return "gam"
	case FamilyLasso:
		return "lasso"
	case FamilySARIMAX:
		return "sarimax"
	default:
		return "unknown"
	}
}

// IsValid reports whether the family is one of the supported values.
func (f Family) IsValid() bool {
	switch f {
	case FamilyLinear, FamilyKernel, FamilyGAM, FamilyLasso, FamilySARIMAX:
		return true
	default:
		return false
	}
}

// Families returns all supported families in comparison order.
func Families() []Family {
	return []Family{FamilyLinear, FamilyKernel, FamilyGAM, FamilyLasso, FamilySARIMAX}
}

// ParseFamily converts a name such as "linear" or "sarimax" into a Family.
// Matching is case-insensitive. "ols" is accepted as an alias for "linear".
func ParseFamily(name string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "ols":
		return FamilyLinear, nil
	case "kernel":
		return FamilyKernel, nil
	case "gam":
		return FamilyGAM, nil
	case "lasso":
		return FamilyLasso, nil
	case "sarimax":
		return FamilySARIMAX, nil
	default:
		return 0, &volatility.ValidationError{
			Field:   "family",
			Message: "unknown model family: " + name,
			Value:   name,
		}
	}
}

// Model is the capability shared by every regression family. Fit trains the
// model on a dataset; Predict evaluates the trained model at the predictor
// and exogenous values of the given observations, ignoring their responses.
// Implementations are deterministic and safe to reuse across repeated Fit
// calls, each Fit discarding the previous state.
type Model interface {
	Fit(train volatility.Dataset) error
	Predict(obs []volatility.Observation) ([]float64, error)
	Family() Family
}

// New constructs a model of the given family with default options. Callers
// needing non-default behavior use the family constructors directly.
func New(f Family) (Model, error) {
	switch f {
	case FamilyLinear:
		return NewOLS(), nil
	case FamilyKernel:
		return NewKernel(DefaultKernelOptions()), nil
	case FamilyGAM:
		return NewGAM(DefaultGAMOptions()), nil
	case FamilyLasso:
		return NewLasso(DefaultLassoOptions()), nil
	case FamilySARIMAX:
		return NewSARIMAX(DefaultSARIMAXOptions()), nil
	default:
		return nil, &volatility.ValidationError{
			Field:   "family",
			Message: "unknown model family",
			Value:   int(f),
		}
	}
}
