package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"volcast/internal/volatility"
)

// OLS fits ordinary least squares of the response on an intercept, the
// implied predictor, and any exogenous columns.
type OLS struct {
	intercept float64
	coef      []float64
	nExog     int
	fitted    bool
}

// NewOLS returns an unfitted ordinary least squares model.
func NewOLS() *OLS {
	return &OLS{}
}

// Family returns FamilyLinear.
func (m *OLS) Family() Family {
	return FamilyLinear
}

// Fit estimates the regression coefficients. Constant feature columns are
// dropped from the design and keep a zero coefficient, so a flat predictor
// yields an intercept-only model predicting the training mean.
func (m *OLS) Fit(train volatility.Dataset) error {
	if err := checkTrain(train); err != nil {
		return err
	}

	cols := featureColumns(train)
	y := train.Responses()
	n := train.Len()

	active := make([]int, 0, len(cols))
	for j, col := range cols {
		if !isConstant(col) {
			active = append(active, j)
		}
	}

	design := mat.NewDense(n, 1+len(active), nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for k, j := range active {
			design.Set(i, 1+k, cols[j][i])
		}
	}

	beta, err := solveLeastSquares(design, y)
	if err != nil {
		return fmt.Errorf("ols fit: %w", err)
	}

	m.intercept = beta[0]
	m.coef = make([]float64, len(cols))
	for k, j := range active {
		m.coef[j] = beta[1+k]
	}
	m.nExog = len(cols) - 1
	m.fitted = true
	return nil
}

// Predict evaluates the fitted line at the features of each observation.
func (m *OLS) Predict(obs []volatility.Observation) ([]float64, error) {
	if err := checkPredict(obs, m.nExog, m.fitted); err != nil {
		return nil, err
	}
	out := make([]float64, len(obs))
	for i, o := range obs {
		row := observationFeatures(o)
		v := m.intercept
		for j, c := range m.coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out, nil
}

// Intercept returns the fitted intercept.
func (m *OLS) Intercept() float64 {
	return m.intercept
}

// Coefficients returns a copy of the fitted coefficients ordered as the
// implied predictor followed by the exogenous columns.
func (m *OLS) Coefficients() []float64 {
	out := make([]float64, len(m.coef))
	copy(out, m.coef)
	return out
}
