package report

import (
	"time"

	"github.com/google/uuid"

	"volcast/internal/crossval"
	"volcast/internal/evaluate"
	"volcast/internal/volatility"
)

// Prediction is one holdout observation with its model prediction.
type Prediction struct {
	Date      time.Time `json:"date"`
	Actual    float64   `json:"actual"`
	Predicted float64   `json:"predicted"`
}

// FoldScore is the held-out score of one cross-validation fold.
type FoldScore struct {
	Fold      int     `json:"fold"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	RMSE      float64 `json:"rmse"`
}

// FamilyOutcome carries everything measured for one model family: the
// cross-validation scores and the holdout evaluation with its predictions.
type FamilyOutcome struct {
	Family      string           `json:"family"`
	MeanRMSE    float64          `json:"mean_rmse"`
	BestFold    int              `json:"best_fold"`
	BestRMSE    float64          `json:"best_rmse"`
	Folds       []FoldScore      `json:"folds"`
	Holdout     evaluate.Metrics `json:"holdout"`
	Predictions []Prediction     `json:"predictions,omitempty"`
}

// Report is the complete output document of one analysis run.
type Report struct {
	RunID              string          `json:"run_id"`
	GeneratedAt        time.Time       `json:"generated_at"`
	DatasetFingerprint string          `json:"dataset_fingerprint"`
	Observations       int             `json:"observations"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	ExogNames          []string        `json:"exog_names,omitempty"`
	Mode               string          `json:"mode"`
	K                  int             `json:"k"`
	Seed               int64           `json:"seed"`
	Families           []FamilyOutcome `json:"families"`
}

// New starts a report for one dataset. The fingerprint ties the document
// back to the exact input rows; pass marketdata.Fingerprint output.
func New(ds volatility.Dataset, fingerprint string) *Report {
	start, end := ds.DateRange()
	return &Report{
		RunID:              uuid.New().String(),
		GeneratedAt:        time.Now().UTC(),
		DatasetFingerprint: fingerprint,
		Observations:       ds.Len(),
		StartDate:          start,
		EndDate:            end,
		ExogNames:          ds.ExogNames(),
	}
}

// AddFamily records one family's cross-validation result and holdout
// evaluation. The first call fixes the report's fold settings; later calls
// are expected to share them (RunFamilies guarantees this).
func (r *Report) AddFamily(cv *crossval.Result, holdout evaluate.Metrics, predictions []Prediction) {
	if r.Mode == "" {
		r.Mode = cv.Mode.String()
		r.K = cv.K
		r.Seed = cv.Seed
	}

	folds := make([]FoldScore, len(cv.Folds))
	for i, f := range cv.Folds {
		folds[i] = FoldScore{
			Fold:      f.Fold,
			TrainSize: f.TrainSize,
			TestSize:  f.TestSize,
			RMSE:      f.RMSE,
		}
	}

	r.Families = append(r.Families, FamilyOutcome{
		Family:      cv.Family.String(),
		MeanRMSE:    cv.MeanRMSE,
		BestFold:    cv.BestFold,
		BestRMSE:    cv.BestRMSE,
		Folds:       folds,
		Holdout:     holdout,
		Predictions: predictions,
	})
}

// BestFamily returns the family with the lowest holdout RMSE, falling back
// to mean cross-validation RMSE when holdout metrics are absent. The
// second return is false for an empty report.
func (r *Report) BestFamily() (FamilyOutcome, bool) {
	if len(r.Families) == 0 {
		return FamilyOutcome{}, false
	}
	best := r.Families[0]
	for _, fo := range r.Families[1:] {
		if rankScore(fo) < rankScore(best) {
			best = fo
		}
	}
	return best, true
}

// Ranking returns the families sorted from best to worst holdout RMSE.
func (r *Report) Ranking() []FamilyOutcome {
	ranked := make([]FamilyOutcome, len(r.Families))
	copy(ranked, r.Families)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && rankScore(ranked[j]) < rankScore(ranked[j-1]); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}

func rankScore(fo FamilyOutcome) float64 {
	if fo.Holdout.N > 0 {
		return fo.Holdout.RMSE
	}
	return fo.MeanRMSE
}
