package crossval

import (
	"context"
	"fmt"

	"volcast/internal/evaluate"
	"volcast/internal/regression"
	"volcast/internal/volatility"
)

// Options configures a cross-validation run.
type Options struct {
	// K is the fold count; zero means DefaultK.
	K int
	// Mode selects shuffled or expanding folds.
	Mode Mode
	// Seed drives the shuffled layout. Zero is replaced by a time-derived
	// seed, recorded on the result.
	Seed int64
}

// DefaultOptions returns ten shuffled folds with a fixed seed.
func DefaultOptions() Options {
	return Options{K: DefaultK, Mode: ModeShuffled, Seed: 42}
}

// FoldResult records the outcome of a single fold.
type FoldResult struct {
	Fold      int
	TrainSize int
	TestSize  int
	RMSE      float64
}

// Result carries the two outputs of a run: the mean out-of-sample RMSE
// across folds, and the training subset of the single best fold. The best
// fold is the one with the lowest test RMSE, ties resolved toward the
// earlier fold.
type Result struct {
	Family    regression.Family
	Mode      Mode
	K         int
	Seed      int64
	Folds     []FoldResult
	MeanRMSE  float64
	BestFold  int
	BestRMSE  float64
	BestTrain volatility.Dataset
}

// Run cross-validates one model family over the dataset. Each fold fits a
// fresh model on the fold's training rows and scores its predictions on
// the held-out rows. The context is checked between folds, so a cancelled
// run stops at the next fold boundary.
func Run(ctx context.Context, ds volatility.Dataset, family regression.Family, opts Options) (*Result, error) {
	if ds.Len() == 0 {
		return nil, &volatility.ValidationError{
			Field:   "dataset",
			Message: "cross-validation requires a non-empty dataset",
		}
	}

	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	seed := ResolveSeed(opts.Seed)

	folds, err := Assign(ds.Len(), k, opts.Mode, seed)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Family: family,
		Mode:   opts.Mode,
		K:      k,
		Seed:   seed,
		Folds:  make([]FoldResult, 0, len(folds)),
	}

	var sum float64
	haveBest := false
	for _, fold := range folds {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		model, err := regression.New(family)
		if err != nil {
			return nil, err
		}

		train := ds.Subset(fold.Train)
		test := ds.Subset(fold.Test)
		if err := model.Fit(train); err != nil {
			return nil, fmt.Errorf("fold %d: fit %s model: %w", fold.Index, family, err)
		}
		metrics, _, err := evaluate.EvaluateModel(model, test)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", fold.Index, err)
		}

		result.Folds = append(result.Folds, FoldResult{
			Fold:      fold.Index,
			TrainSize: train.Len(),
			TestSize:  test.Len(),
			RMSE:      metrics.RMSE,
		})
		sum += metrics.RMSE
		if !haveBest || metrics.RMSE < result.BestRMSE {
			haveBest = true
			result.BestFold = fold.Index
			result.BestRMSE = metrics.RMSE
			result.BestTrain = train
		}
	}

	result.MeanRMSE = sum / float64(len(result.Folds))
	return result, nil
}

// RunFamilies cross-validates each family in turn with the same options,
// stopping at the first failure. Families share the fold layout when the
// seed is non-zero, keeping the comparison apples to apples.
func RunFamilies(ctx context.Context, ds volatility.Dataset, families []regression.Family, opts Options) ([]*Result, error) {
	if opts.Seed == 0 {
		opts.Seed = ResolveSeed(0)
	}

	results := make([]*Result, 0, len(families))
	for _, family := range families {
		res, err := Run(ctx, ds, family, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
