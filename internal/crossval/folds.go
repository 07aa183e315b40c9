// Package crossval assigns k-fold splits over a volatility dataset and
// drives the fit/predict/score loop that compares model families.
//
// Two fold layouts are supported. Shuffled folds cycle labels over the
// rows and permute them with a seeded generator, giving near equal-sized
// folds whose union recovers the dataset. Expanding folds respect time
// order:
// the rows are cut into k+1 contiguous segments and fold i trains on
// segments up to i while testing on segment i+1, so every test row is
// later than every training row.
package crossval

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"volcast/internal/volatility"
)

// DefaultK is the fold count used when the caller does not set one.
const DefaultK = 10

// Mode selects how folds are laid out over the dataset.
type Mode int

const (
	// ModeShuffled permutes fold labels uniformly over all rows.
	ModeShuffled Mode = iota
	// ModeExpanding keeps folds contiguous with an expanding training
	// origin.
	ModeExpanding
)

// String returns the canonical lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeShuffled:
		return "shuffled"
	case ModeExpanding:
		return "expanding"
	default:
		return "unknown"
	}
}

// IsValid reports whether the mode is supported.
func (m Mode) IsValid() bool {
	return m == ModeShuffled || m == ModeExpanding
}

// ParseMode converts a mode name into a Mode. Matching is case-insensitive.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "shuffled":
		return ModeShuffled, nil
	case "expanding":
		return ModeExpanding, nil
	default:
		return 0, &volatility.ValidationError{
			Field:   "mode",
			Message: "unknown cross-validation mode: " + name,
			Value:   name,
		}
	}
}

// Fold holds the train and test row indices of one fold. Indices refer to
// the dataset the fold was assigned over and are sorted ascending.
type Fold struct {
	Index int
	Train []int
	Test  []int
}

// ResolveSeed returns the seed unchanged, or a time-derived seed when zero.
// Callers wanting reproducible folds must pass a non-zero seed.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Assign builds k folds over n rows. The seed is used verbatim; pass it
// through ResolveSeed first when zero should mean "random".
func Assign(n, k int, mode Mode, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, &volatility.ValidationError{
			Field:   "k",
			Message: fmt.Sprintf("cross-validation requires at least 2 folds, got %d", k),
			Value:   k,
		}
	}
	if k > n {
		return nil, &volatility.ValidationError{
			Field:   "k",
			Message: fmt.Sprintf("cannot split %d observations into %d folds", n, k),
			Value:   k,
		}
	}
	if !mode.IsValid() {
		return nil, &volatility.ValidationError{
			Field:   "mode",
			Message: "unknown cross-validation mode",
			Value:   int(mode),
		}
	}

	if mode == ModeExpanding {
		return expandingFolds(n, k), nil
	}
	return shuffledFolds(n, k, seed), nil
}

// shuffledFolds cycles fold labels over the rows and permutes the label
// vector. Fold sizes differ by at most one row.
func shuffledFolds(n, k int, seed int64) []Fold {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i % k
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		labels[i], labels[j] = labels[j], labels[i]
	})

	folds := make([]Fold, k)
	for f := range folds {
		folds[f].Index = f + 1
	}
	for i, label := range labels {
		folds[label].Test = append(folds[label].Test, i)
	}
	for f := range folds {
		folds[f].Train = complement(n, folds[f].Test)
	}
	return folds
}

// expandingFolds cuts the rows into k+1 contiguous segments. Fold i trains
// on segments 1..i and tests on segment i+1, so training always precedes
// testing in time.
func expandingFolds(n, k int) []Fold {
	bounds := make([]int, k+2)
	for i := range bounds {
		bounds[i] = i * n / (k + 1)
	}
	bounds[k+1] = n

	folds := make([]Fold, k)
	for f := 0; f < k; f++ {
		cut, end := bounds[f+1], bounds[f+2]
		folds[f] = Fold{
			Index: f + 1,
			Train: ascending(0, cut),
			Test:  ascending(cut, end),
		}
	}
	return folds
}

// complement returns the sorted indices in [0,n) not present in the sorted
// slice test.
func complement(n int, test []int) []int {
	train := make([]int, 0, n-len(test))
	next := 0
	for i := 0; i < n; i++ {
		if next < len(test) && test[next] == i {
			next++
			continue
		}
		train = append(train, i)
	}
	return train
}

func ascending(lo, hi int) []int {
	out := make([]int, hi-lo)
	for i := range out {
		out[i] = lo + i
	}
	return out
}
