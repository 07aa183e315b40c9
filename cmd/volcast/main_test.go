package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcast/internal/config"
	"volcast/internal/infrastructure"
	"volcast/internal/regression"
)

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(cfg, overrides{
		priceFile: "prices.csv",
		outputDir: "out",
		folds:     5,
		seed:      99,
		mode:      "expanding",
		families:  "linear, kernel",
	})

	assert.Equal(t, "prices.csv", cfg.Data.PriceFile)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, 5, cfg.Analysis.Folds)
	assert.Equal(t, int64(99), cfg.Analysis.Seed)
	assert.Equal(t, "expanding", cfg.Analysis.Mode)
	assert.Equal(t, []string{"linear", "kernel"}, cfg.Analysis.Families)

	// Fields without an override keep their configured values.
	assert.Equal(t, config.Default().Data.ImpliedFile, cfg.Data.ImpliedFile)
	assert.Equal(t, config.Default().Analysis.HoldoutFrac, cfg.Analysis.HoldoutFrac)
}

func TestParseFamilies(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []regression.Family
		wantErr bool
	}{
		{
			name:  "empty selects every family",
			input: nil,
			want:  regression.Families(),
		},
		{
			name:  "subset preserves order",
			input: []string{"kernel", "linear"},
			want:  []regression.Family{regression.FamilyKernel, regression.FamilyLinear},
		},
		{
			name:  "alias deduplicates",
			input: []string{"ols", "linear"},
			want:  []regression.Family{regression.FamilyLinear},
		},
		{
			name:    "unknown family",
			input:   []string{"forest"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFamilies(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"linear", "gam"}, splitList(" linear , gam ,"))
	assert.Empty(t, splitList(" , "))
}

func TestExogWindows(t *testing.T) {
	windows := exogWindows([]int{5, 63})
	require.Len(t, windows, 2)
	assert.Equal(t, 5, windows[0].Days())
	assert.Equal(t, 63, windows[1].Days())
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	pricePath := filepath.Join(dir, "spx.csv")
	impliedPath := filepath.Join(dir, "vix.csv")
	writeSyntheticSeries(t, pricePath, impliedPath, 220)

	cfg := config.Default()
	cfg.Data.PriceFile = pricePath
	cfg.Data.ImpliedFile = impliedPath
	cfg.Data.SlopeFile = ""
	cfg.Data.Window = 21
	cfg.Data.ExogWindows = nil
	cfg.Analysis.Families = []string{"linear", "kernel"}
	cfg.Analysis.Folds = 5
	cfg.Analysis.Seed = 7
	cfg.Analysis.Mode = "shuffled"
	cfg.Analysis.HoldoutFrac = 0.2
	cfg.Output.Dir = filepath.Join(dir, "reports")
	cfg.Output.MetricsFile = ""

	providers := &infrastructure.OTelProviders{Logger: slog.Default()}
	rep, reportDir, err := run(context.Background(), cfg, slog.Default(), providers, nil)
	require.NoError(t, err)
	require.Len(t, rep.Families, 2)

	assert.Equal(t, "shuffled", rep.Mode)
	assert.Equal(t, 5, rep.K)
	assert.NotEmpty(t, rep.DatasetFingerprint)
	for _, fo := range rep.Families {
		assert.Len(t, fo.Folds, 5)
		assert.Greater(t, fo.Holdout.N, 0)
		assert.Greater(t, fo.Holdout.RMSE, 0.0)
		assert.Len(t, fo.Predictions, fo.Holdout.N)
	}

	for _, name := range []string{"comparison.csv", "folds.csv", "predictions.csv", "result.json", "summary.txt", "result.xlsx"} {
		_, err := os.Stat(filepath.Join(reportDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunPipelineRejectsUnknownMode(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.Mode = "sideways"

	providers := &infrastructure.OTelProviders{Logger: slog.Default()}
	_, _, err := run(context.Background(), cfg, slog.Default(), providers, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")
}

// writeSyntheticSeries writes aligned price and implied CSV files: a price
// path with slowly varying return amplitude and an implied level tracking
// the same cycle with a premium.
func writeSyntheticSeries(t *testing.T, pricePath, impliedPath string, days int) {
	t.Helper()

	priceFile, err := os.Create(pricePath)
	require.NoError(t, err)
	defer priceFile.Close()
	impliedFile, err := os.Create(impliedPath)
	require.NoError(t, err)
	defer impliedFile.Close()

	fmt.Fprintln(priceFile, "Date,Close")
	fmt.Fprintln(impliedFile, "Date,Close")

	price := 4000.0
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		ret := 0.01 * math.Sin(float64(i)/3) * (1 + 0.5*math.Sin(float64(i)/40))
		price *= 1 + ret
		implied := 15 + 8*math.Abs(math.Sin(float64(i)/40))
		fmt.Fprintf(priceFile, "%s,%.4f\n", date, price)
		fmt.Fprintf(impliedFile, "%s,%.4f\n", date, implied)
	}
}
