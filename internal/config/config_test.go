package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volcast/internal/volatility"
)

var volcastEnvVars = []string{
	"VOLCAST_DATA_PRICE_FILE", "VOLCAST_DATA_IMPLIED_FILE", "VOLCAST_DATA_SLOPE_FILE",
	"VOLCAST_DATA_WINDOW", "VOLCAST_DATA_EXOG_WINDOWS", "VOLCAST_DATA_IMPLIED_DIVISOR",
	"VOLCAST_ANALYSIS_FAMILIES", "VOLCAST_ANALYSIS_FOLDS", "VOLCAST_ANALYSIS_MODE",
	"VOLCAST_ANALYSIS_SEED", "VOLCAST_ANALYSIS_HOLDOUT_FRAC",
	"VOLCAST_FETCH_BASE_URL", "VOLCAST_FETCH_SYMBOLS",
	"VOLCAST_LOGGING_LEVEL", "VOLCAST_LOGGING_OUTPUT",
	"VOLCAST_OUTPUT_DIR", "VOLCAST_OUTPUT_METRICS_FILE",
}

// resetEnv clears every VOLCAST variable this file touches and restores
// the original values when the test finishes.
func resetEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string)
	for _, key := range volcastEnvVars {
		original[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for key, val := range original {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	resetEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/spx.csv", cfg.Data.PriceFile)
	assert.Equal(t, "data/vix.csv", cfg.Data.ImpliedFile)
	assert.Equal(t, "close", cfg.Data.ValueColumn)
	assert.Equal(t, 100.0, cfg.Data.ImpliedDivisor)
	assert.Equal(t, 21, cfg.Data.Window)
	assert.Equal(t, []int{5, 63}, cfg.Data.ExogWindows)

	assert.Equal(t, []string{"linear", "kernel", "gam", "lasso", "sarimax"}, cfg.Analysis.Families)
	assert.Equal(t, 10, cfg.Analysis.Folds)
	assert.Equal(t, "shuffled", cfg.Analysis.Mode)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
	assert.Equal(t, 0.2, cfg.Analysis.HoldoutFrac)

	assert.Equal(t, "https://stooq.com/q/d/l/", cfg.Fetch.BaseURL)
	assert.Equal(t, []string{"^spx", "^vix"}, cfg.Fetch.Symbols)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)

	assert.Equal(t, "data/reports", cfg.Output.Dir)
	assert.Equal(t, "volcast.prom", cfg.Output.MetricsFile)
}

func TestLoadFromEnv(t *testing.T) {
	resetEnv(t)
	os.Setenv("VOLCAST_DATA_PRICE_FILE", "inputs/sp500.csv")
	os.Setenv("VOLCAST_ANALYSIS_FOLDS", "5")
	os.Setenv("VOLCAST_ANALYSIS_MODE", "expanding")
	os.Setenv("VOLCAST_ANALYSIS_FAMILIES", "linear,lasso")
	os.Setenv("VOLCAST_DATA_EXOG_WINDOWS", "10,42")
	os.Setenv("VOLCAST_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "inputs/sp500.csv", cfg.Data.PriceFile)
	assert.Equal(t, 5, cfg.Analysis.Folds)
	assert.Equal(t, "expanding", cfg.Analysis.Mode)
	assert.Equal(t, []string{"linear", "lasso"}, cfg.Analysis.Families)
	assert.Equal(t, []int{10, 42}, cfg.Data.ExogWindows)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched fields keep their defaults
	assert.Equal(t, "data/vix.csv", cfg.Data.ImpliedFile)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
}

func TestLoadFromFile(t *testing.T) {
	resetEnv(t)
	path := writeConfigFile(t, `
data:
  price_file: inputs/prices.csv
  window: 10
analysis:
  folds: 4
  seed: 7
output:
  dir: out/reports
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Relative paths in the file resolve against its directory
	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "inputs/prices.csv"), cfg.Data.PriceFile)
	assert.Equal(t, filepath.Join(dir, "out/reports"), cfg.Output.Dir)
	assert.Equal(t, 10, cfg.Data.Window)
	assert.Equal(t, 4, cfg.Analysis.Folds)
	assert.Equal(t, int64(7), cfg.Analysis.Seed)

	// File leaves the rest to defaults, which stay working-directory relative
	assert.Equal(t, "data/vix.csv", cfg.Data.ImpliedFile)
	assert.Equal(t, "shuffled", cfg.Analysis.Mode)
}

func TestLoadKeepsAbsolutePaths(t *testing.T) {
	resetEnv(t)
	abs := filepath.Join(t.TempDir(), "prices.csv")
	path := writeConfigFile(t, "data:\n  price_file: "+abs+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Data.PriceFile)
}

func TestEnvOverridesFile(t *testing.T) {
	resetEnv(t)
	os.Setenv("VOLCAST_ANALYSIS_FOLDS", "7")
	path := writeConfigFile(t, "analysis:\n  folds: 4\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Analysis.Folds)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestLoadMalformedFile(t *testing.T) {
	resetEnv(t)
	path := writeConfigFile(t, "analysis: [not a mapping\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantField string
	}{
		{name: "unknown family", key: "VOLCAST_ANALYSIS_FAMILIES", value: "linear,quadratic", wantField: "families[1]"},
		{name: "unknown mode", key: "VOLCAST_ANALYSIS_MODE", value: "rolling", wantField: "mode"},
		{name: "single fold", key: "VOLCAST_ANALYSIS_FOLDS", value: "1", wantField: "folds"},
		{name: "holdout too large", key: "VOLCAST_ANALYSIS_HOLDOUT_FRAC", value: "1.5", wantField: "holdout_frac"},
		{name: "tiny window", key: "VOLCAST_DATA_WINDOW", value: "1", wantField: "window"},
		{name: "bad log level", key: "VOLCAST_LOGGING_LEVEL", value: "verbose", wantField: "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEnv(t)
			os.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			var ve *volatility.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestDefaultPassesValidation(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.validate())
}

func TestMergeConfigsPrecedence(t *testing.T) {
	base := *Default()
	overlay := Config{}
	overlay.Analysis.Folds = 3
	overlay.Logging.Level = "warn"

	merged := mergeConfigs(base, overlay)
	assert.Equal(t, 3, merged.Analysis.Folds)
	assert.Equal(t, "warn", merged.Logging.Level)
	assert.Equal(t, base.Data.PriceFile, merged.Data.PriceFile)
	assert.Equal(t, base.Analysis.Families, merged.Analysis.Families)
}
