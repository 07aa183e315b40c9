package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Fetch    FetchConfig    `yaml:"fetch" envconfig:"FETCH"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Output   OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
}

// DataConfig locates the input series and controls feature assembly
type DataConfig struct {
	PriceFile      string  `yaml:"price_file" envconfig:"PRICE_FILE" validate:"required"`
	ImpliedFile    string  `yaml:"implied_file" envconfig:"IMPLIED_FILE" validate:"required"`
	SlopeFile      string  `yaml:"slope_file" envconfig:"SLOPE_FILE"`
	ValueColumn    string  `yaml:"value_column" envconfig:"VALUE_COLUMN"`
	ImpliedDivisor float64 `yaml:"implied_divisor" envconfig:"IMPLIED_DIVISOR" validate:"gt=0"`
	Window         int     `yaml:"window" envconfig:"WINDOW" validate:"gte=2"`
	ExogWindows    []int   `yaml:"exog_windows" envconfig:"EXOG_WINDOWS" validate:"dive,gte=2"`
}

// AnalysisConfig controls the cross-validation run
type AnalysisConfig struct {
	Families    []string `yaml:"families" envconfig:"FAMILIES" validate:"required,dive,family"`
	Folds       int      `yaml:"folds" envconfig:"FOLDS" validate:"gte=2"`
	Mode        string   `yaml:"mode" envconfig:"MODE" validate:"cvmode"`
	Seed        int64    `yaml:"seed" envconfig:"SEED"`
	HoldoutFrac float64  `yaml:"holdout_frac" envconfig:"HOLDOUT_FRAC" validate:"gt=0,lt=1"`
}

// FetchConfig configures the daily-series download client
type FetchConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"url"`
	Symbols           []string      `yaml:"symbols" envconfig:"SYMBOLS"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	Burst             int           `yaml:"burst" envconfig:"BURST" validate:"gte=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// OutputConfig controls where reports and batch metrics land
type OutputConfig struct {
	Dir         string `yaml:"dir" envconfig:"DIR" validate:"required"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Load loads configuration from environment variables and config file.
// An empty configFile falls back to the conventional locations; a named
// file that does not exist is an error.
func Load(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("VOLCAST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile == "" {
		configFile = findConfigFile()
	} else if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configFile, err)
	}
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	// Fill whatever env and file left unset
	cfg = mergeConfigs(*Default(), cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile loads configuration from YAML file. Relative paths in the
// file resolve against the file's directory, so a config travels with the
// data it names; environment and flag values stay working-directory
// relative.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	resolvePaths(&cfg, filepath.Dir(filePath))
	return &cfg, nil
}

// resolvePaths rewrites relative file and directory fields against dir.
func resolvePaths(cfg *Config, dir string) {
	if dir == "" || dir == "." {
		return
	}
	for _, p := range []*string{
		&cfg.Data.PriceFile,
		&cfg.Data.ImpliedFile,
		&cfg.Data.SlopeFile,
		&cfg.Logging.FilePath,
		&cfg.Output.Dir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// mergeConfigs merges the base config under the overlay: overlay fields
// win where set, base fills the rest. Boolean fields stay overlay-valued,
// so a false in the overlay cannot be told apart from unset.
func mergeConfigs(base, overlay Config) Config {
	out := overlay

	if out.Data.PriceFile == "" {
		out.Data.PriceFile = base.Data.PriceFile
	}
	if out.Data.ImpliedFile == "" {
		out.Data.ImpliedFile = base.Data.ImpliedFile
	}
	if out.Data.SlopeFile == "" {
		out.Data.SlopeFile = base.Data.SlopeFile
	}
	if out.Data.ValueColumn == "" {
		out.Data.ValueColumn = base.Data.ValueColumn
	}
	if out.Data.ImpliedDivisor == 0 {
		out.Data.ImpliedDivisor = base.Data.ImpliedDivisor
	}
	if out.Data.Window == 0 {
		out.Data.Window = base.Data.Window
	}
	if len(out.Data.ExogWindows) == 0 {
		out.Data.ExogWindows = base.Data.ExogWindows
	}

	if len(out.Analysis.Families) == 0 {
		out.Analysis.Families = base.Analysis.Families
	}
	if out.Analysis.Folds == 0 {
		out.Analysis.Folds = base.Analysis.Folds
	}
	if out.Analysis.Mode == "" {
		out.Analysis.Mode = base.Analysis.Mode
	}
	if out.Analysis.Seed == 0 {
		out.Analysis.Seed = base.Analysis.Seed
	}
	if out.Analysis.HoldoutFrac == 0 {
		out.Analysis.HoldoutFrac = base.Analysis.HoldoutFrac
	}

	if out.Fetch.BaseURL == "" {
		out.Fetch.BaseURL = base.Fetch.BaseURL
	}
	if len(out.Fetch.Symbols) == 0 {
		out.Fetch.Symbols = base.Fetch.Symbols
	}
	if out.Fetch.Timeout == 0 {
		out.Fetch.Timeout = base.Fetch.Timeout
	}
	if out.Fetch.RequestsPerSecond == 0 {
		out.Fetch.RequestsPerSecond = base.Fetch.RequestsPerSecond
	}
	if out.Fetch.Burst == 0 {
		out.Fetch.Burst = base.Fetch.Burst
	}

	if out.Logging.Level == "" {
		out.Logging.Level = base.Logging.Level
	}
	if out.Logging.Format == "" {
		out.Logging.Format = base.Logging.Format
	}
	if out.Logging.Output == "" {
		out.Logging.Output = base.Logging.Output
	}
	if out.Logging.FilePath == "" {
		out.Logging.FilePath = base.Logging.FilePath
	}

	if out.Output.Dir == "" {
		out.Output.Dir = base.Output.Dir
	}
	if out.Output.MetricsFile == "" {
		out.Output.MetricsFile = base.Output.MetricsFile
	}

	return out
}

// findConfigFile returns the first config file found in common locations
func findConfigFile() string {
	locations := []string{
		"volcast.yaml",
		"configs/volcast.yaml",
		"../configs/volcast.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Data: DataConfig{
			PriceFile:      "data/spx.csv",
			ImpliedFile:    "data/vix.csv",
			ValueColumn:    "close",
			ImpliedDivisor: 100,
			Window:         21,
			ExogWindows:    []int{5, 63},
		},
		Analysis: AnalysisConfig{
			Families:    []string{"linear", "kernel", "gam", "lasso", "sarimax"},
			Folds:       10,
			Mode:        "shuffled",
			Seed:        42,
			HoldoutFrac: 0.2,
		},
		Fetch: FetchConfig{
			BaseURL:           "https://stooq.com/q/d/l/",
			Symbols:           []string{"^spx", "^vix"},
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "both",
			FilePath:    "logs/volcast.log",
			Development: false,
		},
		Output: OutputConfig{
			Dir:         "data/reports",
			MetricsFile: "volcast.prom",
		},
	}
}
