package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"volcast/internal/config"
	"volcast/internal/crossval"
	"volcast/internal/evaluate"
	"volcast/internal/infrastructure"
	"volcast/internal/marketdata"
	"volcast/internal/regression"
	"volcast/internal/report"
	"volcast/internal/volatility"
)

// overrides carries the flag values that take precedence over file and
// environment configuration.
type overrides struct {
	priceFile   string
	impliedFile string
	slopeFile   string
	outputDir   string
	folds       int
	seed        int64
	mode        string
	families    string
}

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (defaults to volcast.yaml when present)")
	priceFile := flag.String("price", "", "price series CSV path (overrides config)")
	impliedFile := flag.String("implied", "", "implied-volatility index CSV path (overrides config)")
	slopeFile := flag.String("slope", "", "longer-horizon implied index CSV path for the term-structure column (overrides config)")
	outputDir := flag.String("out", "", "report output directory (overrides config)")
	folds := flag.Int("folds", 0, "cross-validation fold count (overrides config)")
	seed := flag.Int64("seed", 0, "fold shuffle seed (overrides config; 0 keeps the configured seed)")
	mode := flag.String("mode", "", "fold mode, shuffled or expanding (overrides config)")
	families := flag.String("families", "", "comma-separated model families to compare (overrides config)")
	tracing := flag.Bool("trace", false, "write pipeline spans to stdout")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	applyOverrides(cfg, overrides{
		priceFile:   *priceFile,
		impliedFile: *impliedFile,
		slopeFile:   *slopeFile,
		outputDir:   *outputDir,
		folds:       *folds,
		seed:        *seed,
		mode:        *mode,
		families:    *families,
	})

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.EnsureTraceID(context.Background())

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.EnableTracing = *tracing
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize OpenTelemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("OpenTelemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	var pipeline *infrastructure.PipelineMetrics
	if providers.Meter != nil {
		pipeline, err = infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to create pipeline metrics", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	rep, reportDir, err := run(ctx, cfg, logger, providers, pipeline)
	if err != nil {
		logger.ErrorContext(ctx, "Analysis run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	printSummary(rep, reportDir)
}

// run executes the full pipeline: load series, assemble the dataset, hold
// out the tail, cross-validate every family, evaluate on the holdout, and
// persist the report set.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders, pipeline *infrastructure.PipelineMetrics) (*report.Report, string, error) {
	start := time.Now()
	ctx, span := startSpan(ctx, providers.Tracer, "volcast.run")
	defer span.End()

	logger.InfoContext(ctx, "Starting volatility model comparison",
		slog.String("price_file", cfg.Data.PriceFile),
		slog.String("implied_file", cfg.Data.ImpliedFile),
		slog.Int("folds", cfg.Analysis.Folds),
		slog.String("mode", cfg.Analysis.Mode))

	families, err := parseFamilies(cfg.Analysis.Families)
	if err != nil {
		return nil, "", err
	}
	cvMode, err := crossval.ParseMode(cfg.Analysis.Mode)
	if err != nil {
		return nil, "", err
	}

	loadCtx, loadSpan := startSpan(ctx, providers.Tracer, "volcast.load")
	prices, err := marketdata.LoadSeriesCSV(cfg.Data.PriceFile, cfg.Data.ValueColumn)
	if err != nil {
		loadSpan.End()
		return nil, "", fmt.Errorf("load price series: %w", err)
	}
	implied, err := marketdata.LoadSeriesCSV(cfg.Data.ImpliedFile, "")
	if err != nil {
		loadSpan.End()
		return nil, "", fmt.Errorf("load implied series: %w", err)
	}
	seriesCount := 2
	var term *volatility.Series
	if cfg.Data.SlopeFile != "" {
		s, err := marketdata.LoadSeriesCSV(cfg.Data.SlopeFile, "")
		if err != nil {
			loadSpan.End()
			return nil, "", fmt.Errorf("load term series: %w", err)
		}
		term = &s
		seriesCount = 3
	}
	loadSpan.End()
	logger.InfoContext(loadCtx, "Loaded input series",
		slog.Int("price_rows", prices.Len()),
		slog.Int("implied_rows", implied.Len()),
		slog.Bool("term_series", term != nil))

	featureCfg := volatility.FeatureConfig{
		Window:         volatility.Window(cfg.Data.Window),
		ImpliedDivisor: cfg.Data.ImpliedDivisor,
		ExogWindows:    exogWindows(cfg.Data.ExogWindows),
	}
	ds, err := volatility.BuildDataset(prices, implied, term, featureCfg)
	if err != nil {
		return nil, "", fmt.Errorf("build dataset: %w", err)
	}
	infrastructure.RecordDataMetrics(ctx, pipeline, seriesCount, ds.Len())

	first, last := ds.DateRange()
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"dataset.observations": ds.Len(),
		"dataset.start":        first.Format("2006-01-02"),
		"dataset.end":          last.Format("2006-01-02"),
	})
	logger.InfoContext(ctx, "Assembled dataset",
		slog.Int("observations", ds.Len()),
		slog.String("start", first.Format("2006-01-02")),
		slog.String("end", last.Format("2006-01-02")),
		slog.Any("exog", ds.ExogNames()))

	train, holdout, err := ds.SplitFraction(1 - cfg.Analysis.HoldoutFrac)
	if err != nil {
		return nil, "", fmt.Errorf("split holdout: %w", err)
	}
	logger.InfoContext(ctx, "Split holdout window",
		slog.Int("train", train.Len()),
		slog.Int("holdout", holdout.Len()))

	opts := crossval.Options{
		K:    cfg.Analysis.Folds,
		Mode: cvMode,
		Seed: crossval.ResolveSeed(cfg.Analysis.Seed),
	}

	rep := report.New(ds, marketdata.Fingerprint(ds))
	for _, family := range families {
		if err := evaluateFamily(ctx, rep, train, holdout, family, opts, logger, providers, pipeline); err != nil {
			return nil, "", err
		}
	}

	reportDir := filepath.Join(cfg.Output.Dir, "volcast_"+start.Format("20060102_150405"))
	_, saveSpan := startSpan(ctx, providers.Tracer, "volcast.report")
	paths, err := report.SaveAll(rep, reportDir)
	saveSpan.End()
	if err != nil {
		return nil, "", err
	}
	infrastructure.RecordReportsWritten(ctx, pipeline, len(paths))
	logger.InfoContext(ctx, "Reports written",
		slog.Int("files", len(paths)),
		slog.String("dir", reportDir))

	if providers.Meter != nil {
		if sys, err := infrastructure.NewSystemMetrics(providers.Meter); err == nil {
			stats := sys.Collect(ctx, start)
			logger.DebugContext(ctx, "Run resource usage", slog.Any("stats", stats.FormatStats()))
		}
	}
	if providers.Registry != nil && cfg.Output.MetricsFile != "" {
		metricsPath := filepath.Join(reportDir, cfg.Output.MetricsFile)
		if err := report.WriteMetricsTextfile(providers.Registry, metricsPath); err != nil {
			logger.WarnContext(ctx, "Failed to write metrics textfile", slog.String("error", err.Error()))
		}
	}

	logger.InfoContext(ctx, "Analysis complete",
		slog.Duration("duration", time.Since(start)),
		slog.Int("families", len(rep.Families)))
	return rep, reportDir, nil
}

// evaluateFamily cross-validates one family on the training window, refits
// it on the whole window, scores the holdout, and adds both to the report.
func evaluateFamily(ctx context.Context, rep *report.Report, train, holdout volatility.Dataset, family regression.Family, opts crossval.Options, logger *slog.Logger, providers *infrastructure.OTelProviders, pipeline *infrastructure.PipelineMetrics) error {
	cvStart := time.Now()
	cvCtx, cvSpan := startSpan(ctx, providers.Tracer, "volcast.crossval")
	infrastructure.SetSpanAttributes(cvCtx, map[string]interface{}{
		"model.family": family.String(),
		"cv.folds":     opts.K,
		"cv.mode":      opts.Mode.String(),
	})

	res, err := crossval.Run(cvCtx, train, family, opts)
	if err != nil {
		infrastructure.RecordError(cvCtx, err)
		cvSpan.End()
		return err
	}
	for _, fold := range res.Folds {
		infrastructure.RecordFoldMetrics(cvCtx, pipeline, family.String(), fold.Fold, fold.RMSE)
	}
	infrastructure.RecordCVDuration(cvCtx, pipeline, family.String(), time.Since(cvStart))
	cvSpan.End()

	model, err := regression.New(family)
	if err != nil {
		return err
	}
	fitStart := time.Now()
	infrastructure.RecordActiveFitChange(ctx, pipeline, 1, family.String())
	err = model.Fit(train)
	infrastructure.RecordActiveFitChange(ctx, pipeline, -1, family.String())
	infrastructure.RecordFitMetrics(ctx, pipeline, family.String(), time.Since(fitStart), err == nil, err)
	if err != nil {
		return fmt.Errorf("fit %s on training window: %w", family, err)
	}

	metrics, predicted, err := evaluate.EvaluateModel(model, holdout)
	if err != nil {
		return fmt.Errorf("evaluate %s on holdout: %w", family, err)
	}

	preds := make([]report.Prediction, holdout.Len())
	for i, o := range holdout.Observations() {
		preds[i] = report.Prediction{Date: o.Date, Actual: o.Response, Predicted: predicted[i]}
	}
	rep.AddFamily(res, metrics, preds)

	logger.InfoContext(ctx, "Family evaluated",
		slog.String("family", family.String()),
		slog.Float64("cv_mean_rmse", res.MeanRMSE),
		slog.Int("best_fold", res.BestFold),
		slog.Float64("holdout_rmse", metrics.RMSE),
		slog.Float64("holdout_r2", metrics.R2))
	return nil
}

// applyOverrides merges non-zero flag values into the loaded configuration.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.priceFile != "" {
		cfg.Data.PriceFile = o.priceFile
	}
	if o.impliedFile != "" {
		cfg.Data.ImpliedFile = o.impliedFile
	}
	if o.slopeFile != "" {
		cfg.Data.SlopeFile = o.slopeFile
	}
	if o.outputDir != "" {
		cfg.Output.Dir = o.outputDir
	}
	if o.folds != 0 {
		cfg.Analysis.Folds = o.folds
	}
	if o.seed != 0 {
		cfg.Analysis.Seed = o.seed
	}
	if o.mode != "" {
		cfg.Analysis.Mode = o.mode
	}
	if o.families != "" {
		cfg.Analysis.Families = splitList(o.families)
	}
}

// parseFamilies resolves family names to the enum, deduplicated in input
// order. An empty list selects every supported family.
func parseFamilies(names []string) ([]regression.Family, error) {
	if len(names) == 0 {
		return regression.Families(), nil
	}
	out := make([]regression.Family, 0, len(names))
	seen := make(map[regression.Family]bool)
	for _, name := range names {
		f, err := regression.ParseFamily(name)
		if err != nil {
			return nil, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out, nil
}

func exogWindows(days []int) []volatility.Window {
	out := make([]volatility.Window, len(days))
	for i, d := range days {
		out[i] = volatility.Window(d)
	}
	return out
}

func splitList(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// startSpan opens a pipeline stage span when tracing is enabled; otherwise
// it returns the span already on the context, a no-op by default.
func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name)
}

func printSummary(rep *report.Report, reportDir string) {
	fmt.Println("\n=== MODEL FAMILY COMPARISON (ranked by holdout RMSE) ===")
	fmt.Println("Family  | CV Mean RMSE | Best Fold | Holdout RMSE | Holdout MAE | R2      | DW")
	fmt.Println("--------|--------------|-----------|--------------|-------------|---------|------")

	for _, fo := range rep.Ranking() {
		fmt.Printf("%-7s | %12.6f | %9d | %12.6f | %11.6f | %7.4f | %4.2f\n",
			fo.Family, fo.MeanRMSE, fo.BestFold,
			fo.Holdout.RMSE, fo.Holdout.MAE, fo.Holdout.R2, fo.Holdout.DurbinWatson)
	}

	if best, ok := rep.BestFamily(); ok {
		fmt.Printf("\nBest family: %s (holdout RMSE %.6f)\n", best.Family, best.Holdout.RMSE)
		if best.Holdout.DurbinWatson < 1 {
			fmt.Println("Note: residuals show strong positive autocorrelation; prefer a temporal model over a cross-sectional fit.")
		}
	}
	fmt.Printf("Reports written to %s\n", reportDir)
}
