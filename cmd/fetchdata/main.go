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

	"volcast/internal/config"
	"volcast/internal/infrastructure"
	"volcast/internal/marketdata"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (defaults to volcast.yaml when present)")
	symbolList := flag.String("symbols", "", "comma-separated symbols to download (overrides config)")
	fromStr := flag.String("from", "", "start date YYYY-MM-DD (defaults to five years before the end date)")
	toStr := flag.String("to", "", "end date YYYY-MM-DD (defaults to today)")
	outDir := flag.String("out", "data", "output directory for series CSV files")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	symbols := cfg.Fetch.Symbols
	if *symbolList != "" {
		symbols = splitList(*symbolList)
	}

	from, to, err := resolveRange(*fromStr, *toStr, time.Now())
	if err != nil {
		logger.Error("Invalid date range", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := infrastructure.EnsureTraceID(context.Background())
	client := marketdata.NewClient(marketdata.ClientConfig{
		BaseURL:           cfg.Fetch.BaseURL,
		Timeout:           cfg.Fetch.Timeout,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
		ValueColumn:       cfg.Data.ValueColumn,
	}, logger)

	logger.InfoContext(ctx, "Downloading daily series",
		slog.Any("symbols", symbols),
		slog.String("from", from.Format("2006-01-02")),
		slog.String("to", to.Format("2006-01-02")),
		slog.String("output_dir", *outDir))

	series, err := client.FetchAll(ctx, symbols, from, to)
	if err != nil {
		logger.ErrorContext(ctx, "Download failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.ErrorContext(ctx, "Failed to create output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for symbol, s := range series {
		path := filepath.Join(*outDir, seriesFileName(symbol))
		if err := marketdata.WriteSeriesCSV(path, s, "Close"); err != nil {
			logger.ErrorContext(ctx, "Failed to write series CSV",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.InfoContext(ctx, "Series saved",
			slog.String("symbol", symbol),
			slog.String("path", path),
			slog.Int("rows", s.Len()))
	}

	logger.InfoContext(ctx, "Download complete", slog.Int("series", len(series)))
}

// resolveRange parses the date flags. The end date defaults to today and
// the start date to five years before the end.
func resolveRange(fromStr, toStr string, now time.Time) (time.Time, time.Time, error) {
	to := now.UTC().Truncate(24 * time.Hour)
	if toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -to date: %w", err)
		}
		to = parsed
	}

	from := to.AddDate(-5, 0, 0)
	if fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse -from date: %w", err)
		}
		from = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %s..%s is inverted",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return from, to, nil
}

// seriesFileName maps a quote symbol onto a CSV file name, dropping the
// index prefix Stooq uses ("^spx" becomes "spx.csv").
func seriesFileName(symbol string) string {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(symbol), "^"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		name = "series"
	}
	return name + ".csv"
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
