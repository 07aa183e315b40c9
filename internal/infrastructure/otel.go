package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "volcast"
	ServiceVersion = "v1.0.0"
	MeterName      = "volcast"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	// Registry backs the prometheus exporter. A run snapshots it into a
	// textfile on exit instead of serving an HTTP endpoint.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  false, // span dumps on stdout are opt-in for batch runs
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes OpenTelemetry for a pipeline run
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	// Create resource
	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	// Initialize tracing
	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	// Initialize metrics
	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Set up global propagators for trace context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		// No exporter - tracing disabled
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Create tracer provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// Dedicated registry so the caller can gather a snapshot later
		registry := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.Registry = registry

		// Create meter provider with Prometheus reader
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		// Set global meter provider
		otel.SetMeterProvider(mp)

	case "none":
		// No exporter - metrics disabled
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// CreatePipelineMetrics creates application-specific metrics
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	// Data metrics
	seriesLoaded, err := meter.Int64Counter(
		"series_loaded_total",
		metric.WithDescription("Total number of input series loaded"),
	)
	if err != nil {
		return nil, err
	}

	datasetObservations, err := meter.Int64Counter(
		"dataset_observations_total",
		metric.WithDescription("Total number of aligned dataset observations assembled"),
	)
	if err != nil {
		return nil, err
	}

	// Cross-validation metrics
	foldsEvaluated, err := meter.Int64Counter(
		"cv_folds_evaluated_total",
		metric.WithDescription("Total number of cross-validation folds evaluated"),
	)
	if err != nil {
		return nil, err
	}

	foldRMSE, err := meter.Float64Histogram(
		"cv_fold_rmse",
		metric.WithDescription("Distribution of per-fold test RMSE"),
	)
	if err != nil {
		return nil, err
	}

	cvDuration, err := meter.Float64Histogram(
		"cv_run_duration_seconds",
		metric.WithDescription("Cross-validation run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	// Model fit metrics
	fitsTotal, err := meter.Int64Counter(
		"model_fits_total",
		metric.WithDescription("Total number of model fits"),
	)
	if err != nil {
		return nil, err
	}

	fitDuration, err := meter.Float64Histogram(
		"model_fit_duration_seconds",
		metric.WithDescription("Model fit duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fitErrors, err := meter.Int64Counter(
		"model_fit_errors_total",
		metric.WithDescription("Total number of failed model fits"),
	)
	if err != nil {
		return nil, err
	}

	activeFits, err := meter.Int64UpDownCounter(
		"model_active_fits",
		metric.WithDescription("Number of model fits in progress"),
	)
	if err != nil {
		return nil, err
	}

	// Report metrics
	reportsWritten, err := meter.Int64Counter(
		"reports_written_total",
		metric.WithDescription("Total number of report files written"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		// Data metrics
		SeriesLoaded:        seriesLoaded,
		DatasetObservations: datasetObservations,

		// Cross-validation metrics
		FoldsEvaluated: foldsEvaluated,
		FoldRMSE:       foldRMSE,
		CVDuration:     cvDuration,

		// Model fit metrics
		FitsTotal:   fitsTotal,
		FitDuration: fitDuration,
		FitErrors:   fitErrors,
		ActiveFits:  activeFits,

		// Report metrics
		ReportsWritten: reportsWritten,
	}, nil
}

// PipelineMetrics holds all application-specific metrics
type PipelineMetrics struct {
	// Data metrics
	SeriesLoaded        metric.Int64Counter
	DatasetObservations metric.Int64Counter

	// Cross-validation metrics
	FoldsEvaluated metric.Int64Counter
	FoldRMSE       metric.Float64Histogram
	CVDuration     metric.Float64Histogram

	// Model fit metrics
	FitsTotal   metric.Int64Counter
	FitDuration metric.Float64Histogram
	FitErrors   metric.Int64Counter
	ActiveFits  metric.Int64UpDownCounter

	// Report metrics
	ReportsWritten metric.Int64Counter
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

// RecordFitMetrics records metrics for a single model fit
func RecordFitMetrics(ctx context.Context, metrics *PipelineMetrics, family string, duration time.Duration, success bool, err error) {
	if metrics == nil {
		return
	}

	// Common attributes
	attrs := []attribute.KeyValue{
		attribute.String("model.family", family),
	}

	// Record fit
	metrics.FitsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	// Record duration
	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	durationAttrs := append(attrs, statusAttr)
	metrics.FitDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))

	// Record errors
	if err != nil {
		errorAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		metrics.FitErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}

	// Add span event
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("fit.metrics_recorded",
			trace.WithAttributes(
				attribute.String("model.family", family),
				attribute.Bool("success", success),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordDataMetrics records the number of input series loaded and the size
// of the assembled dataset
func RecordDataMetrics(ctx context.Context, metrics *PipelineMetrics, seriesCount, observations int) {
	if metrics == nil {
		return
	}

	metrics.SeriesLoaded.Add(ctx, int64(seriesCount))
	metrics.DatasetObservations.Add(ctx, int64(observations))
}

// RecordCVDuration records the wall-clock duration of one family's
// cross-validation run
func RecordCVDuration(ctx context.Context, metrics *PipelineMetrics, family string, duration time.Duration) {
	if metrics == nil {
		return
	}

	metrics.CVDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("model.family", family)))
}

// RecordReportsWritten counts report files written to disk
func RecordReportsWritten(ctx context.Context, metrics *PipelineMetrics, count int) {
	if metrics == nil || count <= 0 {
		return
	}

	metrics.ReportsWritten.Add(ctx, int64(count))
}

// RecordFoldMetrics records metrics for one evaluated cross-validation fold
func RecordFoldMetrics(ctx context.Context, metrics *PipelineMetrics, family string, fold int, rmse float64) {
	if metrics == nil {
		return
	}

	// Common attributes
	attrs := []attribute.KeyValue{
		attribute.String("model.family", family),
		attribute.Int("fold", fold),
	}

	metrics.FoldsEvaluated.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.FoldRMSE.Record(ctx, rmse, metric.WithAttributes(attrs...))
}

// RecordActiveFitChange records changes in the number of in-flight fits
func RecordActiveFitChange(ctx context.Context, metrics *PipelineMetrics, delta int64, family string) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("model.family", family),
	}

	metrics.ActiveFits.Add(ctx, delta, metric.WithAttributes(attrs...))
}
