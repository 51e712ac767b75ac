package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type TelemetryConfig struct {
	ServiceName string
	// LogHandler is set only when logs are exported over OTLP.
	LogHandler slog.Handler
	Meter      metric.Meter
	Metrics    struct {
		ErrorCounter        metric.Int64Counter
		RequestCounter      metric.Int64Counter
		VersionGauge        metric.Int64Gauge
		RequestDuration     metric.Float64Histogram
		BackendCallDuration metric.Float64Histogram
	}
	Tracer trace.Tracer
}

// setupTelemetry initializes OTEL tracing, metrics, and logging. Without
// OTLP, metrics are exposed through the Prometheus registry and spans are
// sampled but not exported, so trace IDs still reach the logs.
func setupTelemetry(ctx context.Context, config *Config) (*TelemetryConfig, func(context.Context) error, error) {
	telemetryConfig := &TelemetryConfig{ServiceName: config.ServiceName}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace("leaseqa"),
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTEL resource: %w", err)
	}

	var meterProvider *sdkmetric.MeterProvider

	if !config.OTLP {
		prometheusExporter, err := prometheus.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(
				prometheusExporter,
			),
		)
	} else {
		metricExporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTEL metrics exporter: %w", err)
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(metricExporter),
			),
		)
	}

	otel.SetMeterProvider(meterProvider)
	telemetryConfig.Meter = meterProvider.Meter(config.ServiceName)

	var logProvider *sdklog.LoggerProvider
	if config.OTLP {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithCompression(otlploghttp.GzipCompression),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log exporter: %w", err)
		}

		var processor sdklog.Processor = sdklog.NewBatchProcessor(logExporter, sdklog.WithExportBufferSize(512))

		severity := minsev.SeverityInfo
		if config.LogDebug {
			severity = minsev.SeverityDebug
		}
		processor = minsev.NewLogProcessor(processor, severity)

		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(processor),
		)

		telemetryConfig.LogHandler = otelslog.NewHandler(
			config.ServiceName,
			otelslog.WithLoggerProvider(logProvider),
		)
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(config.TraceSampleRate)),
	}

	if config.OTLP {
		traceExporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter,
			sdktrace.WithMaxExportBatchSize(config.TraceMaxBatchSize),
		))
	}

	if config.Logger != nil {
		config.Logger.Info("configured tracer with sampling",
			slog.Float64("rate", config.TraceSampleRate),
			slog.Bool("otlp", config.OTLP))
	}

	traceProvider := sdktrace.NewTracerProvider(traceOpts...)

	otel.SetTracerProvider(traceProvider)
	telemetryConfig.Tracer = traceProvider.Tracer(config.ServiceName)

	if err := initializeMetrics(telemetryConfig.Meter, telemetryConfig); err != nil {
		return nil, nil, err
	}

	cleanup := func(ctx context.Context) error {
		errs := []error{
			meterProvider.Shutdown(ctx),
			traceProvider.Shutdown(ctx),
		}
		if logProvider != nil {
			errs = append(errs, logProvider.Shutdown(ctx))
		}
		return errors.Join(errs...)
	}

	return telemetryConfig, cleanup, nil
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		// Follow the parent's decision when there is one.
		return sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(rate),
			sdktrace.WithRemoteParentSampled(sdktrace.AlwaysSample()),
			sdktrace.WithRemoteParentNotSampled(sdktrace.TraceIDRatioBased(rate)),
			sdktrace.WithLocalParentSampled(sdktrace.AlwaysSample()),
			sdktrace.WithLocalParentNotSampled(sdktrace.TraceIDRatioBased(rate)),
		)
	}
}

func initializeMetrics(meter metric.Meter, tc *TelemetryConfig) error {
	var err error

	tc.Metrics.RequestCounter, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Number of HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return fmt.Errorf("create request counter: %w", err)
	}

	tc.Metrics.ErrorCounter, err = meter.Int64Counter("http.server.errors",
		metric.WithDescription("Number of HTTP requests that ended in a server error"),
		metric.WithUnit("{request}"))
	if err != nil {
		return fmt.Errorf("create error counter: %w", err)
	}

	tc.Metrics.RequestDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create request histogram: %w", err)
	}

	tc.Metrics.BackendCallDuration, err = meter.Float64Histogram("leaseqa.backend.duration",
		metric.WithDescription("Latency of calls to the LeaseQA backend API"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create backend histogram: %w", err)
	}

	tc.Metrics.VersionGauge, err = meter.Int64Gauge("leaseqa.build.info",
		metric.WithDescription("Build version information"))
	if err != nil {
		return fmt.Errorf("create version gauge: %w", err)
	}

	return nil
}
