package middleware

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryConfig carries the OpenTelemetry handles the middleware records
// into. Any of them may be nil.
type TelemetryConfig struct {
	ServiceName string
	Tracer      trace.Tracer
	Meter       metric.Meter
	Metrics     TelemetryMetrics
}

// TelemetryMetrics holds telemetry metrics
type TelemetryMetrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ErrorCounter    metric.Int64Counter
}
