package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxBodyBytes   = 1 << 20  // 1MB
	DefaultMaxUploadBytes = 20 << 20 // 20MB, lease PDFs and attachments
)

// MiddlewareSetup configures all middleware for the application
type MiddlewareSetup struct {
	// Core services
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Meter     metric.Meter
	Telemetry *TelemetryConfig

	Sessions SessionProvider
	Folders  FolderLister

	// Configuration
	SecurityConfig  *SecurityConfig
	RateLimitConfig *RateLimitConfig
	MaxBodyBytes    int64
	MaxUploadBytes  int64
	SampleRate      float64

	// Feature flags
	EnableRateLimit bool
	EnableMetrics   bool
	EnableTracing   bool
	EnableCSRF      bool
	Debug           bool

	limiterOnce sync.Once
	limiter     *RateLimiter
}

// newMiddlewareSetup creates a new middleware setup with defaults
func newMiddlewareSetup(logger *slog.Logger, telemetry *TelemetryConfig, sessions SessionProvider) *MiddlewareSetup {
	if telemetry == nil {
		telemetry = &TelemetryConfig{}
	}
	return &MiddlewareSetup{
		Logger:    logger,
		Tracer:    telemetry.Tracer,
		Meter:     telemetry.Meter,
		Telemetry: telemetry,
		Sessions:  sessions,

		// Default configs
		SecurityConfig:  defaultSecurityConfig(),
		RateLimitConfig: defaultRateLimitConfig(),
		MaxBodyBytes:    DefaultMaxBodyBytes,
		MaxUploadBytes:  DefaultMaxUploadBytes,
		SampleRate:      1.0,

		// Enable features by default
		EnableRateLimit: true,
		EnableMetrics:   true,
		EnableTracing:   true,
		EnableCSRF:      true,
	}
}

// RateLimiter returns the limiter shared by every chain.
func (ms *MiddlewareSetup) RateLimiter() *RateLimiter {
	ms.limiterOnce.Do(func() {
		cfg := *ms.RateLimitConfig
		if cfg.Meter == nil {
			cfg.Meter = ms.Meter
		}
		ms.limiter = newRateLimiter(&cfg, ms.Logger)
	})
	return ms.limiter
}

// Close stops background work started by the chains.
func (ms *MiddlewareSetup) Close() {
	if ms.limiter != nil {
		ms.limiter.Stop()
	}
}

// createBaseChain is what every page and form request gets before the
// session is known.
func (ms *MiddlewareSetup) createBaseChain() *Chain {
	middlewares := []Middleware{
		// Always start with request context
		requestContextMiddleware(),
	}

	if ms.Tracer != nil && (ms.EnableMetrics || ms.EnableTracing) {
		middlewares = append(middlewares, ms.createObservabilityMiddleware())
	}

	middlewares = append(middlewares,
		loggingMiddleware(ms.Logger),
		securityHeadersMiddleware(ms.SecurityConfig),
		requestSizeLimitMiddleware(ms.MaxBodyBytes, ms.MaxUploadBytes),
	)

	if ms.EnableCSRF {
		middlewares = append(middlewares,
			when(hasMethod("POST", "PUT", "PATCH", "DELETE"),
				csrfProtectionMiddleware(ms.SecurityConfig)),
		)
	}

	return newChain(middlewares...)
}

// CreatePublicChain serves pages anyone may see. The session is resolved
// so the layout can show who is signed in, but nobody is turned away.
func (ms *MiddlewareSetup) CreatePublicChain() *Chain {
	chain := ms.createBaseChain()

	if ms.Sessions != nil {
		chain = chain.Append(
			sessionMiddleware(ms.Sessions, ms.Tracer),
			userEnrichmentMiddleware(ms.Debug),
		)
	}

	// Rate limiting runs after the session so signed-in users are keyed by id.
	if ms.EnableRateLimit {
		chain = chain.Append(ms.RateLimiter().Middleware())
	}

	if ms.Folders != nil {
		chain = chain.Append(FolderDataMiddleware(ms.Folders))
	}

	return chain
}

// CreateMemberChain is for actions that need a signed-in user.
func (ms *MiddlewareSetup) CreateMemberChain() *Chain {
	return ms.CreatePublicChain().Append(requireAuthMiddleware())
}

// CreateAdminChain creates middleware chain for admin endpoints
func (ms *MiddlewareSetup) CreateAdminChain() *Chain {
	return ms.CreatePublicChain().Append(
		requireAdminMiddleware(),
		adminAuditMiddleware(ms.Logger),
	)
}

// CreateStaticChain serves embedded assets with cache headers.
func (ms *MiddlewareSetup) CreateStaticChain() *Chain {
	return newChain(
		requestContextMiddleware(),
		securityHeadersMiddleware(ms.SecurityConfig),
		staticFileMiddleware(),
	)
}

// CreateHealthChain is minimal so probes stay cheap.
func (ms *MiddlewareSetup) CreateHealthChain() *Chain {
	return newChain(
		requestContextMiddleware(),
		loggingMiddleware(ms.Logger),
	)
}

// CreateMetricsChain restricts the metrics endpoint to the given clients.
func (ms *MiddlewareSetup) CreateMetricsChain(allowed ...string) *Chain {
	return newChain(
		requestContextMiddleware(),
		loggingMiddleware(ms.Logger),
		ipAllowlistMiddleware(allowed),
	)
}

// createObservabilityMiddleware creates the observability middleware
func (ms *MiddlewareSetup) createObservabilityMiddleware() Middleware {
	serviceName := ms.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = "leaseqa"
	}

	config := &ObservabilityConfig{
		ServiceName:     serviceName,
		Logger:          ms.Logger,
		Tracer:          ms.Tracer,
		Meter:           ms.Meter,
		RequestCounter:  ms.Telemetry.Metrics.RequestCounter,
		RequestDuration: ms.Telemetry.Metrics.RequestDuration,
		ErrorCounter:    ms.Telemetry.Metrics.ErrorCounter,
		SampleRate:      ms.SampleRate,
	}

	if ms.Meter != nil {
		config.RequestSize, _ = ms.Meter.Int64Histogram(
			"http.server.request.size",
			metric.WithDescription("Size of HTTP request bodies"),
			metric.WithUnit("By"),
		)

		config.ResponseSize, _ = ms.Meter.Int64Histogram(
			"http.server.response.size",
			metric.WithDescription("Size of HTTP response bodies"),
			metric.WithUnit("By"),
		)

		config.ActiveRequests, _ = ms.Meter.Int64UpDownCounter(
			"http.server.active_requests",
			metric.WithDescription("Number of active HTTP requests"),
			metric.WithUnit("{request}"),
		)
	}

	return newObservabilityMiddleware(config)
}

// adminAuditMiddleware logs all admin actions
func adminAuditMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var adminID string
			if user, ok := getUser(r.Context()); ok {
				adminID = user.ID
			}

			logger.InfoContext(r.Context(), "admin_action",
				slog.String("action", r.Method+" "+r.URL.Path),
				slog.String("admin_id", adminID),
				slog.String("query", r.URL.RawQuery),
				slog.String("remote_addr", r.RemoteAddr),
			)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			logger.InfoContext(r.Context(), "admin_action_completed",
				slog.String("action", r.Method+" "+r.URL.Path),
				slog.String("admin_id", adminID),
				slog.Int("status", wrapped.Status()),
			)
		})
	}
}

// staticFileMiddleware adds caching headers for static files
func staticFileMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=86400") // 1 day

			if strings.HasSuffix(r.URL.Path, ".woff") ||
				strings.HasSuffix(r.URL.Path, ".woff2") ||
				strings.HasSuffix(r.URL.Path, ".ttf") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			next.ServeHTTP(w, r)
		})
	}
}
