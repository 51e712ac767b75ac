// Package middleware provides the HTTP middleware chains for the LeaseQA
// web frontend: observability, security headers, cross-origin protection,
// rate limiting, and browser session resolution.
package middleware

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Chain operations
var (
	// NewChain creates a new middleware chain
	NewChain = newChain
)

// Context helpers - these are the primary way to access request data
var (
	// GetUser retrieves the signed-in user from context
	GetUser = getUser

	GetRequestID     = getRequestID
	GetSessionID     = getSessionID
	GetSessionStatus = getSessionStatus

	// GetLogger retrieves the request-scoped logger from context
	GetLogger = getLogger
)

// Conditional middleware helpers
var (
	When      = when
	HasMethod = hasMethod
)

// Standard middleware constructors
var (
	RequestContextMiddleware   = requestContextMiddleware
	SecurityHeadersMiddleware  = securityHeadersMiddleware
	RequestSizeLimitMiddleware = requestSizeLimitMiddleware
)

// Default configurations
var (
	DefaultSecurityConfig = defaultSecurityConfig
)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig, logger *slog.Logger) *RateLimiter {
	return newRateLimiter(config, logger)
}

// NewObservabilityMiddleware creates comprehensive observability middleware
func NewObservabilityMiddleware(config *ObservabilityConfig) Middleware {
	return newObservabilityMiddleware(config)
}

// SessionMiddleware resolves the browser session for every request.
func SessionMiddleware(provider SessionProvider, tracer trace.Tracer) Middleware {
	return sessionMiddleware(provider, tracer)
}

// RequireAuthMiddleware sends visitors without a signed-in user to login.
func RequireAuthMiddleware() Middleware {
	return requireAuthMiddleware()
}

// RequireAdminMiddleware ensures the user is an admin
func RequireAdminMiddleware() Middleware {
	return requireAdminMiddleware()
}

// NewMiddlewareSetup creates a new middleware setup
func NewMiddlewareSetup(logger *slog.Logger, telemetry *TelemetryConfig, sessions SessionProvider) *MiddlewareSetup {
	return newMiddlewareSetup(logger, telemetry, sessions)
}
