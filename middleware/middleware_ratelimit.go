package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Default rate limit
	RequestsPerSecond float64
	Burst             int

	// Per-endpoint limits, checked in order
	EndpointLimits []EndpointLimit

	// Signed-in users are keyed by user id, other visitors by session and
	// then by IP.
	EnableUserRateLimit bool
	UserRateMultiplier  float64 // Multiplier for authenticated users

	EnableIPRateLimit bool
	CleanupInterval   time.Duration

	// Response headers
	IncludeHeaders bool

	// Metrics
	Meter        metric.Meter
	MetricPrefix string
}

// EndpointLimit defines rate limits for specific endpoints. An empty
// Methods list matches every method.
type EndpointLimit struct {
	Pattern string
	Methods []string
	Rate    float64
	Burst   int
}

func (e EndpointLimit) matches(r *http.Request) bool {
	if !matchesPattern(r.URL.Path, e.Pattern) {
		return false
	}
	if len(e.Methods) == 0 {
		return true
	}
	for _, m := range e.Methods {
		if m == r.Method {
			return true
		}
	}
	return false
}

// defaultRateLimitConfig returns sensible defaults
func defaultRateLimitConfig() *RateLimitConfig {
	post := []string{http.MethodPost}
	return &RateLimitConfig{
		RequestsPerSecond:   10,
		Burst:               20,
		EnableUserRateLimit: true,
		UserRateMultiplier:  5.0,
		EnableIPRateLimit:   true,
		CleanupInterval:     5 * time.Minute,
		IncludeHeaders:      true,
		EndpointLimits: []EndpointLimit{
			{Pattern: "/login", Methods: post, Rate: 0.2, Burst: 5},
			{Pattern: "/register", Methods: post, Rate: 0.1, Burst: 3},
			{Pattern: "/ai-review", Methods: post, Rate: 0.05, Burst: 2},
			{Pattern: "/qa/new", Methods: post, Rate: 0.5, Burst: 2},
			{Pattern: "/qa/*/answers", Methods: post, Rate: 1, Burst: 3},
			{Pattern: "/qa/*/discussions", Methods: post, Rate: 2, Burst: 5},
			{Pattern: "/admin/*", Methods: post, Rate: 0.5, Burst: 3},
		},
	}
}

// RateLimiter provides flexible rate limiting
type RateLimiter struct {
	config   *RateLimitConfig
	logger   *slog.Logger
	visitors map[string]*visitor
	mu       sync.RWMutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once

	// Metrics
	rateLimitHits  metric.Int64Counter
	activeVisitors metric.Int64Gauge
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a new rate limiter and starts its cleanup loop.
// Call Stop to end the loop.
func newRateLimiter(config *RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if config == nil {
		config = defaultRateLimitConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		visitors: make(map[string]*visitor),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	// Initialize metrics if meter is provided
	if config.Meter != nil {
		prefix := config.MetricPrefix
		if prefix == "" {
			prefix = "http.ratelimit"
		}

		rl.rateLimitHits, _ = config.Meter.Int64Counter(
			prefix+".hits",
			metric.WithDescription("Number of rate limit hits"),
			metric.WithUnit("{hit}"),
		)

		rl.activeVisitors, _ = config.Meter.Int64Gauge(
			prefix+".visitors",
			metric.WithDescription("Number of active rate limit visitors"),
			metric.WithUnit("{visitor}"),
		)
	}

	if config.CleanupInterval > 0 {
		go rl.cleanupVisitors()
	}

	return rl
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorKey := rl.getVisitorKey(r)
			bucket, limit, burst := rl.getLimitsForRequest(r)

			v := rl.getVisitor(visitorKey+"|"+bucket, limit, burst)

			if !v.limiter.Allow() {
				rl.handleRateLimitExceeded(w, r, visitorKey, v.limiter)
				return
			}

			if rl.config.IncludeHeaders {
				rl.addRateLimitHeaders(w, v.limiter)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getVisitorKey determines the key for rate limiting
func (rl *RateLimiter) getVisitorKey(r *http.Request) string {
	if rl.config.EnableUserRateLimit {
		if user, ok := getUser(r.Context()); ok {
			return "user:" + user.ID
		}
	}

	if rl.config.EnableIPRateLimit {
		return "ip:" + getClientIP(r)
	}

	if id := getSessionID(r.Context()); id != "" {
		return "session:" + id
	}

	return "global"
}

// getLimitsForRequest returns the bucket name and limits for a request.
// Each endpoint limit gets its own bucket so a burst on one endpoint does
// not starve another.
func (rl *RateLimiter) getLimitsForRequest(r *http.Request) (string, float64, int) {
	for _, limit := range rl.config.EndpointLimits {
		if limit.matches(r) {
			return limit.Pattern, limit.Rate, limit.Burst
		}
	}
	return "default", rl.config.RequestsPerSecond, rl.config.Burst
}

// getVisitor gets or creates a visitor
func (rl *RateLimiter) getVisitor(key string, limit float64, burst int) *visitor {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		if strings.HasPrefix(key, "user:") && rl.config.UserRateMultiplier > 0 {
			limit *= rl.config.UserRateMultiplier
			burst = int(float64(burst) * rl.config.UserRateMultiplier)
		}

		v = &visitor{
			limiter:  rate.NewLimiter(rate.Limit(limit), burst),
			lastSeen: rl.now(),
		}
		rl.visitors[key] = v

		if rl.activeVisitors != nil {
			rl.activeVisitors.Record(context.Background(), int64(len(rl.visitors)))
		}
	} else {
		v.lastSeen = rl.now()
	}

	return v
}

func (rl *RateLimiter) handleRateLimitExceeded(w http.ResponseWriter, r *http.Request, visitorKey string, limiter *rate.Limiter) {
	rl.logger.WarnContext(r.Context(), "rate limit exceeded",
		slog.String("visitor", visitorKey),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if rl.rateLimitHits != nil {
		attrs := []attribute.KeyValue{
			attribute.String("visitor_type", getVisitorType(visitorKey)),
			attribute.String("path", routeOf(r)),
		}
		rl.rateLimitHits.Add(r.Context(), 1, metric.WithAttributes(attrs...))
	}

	if rl.config.IncludeHeaders {
		rl.addRateLimitHeaders(w, limiter)

		if reservation := limiter.Reserve(); reservation.OK() {
			delay := reservation.Delay()
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
		}
	}

	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// addRateLimitHeaders adds rate limit information headers
func (rl *RateLimiter) addRateLimitHeaders(w http.ResponseWriter, limiter *rate.Limiter) {
	limit := limiter.Limit()
	burst := limiter.Burst()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(time.Second).Unix(), 10))
	w.Header().Set("X-RateLimit-Policy", fmt.Sprintf("%.2f;w=1;burst=%d", limit, burst))
}

// sweep drops visitors idle for longer than the cleanup interval.
func (rl *RateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.config.CleanupInterval {
			delete(rl.visitors, key)
			removed++
		}
	}

	if rl.activeVisitors != nil {
		rl.activeVisitors.Record(context.Background(), int64(len(rl.visitors)))
	}
	return removed
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// Helper functions

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func matchesPattern(path, pattern string) bool {
	// Simple pattern matching with * wildcard
	if !strings.Contains(pattern, "*") {
		return path == pattern
	}

	parts := strings.Split(pattern, "*")
	if len(parts) != 2 {
		return false
	}

	prefix, suffix := parts[0], parts[1]
	return len(path) > len(prefix)+len(suffix) &&
		strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
}

func getVisitorType(key string) string {
	switch {
	case strings.HasPrefix(key, "user:"):
		return "user"
	case strings.HasPrefix(key, "session:"):
		return "session"
	case strings.HasPrefix(key, "ip:"):
		return "ip"
	}
	return "global"
}

// ipAllowlistMiddleware rejects requests from clients not in the list.
func ipAllowlistMiddleware(allowed []string) Middleware {
	allowedMap := make(map[string]bool, len(allowed))
	for _, ip := range allowed {
		allowedMap[ip] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Forwarding headers are ignored; anyone can set them.
			clientIP, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				clientIP = r.RemoteAddr
			}
			if !allowedMap[clientIP] {
				getLogger(r.Context()).WarnContext(r.Context(), "rejected client outside allowlist",
					slog.String("client_ip", clientIP),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
