package main

import (
	"embed"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/imeyer/leaseqa/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all HTTP routes with their middleware chains. The
// returned MiddlewareSetup must be closed on shutdown.
func SetupRoutes(s *LeaseService, staticFS embed.FS, config *Config) (http.Handler, *middleware.MiddlewareSetup) {
	ms := middleware.NewMiddlewareSetup(s.logger, ConvertTelemetryConfig(s.telemetry), s.auth)
	ms.Folders = s.backendFor(nil)
	ms.Debug = config.LogDebug
	ms.SampleRate = config.TraceSampleRate
	ms.RateLimitConfig.Meter = s.telemetry.Meter

	// Attachments are served by the backend.
	if u, err := url.Parse(config.APIBase); err == nil && u.Host != "" {
		ms.SecurityConfig.AllowImagesFrom(u.Scheme + "://" + u.Host)
	}

	// Relaxed limits in dev mode
	if config.LogDebug {
		ms.RateLimitConfig.RequestsPerSecond = 100
		ms.RateLimitConfig.Burst = 200
	}

	mux := http.NewServeMux()

	public := ms.CreatePublicChain()
	member := ms.CreateMemberChain()
	admin := ms.CreateAdminChain()

	// Board
	mux.Handle("GET /{$}", public.ThenFunc(s.Root))
	mux.Handle("GET /qa", public.ThenFunc(s.Board))
	mux.Handle("GET /qa/{id}", public.ThenFunc(s.Board))

	// Sessions
	mux.Handle("GET /login", public.ThenFunc(s.LoginPage))
	mux.Handle("POST /login", public.ThenFunc(s.Login))
	mux.Handle("GET /register", public.ThenFunc(s.RegisterPage))
	mux.Handle("POST /register", public.ThenFunc(s.Register))
	mux.Handle("POST /logout", public.ThenFunc(s.Logout))
	mux.Handle("POST /guest", public.ThenFunc(s.ContinueAsGuest))

	// Posts
	mux.Handle("GET /qa/new", member.ThenFunc(s.NewPost))
	mux.Handle("POST /qa/new", member.ThenFunc(s.CreatePost))
	mux.Handle("GET /qa/{id}/edit", member.ThenFunc(s.EditPost))
	mux.Handle("POST /qa/{id}/edit", member.ThenFunc(s.UpdatePost))
	mux.Handle("POST /qa/{id}/delete", member.ThenFunc(s.DeletePost))
	mux.Handle("POST /qa/{id}/resolve", member.ThenFunc(s.ResolvePost))
	mux.Handle("POST /qa/{id}/pin", admin.ThenFunc(s.PinPost))

	// Answers and discussions
	mux.Handle("POST /qa/{id}/answers", member.ThenFunc(s.CreateAnswer))
	mux.Handle("GET /qa/{id}/answers/{aid}/edit", member.ThenFunc(s.EditAnswer))
	mux.Handle("POST /qa/{id}/answers/{aid}/edit", member.ThenFunc(s.UpdateAnswer))
	mux.Handle("POST /qa/{id}/answers/{aid}/delete", member.ThenFunc(s.DeleteAnswer))
	mux.Handle("POST /qa/{id}/discussions", member.ThenFunc(s.CreateDiscussion))
	mux.Handle("GET /qa/{id}/discussions/{did}/edit", member.ThenFunc(s.EditDiscussion))
	mux.Handle("POST /qa/{id}/discussions/{did}/edit", member.ThenFunc(s.UpdateDiscussion))
	mux.Handle("POST /qa/{id}/discussions/{did}/delete", member.ThenFunc(s.DeleteDiscussion))

	// AI review
	mux.Handle("GET /ai-review", member.ThenFunc(s.ReviewPage))
	mux.Handle("POST /ai-review", member.ThenFunc(s.CreateReview))
	mux.Handle("GET /ai-review/history", member.ThenFunc(s.ReviewHistory))
	mux.Handle("GET /ai-review/{id}", member.ThenFunc(s.ShowReview))

	// Admin
	mux.Handle("GET /admin", admin.ThenFunc(s.Admin))
	mux.Handle("POST /admin/folders", admin.ThenFunc(s.CreateFolder))
	mux.Handle("GET /admin/folders/{id}/edit", admin.ThenFunc(s.EditFolder))
	mux.Handle("POST /admin/folders/{id}/edit", admin.ThenFunc(s.UpdateFolder))
	mux.Handle("POST /admin/folders/{id}/delete", admin.ThenFunc(s.DeleteFolder))

	// Static files don't need a session - they're public assets
	mux.Handle("GET /static/", ms.CreateStaticChain().Then(staticHandler(staticFS)))

	mux.Handle("GET /health", ms.CreateHealthChain().ThenFunc(s.HealthCheck))
	mux.Handle("GET /_/metrics", ms.CreateMetricsChain("127.0.0.1", "::1").Then(promhttp.Handler()))

	// Add global panic recovery as the outermost middleware
	globalChain := middleware.NewChain(
		RecoveryMiddleware(s.logger),
	)

	return globalChain.Then(mux), ms
}

// staticHandler serves the embedded static/ directory under /static/.
func staticHandler(staticFS embed.FS) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// fs.Sub only fails on an invalid path.
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

// RecoveryMiddleware recovers from panics and logs them with enhanced error reporting
func RecoveryMiddleware(logger *slog.Logger) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Create response wrapper to track write status
			wrapped := &recoveryResponseWriter{ResponseWriter: w}

			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					errorID := generateErrorID()

					requestInfo := []any{
						slog.String("error_id", errorID),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
						slog.String("user_agent", r.UserAgent()),
						slog.String("referer", r.Referer()),
					}

					if r.URL.RawQuery != "" {
						requestInfo = append(requestInfo, slog.String("query", r.URL.RawQuery))
					}

					// Only the already-parsed form is logged; reading the body
					// here could block on a half-sent upload.
					if r.PostForm != nil {
						formData := make(map[string]string)
						for key, values := range r.PostForm {
							if !isSensitiveField(key) && len(values) > 0 {
								formData[key] = truncate(200, values[0])
							}
						}
						if len(formData) > 0 {
							requestInfo = append(requestInfo, slog.Any("form_data", formData))
						}
					}

					logger.ErrorContext(r.Context(), "panic recovered - internal server error",
						slog.Any("panic_error", err),
						slog.Group("request", requestInfo...),
					)

					if !wrapped.headersSent {
						w.Header().Set("X-Content-Type-Options", "nosniff")
						w.Header().Set("X-Frame-Options", "DENY")
						w.Header().Set("Content-Type", "text/html; charset=utf-8")
						w.WriteHeader(http.StatusInternalServerError)
						w.Write([]byte(generateErrorHTML(errorID)))
					} else {
						logger.WarnContext(r.Context(), "cannot send error response - headers already sent",
							slog.String("error_id", errorID))
					}
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// recoveryResponseWriter wraps http.ResponseWriter to track if headers have been sent
type recoveryResponseWriter struct {
	http.ResponseWriter
	headersSent bool
}

func (w *recoveryResponseWriter) WriteHeader(statusCode int) {
	if !w.headersSent {
		w.headersSent = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *recoveryResponseWriter) Write(data []byte) (int, error) {
	if !w.headersSent {
		w.headersSent = true
	}
	return w.ResponseWriter.Write(data)
}

func (w *recoveryResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func generateErrorID() string {
	return "ERR-" + strings.ToUpper(uuid.NewString()[:8])
}

func isSensitiveField(fieldName string) bool {
	sensitiveFields := map[string]bool{
		"password": true,
		"confirm":  true,
		"passwd":   true,
		"pwd":      true,
		"secret":   true,
		"token":    true,
		"api_key":  true,
		"text":     true, // pasted lease text
	}

	fieldLower := strings.ToLower(fieldName)
	return sensitiveFields[fieldLower] ||
		strings.Contains(fieldLower, "password") ||
		strings.Contains(fieldLower, "secret") ||
		strings.Contains(fieldLower, "token")
}

func generateErrorHTML(errorID string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Internal Server Error · LeaseQA</title>
    <link rel="stylesheet" href="/static/style.css">
</head>
<body>
    <main class="container error-page">
        <h1>Something went wrong</h1>
        <p>We couldn't finish that request. Please try again in a moment.</p>
        <p class="error-id"><strong>Error ID:</strong> %s<br>
            <small>Please include this ID if you contact support.</small></p>
        <p><a href="/qa" class="btn">Back to questions</a></p>
    </main>
</body>
</html>`, html.EscapeString(errorID))
}
