package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session statuses as reported by a SessionProvider.
const (
	SessionLoading         = "loading"
	SessionAuthenticated   = "authenticated"
	SessionUnauthenticated = "unauthenticated"
	SessionGuest           = "guest"
)

// SessionProvider finds (or starts) the browser session behind a request
// and makes sure its user is current with the backend.
type SessionProvider interface {
	Resolve(w http.ResponseWriter, r *http.Request) (*ResolvedSession, error)
}

// ResolvedSession is what the provider knows about the visitor.
type ResolvedSession struct {
	ID     string
	Status string
	User   *ContextUser
}

// sessionMiddleware attaches the visitor's session to the request context.
// It never rejects a request: a session that cannot be resolved is treated
// as signed out.
func sessionMiddleware(provider SessionProvider, tracer trace.Tracer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if tracer != nil {
				var span trace.Span
				ctx, span = tracer.Start(ctx, "session.middleware")
				defer span.End()
			}

			rc := getOrCreateRequestContext(ctx)
			if _, ok := getRequestContext(ctx); !ok {
				ctx = withRequestContext(ctx, rc)
			}

			sess, err := provider.Resolve(w, r.WithContext(ctx))
			if err != nil {
				getLogger(ctx).WarnContext(ctx, "session resolve failed",
					slog.String("error", err.Error()),
				)
				if span := trace.SpanFromContext(ctx); span.IsRecording() {
					span.RecordError(err)
					span.SetStatus(codes.Error, "session resolve failed")
				}
				sess = &ResolvedSession{Status: SessionUnauthenticated}
			}

			rc.SessionID = sess.ID
			rc.SessionStatus = sess.Status
			rc.User = sess.User

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("session.status", sess.Status))
				if sess.User != nil {
					span.SetAttributes(
						attribute.String("user.id", sess.User.ID),
						attribute.String("user.role", sess.User.Role),
					)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoginURL is where visitors without a signed-in user are sent, with the
// page they asked for as the next parameter.
func LoginURL(r *http.Request) string {
	next := r.URL.Path
	if r.Method == http.MethodGet && r.URL.RawQuery != "" {
		next += "?" + r.URL.RawQuery
	}
	return "/login?next=" + url.QueryEscape(next)
}

// requireAuthMiddleware sends signed-out visitors and guests to the login page.
func requireAuthMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAuthenticated(r) {
				http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireAdminMiddleware ensures the user is an admin
func requireAdminMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := getUser(r.Context())
			if !ok {
				http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
				return
			}
			if !user.IsAdmin {
				getLogger(r.Context()).WarnContext(r.Context(), "non-admin user attempted admin action",
					slog.String("user_id", user.ID),
					slog.String("role", user.Role),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "Admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userEnrichmentMiddleware adds user fields to the request logger.
// It must run after sessionMiddleware.
func userEnrichmentMiddleware(debug bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := getUser(r.Context())
			if ok {
				enriched := getLogger(r.Context()).With(
					slog.String("user_id", user.ID),
					slog.String("role", user.Role),
				)
				r = r.WithContext(context.WithValue(r.Context(), contextKeyLogger, enriched))

				if debug {
					w.Header().Set("X-User-ID", user.ID)
					w.Header().Set("X-User-Role", user.Role)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
