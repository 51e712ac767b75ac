package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
	"github.com/imeyer/leaseqa/pkg/session"
)

const sessionCookieName = "leaseqa_session"

// SessionAuthProvider resolves the browser session behind a request from
// the session cookie, asking the backend who the visitor is whenever the
// cached answer is older than the TTL.
type SessionAuthProvider struct {
	registry   *session.Registry
	backendFor BackendFactory
	ttl        time.Duration
	secure     bool
	now        func() time.Time
	logger     *slog.Logger
}

var _ middleware.SessionProvider = (*SessionAuthProvider)(nil)

func NewSessionAuthProvider(registry *session.Registry, backendFor BackendFactory, ttl time.Duration, secure bool, logger *slog.Logger) *SessionAuthProvider {
	return &SessionAuthProvider{
		registry:   registry,
		backendFor: backendFor,
		ttl:        ttl,
		secure:     secure,
		now:        time.Now,
		logger:     logger,
	}
}

func (p *SessionAuthProvider) Resolve(w http.ResponseWriter, r *http.Request) (*middleware.ResolvedSession, error) {
	ctx := r.Context()

	entry, err := p.lookup(w, r)
	if err != nil {
		return nil, err
	}

	st := entry.Store.State()
	if st.NeedsLoad(p.ttl, p.now()) {
		st, err = session.Load(ctx, entry.Store, p.backendFor(entry.Jar).Session)
		switch {
		case err == nil, errors.Is(err, api.ErrUnauthorized):
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			p.logger.WarnContext(ctx, "session load failed",
				slog.String("session_id", entry.ID),
				slog.String("error", err.Error()))
		}
	}

	activeSessions.Set(float64(p.registry.Len()))

	return &middleware.ResolvedSession{
		ID:     entry.ID,
		Status: string(st.Status),
		User:   toContextUser(st.User),
	}, nil
}

// lookup finds the entry named by the session cookie, starting a new one
// when the cookie is missing or names an evicted session.
func (p *SessionAuthProvider) lookup(w http.ResponseWriter, r *http.Request) (*session.Entry, error) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if e, ok := p.registry.Get(c.Value); ok {
			return e, nil
		}
	}

	e, err := p.registry.Create()
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, p.cookie(e.ID))
	return e, nil
}

func (p *SessionAuthProvider) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Expire drops the browser session and tells the browser to forget it.
func (p *SessionAuthProvider) Expire(w http.ResponseWriter, id string) {
	if id != "" {
		p.registry.Delete(id)
	}
	c := p.cookie("")
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func toContextUser(u *leaseqa.User) *middleware.ContextUser {
	if u == nil {
		return nil
	}
	return &middleware.ContextUser{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     string(u.Role),
		IsAdmin:  u.IsAdmin(),
		IsLawyer: u.IsLawyer(),
	}
}

// ConvertTelemetryConfig converts the main TelemetryConfig to middleware.TelemetryConfig
func ConvertTelemetryConfig(tc *TelemetryConfig) *middleware.TelemetryConfig {
	if tc == nil {
		return nil
	}

	return &middleware.TelemetryConfig{
		ServiceName: tc.ServiceName,
		Tracer:      tc.Tracer,
		Meter:       tc.Meter,
		Metrics: middleware.TelemetryMetrics{
			RequestCounter:  tc.Metrics.RequestCounter,
			RequestDuration: tc.Metrics.RequestDuration,
			ErrorCounter:    tc.Metrics.ErrorCounter,
		},
	}
}
