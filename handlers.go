package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/composer"
)

const siteTitle = "LeaseQA"

// formState is what a form template needs to redisplay a draft.
type formState struct {
	Draft   composer.Draft
	Message string
	Errors  map[string]string
}

func newFormState(d composer.Draft) *formState {
	return &formState{Draft: d, Errors: map[string]string{}}
}

func formStateOf(c *composer.Composer) *formState {
	return &formState{
		Draft:   c.Draft(),
		Message: c.Message(),
		Errors:  c.FieldErrors(),
	}
}

func (s *LeaseService) pageData(r *http.Request, title string) map[string]interface{} {
	ctx := r.Context()
	user, _ := middleware.GetUser(ctx)
	folders, _ := middleware.GetFolders(ctx)

	if title == "" {
		title = siteTitle
	} else {
		title = title + " · " + siteTitle
	}

	return map[string]interface{}{
		"Title":         title,
		"User":          user,
		"SessionStatus": middleware.GetSessionStatus(ctx),
		"Guest":         middleware.GetSessionStatus(ctx) == middleware.SessionGuest,
		"Folders":       folders,
		"Path":          r.URL.RequestURI(),
		"RequestID":     middleware.GetRequestID(ctx),
		"Version":       s.version,
		"GitSha":        s.gitSha,
	}
}

// Helper methods
func (s *LeaseService) renderTemplate(w http.ResponseWriter, r *http.Request, tmpl string, status int, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := s.tmpls.ExecuteTemplate(&buf, tmpl, data); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render template",
			slog.String("template", tmpl),
			slog.String("error", err.Error()))
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *LeaseService) renderError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	data := s.pageData(r, http.StatusText(statusCode))
	data["Status"] = statusCode
	data["Message"] = message
	s.renderTemplate(w, r, "error.html", statusCode, data)
}

// statusFor is the status a re-rendered form is served with after err.
func statusFor(err error) int {
	var apiErr *api.Error
	switch {
	case errors.Is(err, composer.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return apiErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}

// backendFailure answers a request whose backend read or mutation failed
// outside a form.
func (s *LeaseService) backendFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, context.Canceled):
		s.logger.DebugContext(ctx, "request canceled", slog.String("op", op))
	case errors.Is(err, api.ErrUnauthorized):
		// The backend no longer honors the session's cookies.
		if e, ok := s.entry(r); ok {
			e.Store.SignOut()
		}
		http.Redirect(w, r, middleware.LoginURL(r), http.StatusSeeOther)
	case errors.Is(err, api.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "We couldn't find that.")
	case errors.Is(err, api.ErrForbidden):
		s.renderError(w, r, http.StatusForbidden, api.MessageOf(err, "You don't have permission to do that."))
	default:
		s.logger.ErrorContext(ctx, "backend call failed",
			slog.String("op", op),
			slog.String("error", err.Error()))
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			s.renderError(w, r, apiErr.StatusCode, api.MessageOf(err, composer.GenericError))
			return
		}
		s.renderError(w, r, http.StatusBadGateway, composer.GenericError)
	}
}

func (s *LeaseService) composer(r *http.Request) *composer.Composer {
	return composer.New(middleware.GetLogger(r.Context()))
}

func currentUser(r *http.Request) *middleware.ContextUser {
	u, _ := middleware.GetUser(r.Context())
	return u
}

// canModify reports whether u may edit or delete content by authorID.
// The backend enforces the same rule; this only decides what is shown.
func canModify(u *middleware.ContextUser, authorID string) bool {
	return u != nil && (u.IsAdmin || (authorID != "" && u.ID == authorID))
}

func canResolve(u *middleware.ContextUser, authorID string) bool {
	return canModify(u, authorID) || (u != nil && u.IsLawyer)
}

func (s *LeaseService) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/qa", http.StatusFound)
}

func (s *LeaseService) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
