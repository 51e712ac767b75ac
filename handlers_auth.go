package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/composer"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// logoutTimeout bounds the backend logout call, which outlives the request.
const logoutTimeout = 5 * time.Second

func (s *LeaseService) renderAuthForm(w http.ResponseWriter, r *http.Request, tmpl, title, next string, form *formState, status int) {
	data := s.pageData(r, title)
	data["Next"] = next
	data["Form"] = form
	s.renderTemplate(w, r, tmpl, status, data)
}

func (s *LeaseService) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"), "/qa")
	if currentUser(r) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.renderAuthForm(w, r, "login.html", "Sign in", next, newFormState(&LoginDraft{}), http.StatusOK)
}

func (s *LeaseService) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)
	next := safeNext(r.PostFormValue("next"), "/qa")

	draft := &LoginDraft{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	e, ok := s.entry(r)
	c := s.composer(r)
	c.Open(draft)

	var user *leaseqa.User
	err := c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		if !ok {
			return errNoSession
		}
		ld := d.(*LoginDraft)
		u, err := s.backendFor(e.Jar).Login(ctx, api.LoginParams{Email: ld.Email, Password: ld.Password})
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		logger.InfoContext(ctx, "sign in failed",
			slog.String("email", maskEmail(draft.Email)),
			slog.String("error", err.Error()))
		draft.Password = ""
		s.renderAuthForm(w, r, "login.html", "Sign in", next, formStateOf(c), statusFor(err))
		return
	}

	e.Store.SignIn(user)
	logger.InfoContext(ctx, "signed in",
		slog.String("user", maskUserID(user.ID)),
		slog.String("email_hash", hashEmail(user.Email)),
		slog.String("role", string(user.Role)))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *LeaseService) RegisterPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"), "/qa")
	if currentUser(r) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	s.renderAuthForm(w, r, "register.html", "Create an account", next,
		newFormState(&RegisterDraft{Role: string(leaseqa.RoleTenant)}), http.StatusOK)
}

func (s *LeaseService) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	next := safeNext(r.PostFormValue("next"), "/qa")

	draft := &RegisterDraft{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm"),
		Role:     r.PostFormValue("role"),
	}

	e, ok := s.entry(r)
	c := s.composer(r)
	c.Open(draft)

	var user *leaseqa.User
	err := c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		if !ok {
			return errNoSession
		}
		rd := d.(*RegisterDraft)
		u, err := s.backendFor(e.Jar).Register(ctx, api.RegisterParams{
			Name:     rd.Name,
			Email:    rd.Email,
			Password: rd.Password,
			Role:     leaseqa.Role(rd.Role),
		})
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		draft.Password, draft.Confirm = "", ""
		s.renderAuthForm(w, r, "register.html", "Create an account", next, formStateOf(c), statusFor(err))
		return
	}

	e.Store.SignIn(user)
	middleware.GetLogger(ctx).InfoContext(ctx, "registered",
		slog.String("user", maskUserID(user.ID)),
		slog.String("role", string(user.Role)))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout signs the browser session out. The backend call is best effort:
// the session is dropped whether or not the backend hears about it.
func (s *LeaseService) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	e, ok := s.entry(r)
	if !ok {
		s.auth.Expire(w, "")
		http.Redirect(w, r, "/qa", http.StatusSeeOther)
		return
	}

	be := s.backendFor(e.Jar)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
		defer cancel()
		if err := be.Logout(ctx); err != nil {
			logger.WarnContext(ctx, "backend logout failed", slog.String("error", err.Error()))
		}
	}()

	e.Store.SignOut()
	s.auth.Expire(w, e.ID)
	http.Redirect(w, r, "/qa", http.StatusSeeOther)
}

// ContinueAsGuest lets a visitor browse without signing in. Guest sessions
// are not re-checked with the backend.
func (s *LeaseService) ContinueAsGuest(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.entry(r); ok {
		e.Store.ContinueAsGuest()
	}
	http.Redirect(w, r, safeNext(r.PostFormValue("next"), "/qa"), http.StatusSeeOther)
}
