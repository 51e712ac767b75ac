package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/composer"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

func reviewURL(id string) string {
	return "/ai-review/" + url.PathEscape(id)
}

// riskGroup is one risk level of an analysis, in display order.
type riskGroup struct {
	Level string
	Class string
	Items []string
}

func riskGroups(a leaseqa.ReviewAnalysis) []riskGroup {
	return []riskGroup{
		{Level: "High risk", Class: "high", Items: a.HighRisk},
		{Level: "Medium risk", Class: "medium", Items: a.MediumRisk},
		{Level: "Low risk", Class: "low", Items: a.LowRisk},
	}
}

func (s *LeaseService) renderReviewForm(w http.ResponseWriter, r *http.Request, form *formState, status int) {
	data := s.pageData(r, "AI lease review")
	data["Form"] = form
	data["MaxTitle"] = MaxTitleLength
	s.renderTemplate(w, r, "ai-review.html", status, data)
}

func (s *LeaseService) ReviewPage(w http.ResponseWriter, r *http.Request) {
	s.renderReviewForm(w, r, newFormState(&ReviewDraft{}), http.StatusOK)
}

func (s *LeaseService) CreateReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	if err := parseForm(r, s.maxUpload); err != nil {
		logger.WarnContext(ctx, "bad review form", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusBadRequest, "We couldn't read that form.")
		return
	}

	draft := &ReviewDraft{
		Title: r.PostFormValue("title"),
		Text:  r.PostFormValue("text"),
	}

	f, h, err := r.FormFile("file")
	switch {
	case err == nil:
		defer f.Close()
		if h.Size > 0 {
			draft.File = &api.File{
				Name:        h.Filename,
				ContentType: h.Header.Get("Content-Type"),
				Content:     f,
			}
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		form := newFormState(draft)
		form.Message = "We couldn't read the uploaded file."
		s.renderReviewForm(w, r, form, http.StatusBadRequest)
		return
	}

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	var review *leaseqa.Review
	err = c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		rd := d.(*ReviewDraft)
		rv, err := be.CreateReview(ctx, api.ReviewInput{Title: rd.Title, Text: rd.Text, File: rd.File})
		review = rv
		return err
	})
	if err != nil {
		// The file cannot be offered back; the visitor has to pick it again.
		draft.File = nil
		s.renderReviewForm(w, r, formStateOf(c), statusFor(err))
		return
	}

	logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.Bool("uploaded", draft.File != nil))
	http.Redirect(w, r, reviewURL(review.ID), http.StatusSeeOther)
}

func (s *LeaseService) ReviewHistory(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.backend(r).ListReviews(r.Context())
	if err != nil {
		s.backendFailure(w, r, "list reviews", err)
		return
	}

	data := s.pageData(r, "Review history")
	data["Reviews"] = reviews
	s.renderTemplate(w, r, "review-history.html", http.StatusOK, data)
}

func (s *LeaseService) ShowReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.backend(r).GetReview(r.Context(), r.PathValue("id"))
	if err != nil {
		s.backendFailure(w, r, "get review", err)
		return
	}

	title := review.Title
	if title == "" {
		title = "Lease review"
	}

	data := s.pageData(r, title)
	data["Review"] = review
	data["Heading"] = title
	data["Risks"] = riskGroups(review.Analysis)
	s.renderTemplate(w, r, "review.html", http.StatusOK, data)
}
