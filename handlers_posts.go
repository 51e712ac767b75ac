package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/composer"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

func postURL(id string) string {
	return "/qa/" + url.PathEscape(id)
}

func (s *LeaseService) renderPostForm(w http.ResponseWriter, r *http.Request, postID string, form *formState, status int) {
	title := "Ask a question"
	action := "/qa/new"
	if postID != "" {
		title = "Edit question"
		action = postURL(postID) + "/edit"
	}

	data := s.pageData(r, title)
	data["Heading"] = title
	data["Action"] = action
	data["PostID"] = postID
	data["Form"] = form
	data["Urgencies"] = composer.Urgencies
	data["MaxSummary"] = composer.MaxSummaryLength
	s.renderTemplate(w, r, "post-form.html", status, data)
}

func (s *LeaseService) NewPost(w http.ResponseWriter, r *http.Request) {
	draft := &composer.PostDraft{}
	if f := r.URL.Query().Get("folder"); f != "" {
		draft.AddFolder(f)
	}
	s.renderPostForm(w, r, "", newFormState(draft), http.StatusOK)
}

func (s *LeaseService) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	if err := parseForm(r, s.maxUpload); err != nil {
		logger.WarnContext(ctx, "bad post form", slog.String("error", err.Error()))
		s.renderError(w, r, http.StatusBadRequest, "We couldn't read that form.")
		return
	}

	draft := postDraftFromForm(r)
	files, closeFiles, err := formFiles(r, "files")
	defer closeFiles()
	if err != nil {
		form := newFormState(draft)
		form.Message = err.Error()
		s.renderPostForm(w, r, "", form, http.StatusBadRequest)
		return
	}

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	var created *leaseqa.Post
	err = c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		pd := d.(*composer.PostDraft)
		p, err := be.CreatePost(ctx, api.PostInput{
			Summary: pd.Summary,
			Details: composeHTML(pd.Details),
			Folders: pd.Folders,
			Urgency: pd.Urgency,
		})
		created = p
		return err
	})
	if err != nil {
		s.renderPostForm(w, r, "", formStateOf(c), statusFor(err))
		return
	}

	if len(files) > 0 {
		c.FollowUp(ctx, "upload post attachments", func(ctx context.Context) error {
			return be.UploadPostAttachments(ctx, created.ID, files)
		})
	}

	logger.InfoContext(ctx, "post created", slog.String("post_id", created.ID))
	http.Redirect(w, r, postURL(created.ID), http.StatusSeeOther)
}

func (s *LeaseService) EditPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	detail, err := s.backend(r).GetPost(ctx, id)
	if err != nil {
		s.backendFailure(w, r, "get post", err)
		return
	}

	if !canModify(currentUser(r), detail.AuthorID) {
		s.renderError(w, r, http.StatusForbidden, "Only the author or an admin can edit this question.")
		return
	}

	s.renderPostForm(w, r, id, newFormState(&composer.PostDraft{
		Summary: detail.Summary,
		Details: detail.Details,
		Urgency: detail.Urgency,
		Folders: detail.Folders,
		Format:  composer.FormatHTML,
	}), http.StatusOK)
}

func (s *LeaseService) UpdatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := parseForm(r, s.maxUpload); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "We couldn't read that form.")
		return
	}

	draft := postDraftFromForm(r)
	files, closeFiles, err := formFiles(r, "files")
	defer closeFiles()
	if err != nil {
		form := newFormState(draft)
		form.Message = err.Error()
		s.renderPostForm(w, r, id, form, http.StatusBadRequest)
		return
	}

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	err = c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		pd := d.(*composer.PostDraft)
		details := bodyHTML(pd.Details, pd.Format)
		update := api.PostUpdate{
			Summary: &pd.Summary,
			Details: &details,
			Folders: pd.Folders,
		}
		if pd.Urgency != "" {
			update.Urgency = &pd.Urgency
		}
		_, err := be.UpdatePost(ctx, id, update)
		return err
	})
	if err != nil {
		s.renderPostForm(w, r, id, formStateOf(c), statusFor(err))
		return
	}

	if len(files) > 0 {
		c.FollowUp(ctx, "upload post attachments", func(ctx context.Context) error {
			return be.UploadPostAttachments(ctx, id, files)
		})
	}

	http.Redirect(w, r, postURL(id), http.StatusSeeOther)
}

func (s *LeaseService) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := s.backend(r).DeletePost(ctx, id); err != nil {
		s.backendFailure(w, r, "delete post", err)
		return
	}

	middleware.GetLogger(ctx).InfoContext(ctx, "post deleted", slog.String("post_id", id))
	http.Redirect(w, r, "/qa", http.StatusSeeOther)
}

// ResolvePost sets the resolved flag to the submitted value.
func (s *LeaseService) ResolvePost(w http.ResponseWriter, r *http.Request) {
	s.togglePost(w, r, "resolve post", func(v bool) api.PostUpdate {
		return api.PostUpdate{IsResolved: &v}
	})
}

// PinPost sets the pinned flag to the submitted value.
func (s *LeaseService) PinPost(w http.ResponseWriter, r *http.Request) {
	s.togglePost(w, r, "pin post", func(v bool) api.PostUpdate {
		return api.PostUpdate{IsPinned: &v}
	})
}

func (s *LeaseService) togglePost(w http.ResponseWriter, r *http.Request, op string, update func(bool) api.PostUpdate) {
	ctx := r.Context()
	id := r.PathValue("id")

	value, err := strconv.ParseBool(r.PostFormValue("value"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Missing or invalid value.")
		return
	}

	if _, err := s.backend(r).UpdatePost(ctx, id, update(value)); err != nil {
		s.backendFailure(w, r, op, err)
		return
	}

	http.Redirect(w, r, postURL(id), http.StatusSeeOther)
}
