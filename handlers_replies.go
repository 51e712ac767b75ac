package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/composer"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
	"github.com/imeyer/leaseqa/pkg/thread"
)

type replyKind string

const (
	kindAnswer     replyKind = "answer"
	kindDiscussion replyKind = "discussion"
)

func findAnswer(detail *leaseqa.PostDetail, id string) (leaseqa.Answer, bool) {
	for _, a := range detail.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return leaseqa.Answer{}, false
}

func findDiscussion(detail *leaseqa.PostDetail, id string) (leaseqa.Discussion, bool) {
	for _, d := range thread.Flatten(detail.Discussions) {
		if d.ID == id {
			return d, true
		}
	}
	return leaseqa.Discussion{}, false
}

func replyURL(postID string, kind replyKind, id string) string {
	return postURL(postID) + "#" + string(kind) + "-" + url.PathEscape(id)
}

func (s *LeaseService) renderReplyForm(w http.ResponseWriter, r *http.Request, kind replyKind, post leaseqa.Post, id string, form *formState, status int) {
	heading := "Edit answer"
	action := postURL(post.ID) + "/answers/" + url.PathEscape(id) + "/edit"
	if kind == kindDiscussion {
		heading = "Edit reply"
		action = postURL(post.ID) + "/discussions/" + url.PathEscape(id) + "/edit"
	}

	data := s.pageData(r, heading)
	data["Heading"] = heading
	data["Action"] = action
	data["Kind"] = string(kind)
	data["Post"] = post
	data["Form"] = form
	data["CancelURL"] = replyURL(post.ID, kind, id)
	s.renderTemplate(w, r, "reply-form.html", status, data)
}

func (s *LeaseService) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID := r.PathValue("id")

	if err := parseForm(r, s.maxUpload); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "We couldn't read that form.")
		return
	}

	draft := replyDraftFromForm(r)
	if draft.AnswerType == "" {
		draft.AnswerType = "community_answer"
		if u := currentUser(r); u != nil && u.IsLawyer {
			draft.AnswerType = "lawyer_opinion"
		}
	}

	files, closeFiles, err := formFiles(r, "files")
	defer closeFiles()
	if err != nil {
		form := newFormState(draft)
		form.Message = err.Error()
		s.renderBoard(w, r, postID, boardForms{Answer: form}, http.StatusBadRequest)
		return
	}

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	var created *leaseqa.Answer
	err = c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		rd := d.(*composer.ReplyDraft)
		a, err := be.CreateAnswer(ctx, api.AnswerInput{
			PostID:     postID,
			Content:    composeHTML(rd.Content),
			AnswerType: rd.AnswerType,
		})
		created = a
		return err
	})
	if err != nil {
		s.renderBoard(w, r, postID, boardForms{Answer: formStateOf(c)}, statusFor(err))
		return
	}

	if len(files) > 0 {
		c.FollowUp(ctx, "upload answer attachments", func(ctx context.Context) error {
			return be.UploadAnswerAttachments(ctx, created.ID, files)
		})
	}

	middleware.GetLogger(ctx).InfoContext(ctx, "answer created",
		slog.String("post_id", postID),
		slog.String("answer_id", created.ID))
	http.Redirect(w, r, replyURL(postID, kindAnswer, created.ID), http.StatusSeeOther)
}

func (s *LeaseService) EditAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, answerID := r.PathValue("id"), r.PathValue("aid")

	detail, err := s.backend(r).GetPost(ctx, postID)
	if err != nil {
		s.backendFailure(w, r, "get post", err)
		return
	}

	a, ok := findAnswer(detail, answerID)
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "That answer no longer exists.")
		return
	}
	if !canModify(currentUser(r), a.AuthorID) {
		s.renderError(w, r, http.StatusForbidden, "Only the author or an admin can edit this answer.")
		return
	}

	s.renderReplyForm(w, r, kindAnswer, detail.Post, answerID,
		newFormState(&composer.ReplyDraft{Content: a.Content, AnswerType: a.AnswerType, Format: composer.FormatHTML}), http.StatusOK)
}

func (s *LeaseService) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	s.updateReply(w, r, kindAnswer, r.PathValue("aid"), func(ctx context.Context, be Backend, id, content string) error {
		_, err := be.UpdateAnswer(ctx, id, content)
		return err
	})
}

func (s *LeaseService) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	if err := s.backend(r).DeleteAnswer(r.Context(), r.PathValue("aid")); err != nil {
		s.backendFailure(w, r, "delete answer", err)
		return
	}
	http.Redirect(w, r, postURL(postID), http.StatusSeeOther)
}

func (s *LeaseService) CreateDiscussion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID := r.PathValue("id")

	if err := parseForm(r, s.maxUpload); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "We couldn't read that form.")
		return
	}

	draft := replyDraftFromForm(r)
	draft.AnswerType = ""

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	var created *leaseqa.Discussion
	err := c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		rd := d.(*composer.ReplyDraft)
		disc, err := be.CreateDiscussion(ctx, api.DiscussionInput{
			PostID:   postID,
			ParentID: rd.ParentID,
			Content:  composeHTML(rd.Content),
		})
		created = disc
		return err
	})
	if err != nil {
		s.renderBoard(w, r, postID, boardForms{Discussion: formStateOf(c)}, statusFor(err))
		return
	}

	http.Redirect(w, r, replyURL(postID, kindDiscussion, created.ID), http.StatusSeeOther)
}

func (s *LeaseService) EditDiscussion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID, discussionID := r.PathValue("id"), r.PathValue("did")

	detail, err := s.backend(r).GetPost(ctx, postID)
	if err != nil {
		s.backendFailure(w, r, "get post", err)
		return
	}

	d, ok := findDiscussion(detail, discussionID)
	if !ok {
		s.renderError(w, r, http.StatusNotFound, "That reply no longer exists.")
		return
	}
	if !canModify(currentUser(r), d.AuthorID) {
		s.renderError(w, r, http.StatusForbidden, "Only the author or an admin can edit this reply.")
		return
	}

	s.renderReplyForm(w, r, kindDiscussion, detail.Post, discussionID,
		newFormState(&composer.ReplyDraft{Content: d.Content, ParentID: d.ParentID, Format: composer.FormatHTML}), http.StatusOK)
}

func (s *LeaseService) UpdateDiscussion(w http.ResponseWriter, r *http.Request) {
	s.updateReply(w, r, kindDiscussion, r.PathValue("did"), func(ctx context.Context, be Backend, id, content string) error {
		_, err := be.UpdateDiscussion(ctx, id, content)
		return err
	})
}

func (s *LeaseService) DeleteDiscussion(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	if err := s.backend(r).DeleteDiscussion(r.Context(), r.PathValue("did")); err != nil {
		s.backendFailure(w, r, "delete discussion", err)
		return
	}
	http.Redirect(w, r, postURL(postID), http.StatusSeeOther)
}

func (s *LeaseService) updateReply(w http.ResponseWriter, r *http.Request, kind replyKind, id string, update func(ctx context.Context, be Backend, id, content string) error) {
	ctx := r.Context()
	postID := r.PathValue("id")

	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "We couldn't read that form.")
		return
	}

	draft := &composer.ReplyDraft{
		Content: normalizeBody(r.PostFormValue("content")),
		Format:  r.PostFormValue("format"),
	}

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	err := c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		rd := d.(*composer.ReplyDraft)
		return update(ctx, be, id, bodyHTML(rd.Content, rd.Format))
	})
	if err != nil {
		post := leaseqa.Post{ID: postID, Summary: r.PostFormValue("post_summary")}
		s.renderReplyForm(w, r, kind, post, id, formStateOf(c), statusFor(err))
		return
	}

	http.Redirect(w, r, replyURL(postID, kind, id), http.StatusSeeOther)
}
