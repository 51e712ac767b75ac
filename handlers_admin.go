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
)

func folderEditURL(id string) string {
	return "/admin/folders/" + url.PathEscape(id) + "/edit"
}

func (s *LeaseService) Admin(w http.ResponseWriter, r *http.Request) {
	s.renderAdmin(w, r, newFormState(&composer.FolderDraft{}), http.StatusOK)
}

func (s *LeaseService) renderAdmin(w http.ResponseWriter, r *http.Request, form *formState, status int) {
	ctx := r.Context()
	be := s.backend(r)

	stats, err := be.StatsOverview(ctx)
	if err != nil {
		s.backendFailure(w, r, "stats overview", err)
		return
	}

	// Folders were loaded for the layout; read them again so a change made
	// by this request shows up.
	folders, err := be.ListFolders(ctx)
	if err != nil {
		s.backendFailure(w, r, "list folders", err)
		return
	}

	data := s.pageData(r, "Admin")
	data["Stats"] = stats
	data["AdminFolders"] = folders
	data["Form"] = form
	s.renderTemplate(w, r, "admin.html", status, data)
}

func (s *LeaseService) CreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draft := folderDraftFromForm(r)

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	var created *leaseqa.Folder
	err := c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		fd := d.(*composer.FolderDraft)
		f, err := be.CreateFolder(ctx, api.FolderInput{
			Name:        fd.Name,
			DisplayName: fd.DisplayName,
			Description: fd.Description,
		})
		created = f
		return err
	})
	if err != nil {
		s.renderAdmin(w, r, formStateOf(c), statusFor(err))
		return
	}

	middleware.GetLogger(ctx).InfoContext(ctx, "folder created",
		slog.String("folder_id", created.ID),
		slog.String("name", created.Name),
		slog.String("admin", maskUserID(currentUser(r).ID)))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *LeaseService) findFolder(r *http.Request, id string) (*leaseqa.Folder, error) {
	folders, err := s.backend(r).ListFolders(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range folders {
		if folders[i].ID == id {
			return &folders[i], nil
		}
	}
	return nil, &api.Error{Op: "find folder", StatusCode: http.StatusNotFound}
}

func (s *LeaseService) renderFolderForm(w http.ResponseWriter, r *http.Request, id string, form *formState, status int) {
	data := s.pageData(r, "Edit folder")
	data["Action"] = folderEditURL(id)
	data["FolderID"] = id
	data["Form"] = form
	s.renderTemplate(w, r, "folder-form.html", status, data)
}

func (s *LeaseService) EditFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := s.findFolder(r, id)
	if err != nil {
		s.backendFailure(w, r, "find folder", err)
		return
	}

	s.renderFolderForm(w, r, id, newFormState(&composer.FolderDraft{
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
	}), http.StatusOK)
}

func (s *LeaseService) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	draft := folderDraftFromForm(r)

	be := s.backend(r)
	c := s.composer(r)
	c.Open(draft)

	err := c.Submit(ctx, func(ctx context.Context, d composer.Draft) error {
		fd := d.(*composer.FolderDraft)
		_, err := be.UpdateFolder(ctx, id, api.FolderInput{
			Name:        fd.Name,
			DisplayName: fd.DisplayName,
			Description: fd.Description,
		})
		return err
	})
	if err != nil {
		s.renderFolderForm(w, r, id, formStateOf(c), statusFor(err))
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *LeaseService) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := s.backend(r).DeleteFolder(ctx, id); err != nil {
		s.backendFailure(w, r, "delete folder", err)
		return
	}

	middleware.GetLogger(ctx).InfoContext(ctx, "folder deleted",
		slog.String("folder_id", id),
		slog.String("admin", maskUserID(currentUser(r).ID)))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
