package main

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/composer"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

const (
	MaxTitleLength    = 120
	MinPasswordLength = 8
	MaxAttachments    = 5
)

var (
	hSpaceRegex  = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex = regexp.MustCompile(`\n{3,}`)
)

// SanitizeInput performs basic input sanitization
func SanitizeInput(input string) string {
	input = normalizeBody(input)

	// Normalize horizontal whitespace (spaces/tabs) but preserve newlines
	input = hSpaceRegex.ReplaceAllString(input, " ")

	// Normalize multiple newlines to max of 2 (allow paragraph breaks)
	return newlineRegex.ReplaceAllString(input, "\n\n")
}

// normalizeBody cleans markdown input without touching indentation, which
// is significant in code blocks and nested lists.
func normalizeBody(input string) string {
	// Normalize line endings: CRLF -> LF, standalone CR -> LF
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return strings.TrimSpace(input)
}

// parseForm reads a urlencoded or multipart body.
func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	return nil
}

// formFiles opens the uploaded files under field. The returned func
// closes them.
func formFiles(r *http.Request, field string) ([]api.File, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}

	headers := r.MultipartForm.File[field]
	if len(headers) > MaxAttachments {
		return nil, func() {}, fmt.Errorf("at most %d files may be attached", MaxAttachments)
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]api.File, 0, len(headers))
	for _, h := range headers {
		if h.Size == 0 && h.Filename == "" {
			continue
		}
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open %s: %w", h.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, api.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return files, closeAll, nil
}

// safeNext returns next when it is a path on this site, and fallback
// otherwise.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}

func postDraftFromForm(r *http.Request) *composer.PostDraft {
	return &composer.PostDraft{
		Summary: SanitizeInput(r.PostFormValue("summary")),
		Details: normalizeBody(r.PostFormValue("details")),
		Urgency: r.PostFormValue("urgency"),
		Folders: r.PostForm["folders"],
		Format:  r.PostFormValue("format"),
	}
}

func replyDraftFromForm(r *http.Request) *composer.ReplyDraft {
	return &composer.ReplyDraft{
		Content:    normalizeBody(r.PostFormValue("content")),
		AnswerType: r.PostFormValue("answer_type"),
		ParentID:   r.PostFormValue("parent_id"),
		Format:     r.PostFormValue("format"),
	}
}

func folderDraftFromForm(r *http.Request) *composer.FolderDraft {
	return &composer.FolderDraft{
		Name:        r.PostFormValue("name"),
		DisplayName: SanitizeInput(r.PostFormValue("display_name")),
		Description: SanitizeInput(r.PostFormValue("description")),
	}
}

// LoginDraft is the sign-in form.
type LoginDraft struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d *LoginDraft) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

func (d *LoginDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Email,
			validation.Required.Error("an email is required"),
			is.EmailFormat),
		validation.Field(&d.Password, validation.Required.Error("a password is required")),
	)
}

// RegisterDraft is the sign-up form. Admins are never self-registered.
type RegisterDraft struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
	Role     string `json:"role"`
}

func (d *RegisterDraft) Normalize() {
	d.Name = SanitizeInput(d.Name)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Role = strings.ToLower(strings.TrimSpace(d.Role))
	if d.Role == "" {
		d.Role = string(leaseqa.RoleTenant)
	}
}

func (d *RegisterDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Name,
			validation.Required.Error("a name is required"),
			validation.RuneLength(1, 80)),
		validation.Field(&d.Email,
			validation.Required.Error("an email is required"),
			is.EmailFormat),
		validation.Field(&d.Password,
			validation.Required.Error("a password is required"),
			validation.RuneLength(MinPasswordLength, 128)),
		validation.Field(&d.Confirm,
			validation.By(func(any) error {
				if d.Confirm != d.Password {
					return errors.New("passwords do not match")
				}
				return nil
			})),
		validation.Field(&d.Role,
			validation.In(string(leaseqa.RoleTenant), string(leaseqa.RoleLawyer)).Error("choose tenant or lawyer")),
	)
}

// ReviewDraft is an AI lease review request: an uploaded lease or pasted
// text.
type ReviewDraft struct {
	Title string    `json:"title"`
	Text  string    `json:"text"`
	File  *api.File `json:"file"`
}

func (d *ReviewDraft) Normalize() {
	d.Title = SanitizeInput(d.Title)
	d.Text = normalizeBody(d.Text)
}

func (d *ReviewDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Title, validation.RuneLength(0, MaxTitleLength)),
		validation.Field(&d.Text,
			validation.When(d.File == nil, validation.Required.Error("upload a lease or paste its text")),
			validation.RuneLength(0, composer.MaxDetailsLength)),
	)
}

var (
	_ composer.Draft = (*LoginDraft)(nil)
	_ composer.Draft = (*RegisterDraft)(nil)
	_ composer.Draft = (*ReviewDraft)(nil)
)
