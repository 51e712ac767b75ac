package main

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeyer/leaseqa/pkg/api"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  hello  ", "hello"},
		{"collapses spaces", "a \t  b", "a b"},
		{"line endings", "a\r\nb\rc", "a\nb\nc"},
		{"paragraphs capped", "a\n\n\n\n\nb", "a\n\nb"},
		{"null bytes", "a\x00b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeInput(tt.input))
		})
	}
}

func TestNormalizeBodyKeepsIndentation(t *testing.T) {
	in := "List:\r\n\n    code block\n  - nested"
	assert.Equal(t, "List:\n\n    code block\n  - nested", normalizeBody(in))
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/qa"},
		{"/qa/p1", "/qa/p1"},
		{"/qa?folder=deposits", "/qa?folder=deposits"},
		{"//evil.example/", "/qa"},
		{"https://evil.example/", "/qa"},
		{"/\\evil.example", "/qa"},
		{"qa/p1", "/qa"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, safeNext(tt.next, "/qa"))
		})
	}
}

func TestLoginDraft(t *testing.T) {
	d := &LoginDraft{Email: "  Tess@Example.COM ", Password: "x"}
	d.Normalize()
	assert.Equal(t, "tess@example.com", d.Email)
	assert.NoError(t, d.Validate())

	d = &LoginDraft{Email: "nope"}
	err := d.Validate()
	var errs validation.Errors
	require.True(t, errors.As(err, &errs))
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
}

func TestRegisterDraft(t *testing.T) {
	valid := func() *RegisterDraft {
		return &RegisterDraft{
			Name:     "Lou",
			Email:    "lou@example.com",
			Password: "correct horse",
			Confirm:  "correct horse",
		}
	}

	d := valid()
	d.Normalize()
	assert.Equal(t, "tenant", d.Role)
	assert.NoError(t, d.Validate())

	tests := []struct {
		name  string
		edit  func(*RegisterDraft)
		field string
	}{
		{"short password", func(d *RegisterDraft) { d.Password, d.Confirm = "short", "short" }, "password"},
		{"mismatch", func(d *RegisterDraft) { d.Confirm = "different horse" }, "confirm"},
		{"admin role", func(d *RegisterDraft) { d.Role = "admin" }, "role"},
		{"no name", func(d *RegisterDraft) { d.Name = " " }, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.edit(d)
			d.Normalize()

			var errs validation.Errors
			require.True(t, errors.As(d.Validate(), &errs))
			assert.Contains(t, errs, tt.field)
		})
	}
}

func TestReviewDraft(t *testing.T) {
	d := &ReviewDraft{Title: "Lease"}
	assert.Error(t, d.Validate())

	d.File = &api.File{Name: "lease.pdf", Content: strings.NewReader("%PDF")}
	assert.NoError(t, d.Validate())

	d = &ReviewDraft{Text: "  Tenant pays all repairs.  "}
	d.Normalize()
	assert.Equal(t, "Tenant pays all repairs.", d.Text)
	assert.NoError(t, d.Validate())

	d = &ReviewDraft{Title: strings.Repeat("x", MaxTitleLength+1), Text: "ok"}
	assert.Error(t, d.Validate())
}

func multipartRequest(t *testing.T, field string, n int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("summary", "With files"))
	for i := range n {
		fw, err := mw.CreateFormFile(field, fmt.Sprintf("photo-%d.jpg", i))
		require.NoError(t, err)
		fw.Write([]byte("jpeg bytes"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/qa/new", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, parseForm(req, 1<<20))
	return req
}

func TestFormFiles(t *testing.T) {
	t.Run("opens every file", func(t *testing.T) {
		req := multipartRequest(t, "files", 2)

		files, closeFiles, err := formFiles(req, "files")
		require.NoError(t, err)
		defer closeFiles()

		require.Len(t, files, 2)
		assert.Equal(t, "photo-0.jpg", files[0].Name)
		assert.Equal(t, "With files", req.PostFormValue("summary"))
	})

	t.Run("too many files", func(t *testing.T) {
		req := multipartRequest(t, "files", MaxAttachments+1)

		_, closeFiles, err := formFiles(req, "files")
		defer closeFiles()
		assert.ErrorContains(t, err, "at most 5 files")
	})

	t.Run("urlencoded form has none", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/qa/new", strings.NewReader("summary=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		require.NoError(t, parseForm(req, 1<<20))

		files, closeFiles, err := formFiles(req, "files")
		defer closeFiles()
		assert.NoError(t, err)
		assert.Empty(t, files)
	})
}
