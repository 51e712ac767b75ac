package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// File is one upload part.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

type formField struct {
	name, value string
}

// newMultipartRequest buffers the parts in memory; uploads are bounded by
// the inbound request size limit.
func (c *Client) newMultipartRequest(ctx context.Context, method, target, fileField string, files []File, fields ...formField) (*http.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("copy part %s: %w", f.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (c *Client) upload(ctx context.Context, op, target string, files []File) error {
	if len(files) == 0 {
		return nil
	}
	req, err := c.newMultipartRequest(ctx, http.MethodPost, target, "files", files)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, op, nil)
}
