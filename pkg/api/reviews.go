package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// ReviewInput carries either an uploaded lease (File) or pasted text.
type ReviewInput struct {
	Title string
	Text  string
	File  *File
}

var ErrEmptyReview = errors.New("a lease file or contract text is required")

func (c *Client) CreateReview(ctx context.Context, in ReviewInput) (*leaseqa.Review, error) {
	const op = "create review"
	if in.File == nil && in.Text == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyReview)
	}

	fields := []formField{}
	if in.Title != "" {
		fields = append(fields, formField{"title", in.Title})
	}
	if in.Text != "" {
		fields = append(fields, formField{"text", in.Text})
	}

	var files []File
	if in.File != nil {
		files = append(files, *in.File)
	}

	req, err := c.newMultipartRequest(ctx, http.MethodPost, c.endpoint("ai-reviews"), "file", files, fields...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var r leaseqa.Review
	if err := c.do(req, op, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListReviews(ctx context.Context) ([]leaseqa.Review, error) {
	var reviews []leaseqa.Review
	if err := c.call(ctx, "list reviews", http.MethodGet, c.endpoint("ai-reviews"), nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (c *Client) GetReview(ctx context.Context, id string) (*leaseqa.Review, error) {
	var r leaseqa.Review
	if err := c.call(ctx, "get review", http.MethodGet, c.endpoint("ai-reviews", id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
