package api

import (
	"context"
	"net/http"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type PostInput struct {
	Summary string   `json:"summary"`
	Details string   `json:"details"`
	Folders []string `json:"folders"`
	Urgency string   `json:"urgency,omitempty"`
}

// PostUpdate is a partial update; nil fields are left untouched.
type PostUpdate struct {
	Summary    *string  `json:"summary,omitempty"`
	Details    *string  `json:"details,omitempty"`
	Folders    []string `json:"folders,omitempty"`
	Urgency    *string  `json:"urgency,omitempty"`
	IsResolved *bool    `json:"isResolved,omitempty"`
	IsPinned   *bool    `json:"isPinned,omitempty"`
}

func (c *Client) ListPosts(ctx context.Context) ([]leaseqa.Post, error) {
	var posts []leaseqa.Post
	if err := c.call(ctx, "list posts", http.MethodGet, c.endpoint("posts"), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*leaseqa.PostDetail, error) {
	var post leaseqa.PostDetail
	if err := c.call(ctx, "get post", http.MethodGet, c.endpoint("posts", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (*leaseqa.Post, error) {
	var post leaseqa.Post
	if err := c.call(ctx, "create post", http.MethodPost, c.endpoint("posts"), in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, in PostUpdate) (*leaseqa.Post, error) {
	var post leaseqa.Post
	if err := c.call(ctx, "update post", http.MethodPut, c.endpoint("posts", id), in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.call(ctx, "delete post", http.MethodDelete, c.endpoint("posts", id), nil, nil)
}

// UploadPostAttachments sends files as multipart field "files".
func (c *Client) UploadPostAttachments(ctx context.Context, id string, files []File) error {
	return c.upload(ctx, "upload post attachments", c.endpoint("posts", id, "attachments"), files)
}

type AnswerInput struct {
	PostID     string `json:"postId"`
	Content    string `json:"content"`
	AnswerType string `json:"answerType,omitempty"`
}

func (c *Client) CreateAnswer(ctx context.Context, in AnswerInput) (*leaseqa.Answer, error) {
	var a leaseqa.Answer
	if err := c.call(ctx, "create answer", http.MethodPost, c.endpoint("answers"), in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) UpdateAnswer(ctx context.Context, id, content string) (*leaseqa.Answer, error) {
	var a leaseqa.Answer
	body := map[string]string{"content": content}
	if err := c.call(ctx, "update answer", http.MethodPut, c.endpoint("answers", id), body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) DeleteAnswer(ctx context.Context, id string) error {
	return c.call(ctx, "delete answer", http.MethodDelete, c.endpoint("answers", id), nil, nil)
}

func (c *Client) UploadAnswerAttachments(ctx context.Context, id string, files []File) error {
	return c.upload(ctx, "upload answer attachments", c.endpoint("answers", id, "attachments"), files)
}

type DiscussionInput struct {
	PostID   string `json:"postId"`
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

func (c *Client) CreateDiscussion(ctx context.Context, in DiscussionInput) (*leaseqa.Discussion, error) {
	var d leaseqa.Discussion
	if err := c.call(ctx, "create discussion", http.MethodPost, c.endpoint("discussions"), in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) UpdateDiscussion(ctx context.Context, id, content string) (*leaseqa.Discussion, error) {
	var d leaseqa.Discussion
	body := map[string]string{"content": content}
	if err := c.call(ctx, "update discussion", http.MethodPatch, c.endpoint("discussions", id), body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) DeleteDiscussion(ctx context.Context, id string) error {
	return c.call(ctx, "delete discussion", http.MethodDelete, c.endpoint("discussions", id), nil, nil)
}
