package main

import (
	"context"
	"net/http"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// Backend is the LeaseQA REST API as the pages use it. *api.Client
// implements it; tests substitute MockBackend.
type Backend interface {
	Session(ctx context.Context) (*leaseqa.User, error)
	Login(ctx context.Context, p api.LoginParams) (*leaseqa.User, error)
	Register(ctx context.Context, p api.RegisterParams) (*leaseqa.User, error)
	Logout(ctx context.Context) error

	ListPosts(ctx context.Context) ([]leaseqa.Post, error)
	GetPost(ctx context.Context, id string) (*leaseqa.PostDetail, error)
	CreatePost(ctx context.Context, in api.PostInput) (*leaseqa.Post, error)
	UpdatePost(ctx context.Context, id string, in api.PostUpdate) (*leaseqa.Post, error)
	DeletePost(ctx context.Context, id string) error
	UploadPostAttachments(ctx context.Context, id string, files []api.File) error

	CreateAnswer(ctx context.Context, in api.AnswerInput) (*leaseqa.Answer, error)
	UpdateAnswer(ctx context.Context, id, content string) (*leaseqa.Answer, error)
	DeleteAnswer(ctx context.Context, id string) error
	UploadAnswerAttachments(ctx context.Context, id string, files []api.File) error

	CreateDiscussion(ctx context.Context, in api.DiscussionInput) (*leaseqa.Discussion, error)
	UpdateDiscussion(ctx context.Context, id, content string) (*leaseqa.Discussion, error)
	DeleteDiscussion(ctx context.Context, id string) error

	ListFolders(ctx context.Context) ([]leaseqa.Folder, error)
	CreateFolder(ctx context.Context, in api.FolderInput) (*leaseqa.Folder, error)
	UpdateFolder(ctx context.Context, id string, in api.FolderInput) (*leaseqa.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
	StatsOverview(ctx context.Context) (*leaseqa.StatsOverview, error)

	CreateReview(ctx context.Context, in api.ReviewInput) (*leaseqa.Review, error)
	ListReviews(ctx context.Context) ([]leaseqa.Review, error)
	GetReview(ctx context.Context, id string) (*leaseqa.Review, error)
}

var _ Backend = (*api.Client)(nil)

// BackendFactory returns a Backend whose calls carry the cookies in jar.
// A nil jar gives an anonymous client.
type BackendFactory func(jar http.CookieJar) Backend

// NewBackendFactory binds client to browser sessions and wraps every
// session client with tracing.
func NewBackendFactory(client *api.Client, telemetry *TelemetryConfig) BackendFactory {
	return func(jar http.CookieJar) Backend {
		return NewTracedBackend(client.ForSession(jar), telemetry)
	}
}
