package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"tailscale.com/ipn/ipnstate"

	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

// MockBackend is a Backend whose methods can be replaced per test. Unset
// methods return small, successful fixtures.
type MockBackend struct {
	SessionFunc  func(ctx context.Context) (*leaseqa.User, error)
	LoginFunc    func(ctx context.Context, p api.LoginParams) (*leaseqa.User, error)
	RegisterFunc func(ctx context.Context, p api.RegisterParams) (*leaseqa.User, error)
	LogoutFunc   func(ctx context.Context) error

	ListPostsFunc             func(ctx context.Context) ([]leaseqa.Post, error)
	GetPostFunc               func(ctx context.Context, id string) (*leaseqa.PostDetail, error)
	CreatePostFunc            func(ctx context.Context, in api.PostInput) (*leaseqa.Post, error)
	UpdatePostFunc            func(ctx context.Context, id string, in api.PostUpdate) (*leaseqa.Post, error)
	DeletePostFunc            func(ctx context.Context, id string) error
	UploadPostAttachmentsFunc func(ctx context.Context, id string, files []api.File) error

	CreateAnswerFunc            func(ctx context.Context, in api.AnswerInput) (*leaseqa.Answer, error)
	UpdateAnswerFunc            func(ctx context.Context, id, content string) (*leaseqa.Answer, error)
	DeleteAnswerFunc            func(ctx context.Context, id string) error
	UploadAnswerAttachmentsFunc func(ctx context.Context, id string, files []api.File) error

	CreateDiscussionFunc func(ctx context.Context, in api.DiscussionInput) (*leaseqa.Discussion, error)
	UpdateDiscussionFunc func(ctx context.Context, id, content string) (*leaseqa.Discussion, error)
	DeleteDiscussionFunc func(ctx context.Context, id string) error

	ListFoldersFunc   func(ctx context.Context) ([]leaseqa.Folder, error)
	CreateFolderFunc  func(ctx context.Context, in api.FolderInput) (*leaseqa.Folder, error)
	UpdateFolderFunc  func(ctx context.Context, id string, in api.FolderInput) (*leaseqa.Folder, error)
	DeleteFolderFunc  func(ctx context.Context, id string) error
	StatsOverviewFunc func(ctx context.Context) (*leaseqa.StatsOverview, error)

	CreateReviewFunc func(ctx context.Context, in api.ReviewInput) (*leaseqa.Review, error)
	ListReviewsFunc  func(ctx context.Context) ([]leaseqa.Review, error)
	GetReviewFunc    func(ctx context.Context, id string) (*leaseqa.Review, error)

	mu    sync.Mutex
	calls []string
}

var _ Backend = (*MockBackend)(nil)

func (m *MockBackend) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
}

// Called reports whether op was invoked at least once.
func (m *MockBackend) Called(op string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == op {
			return true
		}
	}
	return false
}

func notFound(op string) error {
	return &api.Error{Op: op, StatusCode: 404, Message: "Not found"}
}

func (m *MockBackend) Session(ctx context.Context) (*leaseqa.User, error) {
	m.record("Session")
	if m.SessionFunc != nil {
		return m.SessionFunc(ctx)
	}
	return nil, api.ErrNoSession
}

func (m *MockBackend) Login(ctx context.Context, p api.LoginParams) (*leaseqa.User, error) {
	m.record("Login")
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, p)
	}
	return &leaseqa.User{ID: "u1", Email: p.Email, Role: leaseqa.RoleTenant}, nil
}

func (m *MockBackend) Register(ctx context.Context, p api.RegisterParams) (*leaseqa.User, error) {
	m.record("Register")
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, p)
	}
	return &leaseqa.User{ID: "u1", Name: p.Name, Email: p.Email, Role: p.Role}, nil
}

func (m *MockBackend) Logout(ctx context.Context) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

func (m *MockBackend) ListPosts(ctx context.Context) ([]leaseqa.Post, error) {
	m.record("ListPosts")
	if m.ListPostsFunc != nil {
		return m.ListPostsFunc(ctx)
	}
	return nil, nil
}

func (m *MockBackend) GetPost(ctx context.Context, id string) (*leaseqa.PostDetail, error) {
	m.record("GetPost")
	if m.GetPostFunc != nil {
		return m.GetPostFunc(ctx, id)
	}
	return nil, notFound("get post")
}

func (m *MockBackend) CreatePost(ctx context.Context, in api.PostInput) (*leaseqa.Post, error) {
	m.record("CreatePost")
	if m.CreatePostFunc != nil {
		return m.CreatePostFunc(ctx, in)
	}
	return &leaseqa.Post{ID: "new-post", Summary: in.Summary, Folders: in.Folders}, nil
}

func (m *MockBackend) UpdatePost(ctx context.Context, id string, in api.PostUpdate) (*leaseqa.Post, error) {
	m.record("UpdatePost")
	if m.UpdatePostFunc != nil {
		return m.UpdatePostFunc(ctx, id, in)
	}
	return &leaseqa.Post{ID: id}, nil
}

func (m *MockBackend) DeletePost(ctx context.Context, id string) error {
	m.record("DeletePost")
	if m.DeletePostFunc != nil {
		return m.DeletePostFunc(ctx, id)
	}
	return nil
}

func (m *MockBackend) UploadPostAttachments(ctx context.Context, id string, files []api.File) error {
	m.record("UploadPostAttachments")
	if m.UploadPostAttachmentsFunc != nil {
		return m.UploadPostAttachmentsFunc(ctx, id, files)
	}
	return nil
}

func (m *MockBackend) CreateAnswer(ctx context.Context, in api.AnswerInput) (*leaseqa.Answer, error) {
	m.record("CreateAnswer")
	if m.CreateAnswerFunc != nil {
		return m.CreateAnswerFunc(ctx, in)
	}
	return &leaseqa.Answer{ID: "new-answer", PostID: in.PostID, Content: in.Content, AnswerType: in.AnswerType}, nil
}

func (m *MockBackend) UpdateAnswer(ctx context.Context, id, content string) (*leaseqa.Answer, error) {
	m.record("UpdateAnswer")
	if m.UpdateAnswerFunc != nil {
		return m.UpdateAnswerFunc(ctx, id, content)
	}
	return &leaseqa.Answer{ID: id, Content: content}, nil
}

func (m *MockBackend) DeleteAnswer(ctx context.Context, id string) error {
	m.record("DeleteAnswer")
	if m.DeleteAnswerFunc != nil {
		return m.DeleteAnswerFunc(ctx, id)
	}
	return nil
}

func (m *MockBackend) UploadAnswerAttachments(ctx context.Context, id string, files []api.File) error {
	m.record("UploadAnswerAttachments")
	if m.UploadAnswerAttachmentsFunc != nil {
		return m.UploadAnswerAttachmentsFunc(ctx, id, files)
	}
	return nil
}

func (m *MockBackend) CreateDiscussion(ctx context.Context, in api.DiscussionInput) (*leaseqa.Discussion, error) {
	m.record("CreateDiscussion")
	if m.CreateDiscussionFunc != nil {
		return m.CreateDiscussionFunc(ctx, in)
	}
	return &leaseqa.Discussion{ID: "new-discussion", PostID: in.PostID, ParentID: in.ParentID, Content: in.Content}, nil
}

func (m *MockBackend) UpdateDiscussion(ctx context.Context, id, content string) (*leaseqa.Discussion, error) {
	m.record("UpdateDiscussion")
	if m.UpdateDiscussionFunc != nil {
		return m.UpdateDiscussionFunc(ctx, id, content)
	}
	return &leaseqa.Discussion{ID: id, Content: content}, nil
}

func (m *MockBackend) DeleteDiscussion(ctx context.Context, id string) error {
	m.record("DeleteDiscussion")
	if m.DeleteDiscussionFunc != nil {
		return m.DeleteDiscussionFunc(ctx, id)
	}
	return nil
}

func (m *MockBackend) ListFolders(ctx context.Context) ([]leaseqa.Folder, error) {
	m.record("ListFolders")
	if m.ListFoldersFunc != nil {
		return m.ListFoldersFunc(ctx)
	}
	return []leaseqa.Folder{
		{ID: "f1", Name: "deposits", DisplayName: "Deposits"},
		{ID: "f2", Name: "repairs", DisplayName: "Repairs"},
	}, nil
}

func (m *MockBackend) CreateFolder(ctx context.Context, in api.FolderInput) (*leaseqa.Folder, error) {
	m.record("CreateFolder")
	if m.CreateFolderFunc != nil {
		return m.CreateFolderFunc(ctx, in)
	}
	return &leaseqa.Folder{ID: "f-new", Name: in.Name, DisplayName: in.DisplayName, Description: in.Description}, nil
}

func (m *MockBackend) UpdateFolder(ctx context.Context, id string, in api.FolderInput) (*leaseqa.Folder, error) {
	m.record("UpdateFolder")
	if m.UpdateFolderFunc != nil {
		return m.UpdateFolderFunc(ctx, id, in)
	}
	return &leaseqa.Folder{ID: id, Name: in.Name, DisplayName: in.DisplayName, Description: in.Description}, nil
}

func (m *MockBackend) DeleteFolder(ctx context.Context, id string) error {
	m.record("DeleteFolder")
	if m.DeleteFolderFunc != nil {
		return m.DeleteFolderFunc(ctx, id)
	}
	return nil
}

func (m *MockBackend) StatsOverview(ctx context.Context) (*leaseqa.StatsOverview, error) {
	m.record("StatsOverview")
	if m.StatsOverviewFunc != nil {
		return m.StatsOverviewFunc(ctx)
	}
	return &leaseqa.StatsOverview{TotalPosts: 3, UnansweredPosts: 1, ResolvedPosts: 1, TotalUsers: 2}, nil
}

func (m *MockBackend) CreateReview(ctx context.Context, in api.ReviewInput) (*leaseqa.Review, error) {
	m.record("CreateReview")
	if m.CreateReviewFunc != nil {
		return m.CreateReviewFunc(ctx, in)
	}
	return &leaseqa.Review{ID: "r1", Title: in.Title, ContractText: in.Text}, nil
}

func (m *MockBackend) ListReviews(ctx context.Context) ([]leaseqa.Review, error) {
	m.record("ListReviews")
	if m.ListReviewsFunc != nil {
		return m.ListReviewsFunc(ctx)
	}
	return nil, nil
}

func (m *MockBackend) GetReview(ctx context.Context, id string) (*leaseqa.Review, error) {
	m.record("GetReview")
	if m.GetReviewFunc != nil {
		return m.GetReviewFunc(ctx, id)
	}
	return nil, notFound("get review")
}

// fakePostStore keeps posts in memory so an edit can be read back.
type fakePostStore struct {
	mu    sync.Mutex
	posts map[string]*leaseqa.PostDetail
}

func newFakePostStore(posts ...leaseqa.PostDetail) *fakePostStore {
	f := &fakePostStore{posts: make(map[string]*leaseqa.PostDetail)}
	for i := range posts {
		p := posts[i]
		f.posts[p.ID] = &p
	}
	return f
}

// install points the post methods of m at the store.
func (f *fakePostStore) install(m *MockBackend) {
	m.ListPostsFunc = func(ctx context.Context) ([]leaseqa.Post, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]leaseqa.Post, 0, len(f.posts))
		for _, p := range f.posts {
			out = append(out, p.Post)
		}
		return out, nil
	}
	m.GetPostFunc = func(ctx context.Context, id string) (*leaseqa.PostDetail, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.posts[id]
		if !ok {
			return nil, notFound("get post")
		}
		cp := *p
		return &cp, nil
	}
	m.UpdatePostFunc = func(ctx context.Context, id string, in api.PostUpdate) (*leaseqa.Post, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.posts[id]
		if !ok {
			return nil, notFound("update post")
		}
		if in.Summary != nil {
			p.Summary = *in.Summary
		}
		if in.Details != nil {
			p.Details = *in.Details
		}
		if in.Folders != nil {
			p.Folders = in.Folders
		}
		if in.Urgency != nil {
			p.Urgency = *in.Urgency
		}
		if in.IsResolved != nil {
			p.IsResolved = *in.IsResolved
		}
		if in.IsPinned != nil {
			p.IsPinned = *in.IsPinned
		}
		p.UpdatedAt = time.Now()
		return &p.Post, nil
	}
}

// MockTailscaleClient is a TailscaleClient for the startup checks.
type MockTailscaleClient struct {
	ExpandSNINameFunc      func(ctx context.Context, name string) (string, bool)
	StatusFunc             func(ctx context.Context) (*ipnstate.Status, error)
	StatusWithoutPeersFunc func(ctx context.Context) (*ipnstate.Status, error)
}

var _ TailscaleClient = (*MockTailscaleClient)(nil)

func (m *MockTailscaleClient) ExpandSNIName(ctx context.Context, name string) (string, bool) {
	if m.ExpandSNINameFunc != nil {
		return m.ExpandSNINameFunc(ctx, name)
	}
	return name + ".example.ts.net", true
}

func (m *MockTailscaleClient) Status(ctx context.Context) (*ipnstate.Status, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &ipnstate.Status{BackendState: "Running"}, nil
}

func (m *MockTailscaleClient) StatusWithoutPeers(ctx context.Context) (*ipnstate.Status, error) {
	if m.StatusWithoutPeersFunc != nil {
		return m.StatusWithoutPeersFunc(ctx)
	}
	return &ipnstate.Status{BackendState: "Running"}, nil
}

var errBackendDown = errors.New("connection refused")
