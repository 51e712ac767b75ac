package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/imeyer/leaseqa/middleware"
	"github.com/imeyer/leaseqa/pkg/api"
	"github.com/imeyer/leaseqa/pkg/board"
	"github.com/imeyer/leaseqa/pkg/composer"
	"github.com/imeyer/leaseqa/pkg/leaseqa"
	"github.com/imeyer/leaseqa/pkg/thread"
)

// boardQuery is the list state carried in the query string.
type boardQuery struct {
	Filter    board.Filter
	Collapsed board.Collapsed
}

func parseBoardQuery(r *http.Request) boardQuery {
	q := r.URL.Query()
	return boardQuery{
		Filter: board.Filter{
			Query:    strings.TrimSpace(q.Get("q")),
			Folder:   strings.TrimSpace(q.Get("folder")),
			Scenario: strings.TrimSpace(q.Get("scenario")),
			Status:   board.ParseStatus(q.Get("status")),
		},
		Collapsed: board.ParseCollapsed(q.Get("collapsed")),
	}
}

func (q boardQuery) values() url.Values {
	v := url.Values{}
	if q.Filter.Query != "" {
		v.Set("q", q.Filter.Query)
	}
	if q.Filter.Folder != "" {
		v.Set("folder", q.Filter.Folder)
	}
	if q.Filter.Scenario != "" {
		v.Set("scenario", q.Filter.Scenario)
	}
	if q.Filter.Status != "" && q.Filter.Status != board.StatusAll {
		v.Set("status", string(q.Filter.Status))
	}
	if c := q.Collapsed.String(); c != "" {
		v.Set("collapsed", c)
	}
	return v
}

// url builds a board link to path that keeps the current list state.
func (q boardQuery) url(path string) string {
	if enc := q.values().Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

func (q boardQuery) withFolder(slug string) boardQuery {
	q.Filter.Folder = slug
	return q
}

func (q boardQuery) withScenario(slug string) boardQuery {
	q.Filter.Scenario = slug
	return q
}

type boardItem struct {
	Post      leaseqa.Post
	URL       string
	Active    bool
	Scenarios []board.Scenario
}

type boardGroup struct {
	Label     string
	Count     int
	Collapsed bool
	ToggleURL string
	Items     []boardItem
}

type folderLink struct {
	Folder leaseqa.Folder
	Count  int
	URL    string
	Active bool
}

type scenarioLink struct {
	Scenario board.Scenario
	URL      string
	Active   bool
}

type answerView struct {
	leaseqa.Answer
	CanEdit bool
}

type discussionRow struct {
	thread.Row
	CanEdit bool
}

// postView is the selected post with what the visitor may do to it.
type postView struct {
	Post            leaseqa.PostDetail
	Answers         []answerView
	Rows            []discussionRow
	DiscussionCount int
	CanEdit         bool
	CanResolve      bool
	CanPin          bool
	CanReply        bool
	DefaultAnswer   string
}

// boardForms carries failed reply drafts back into the board page.
type boardForms struct {
	Answer     *formState
	Discussion *formState
}

func newPostView(detail *leaseqa.PostDetail, u *middleware.ContextUser) *postView {
	v := &postView{
		Post:       *detail,
		CanEdit:    canModify(u, detail.AuthorID),
		CanResolve: canResolve(u, detail.AuthorID),
		CanPin:     u != nil && u.IsAdmin,
		CanReply:   u != nil,
	}

	v.DefaultAnswer = "community_answer"
	if u != nil && u.IsLawyer {
		v.DefaultAnswer = "lawyer_opinion"
	}

	for _, a := range detail.Answers {
		v.Answers = append(v.Answers, answerView{Answer: a, CanEdit: canModify(u, a.AuthorID)})
	}

	roots := thread.Build(detail.Discussions)
	v.DiscussionCount = thread.Count(roots)
	for _, row := range thread.Rows(roots) {
		v.Rows = append(v.Rows, discussionRow{Row: row, CanEdit: canModify(u, row.Discussion.AuthorID)})
	}
	return v
}

// Board renders the question list and, for /qa/{id}, the selected post.
func (s *LeaseService) Board(w http.ResponseWriter, r *http.Request) {
	s.renderBoard(w, r, r.PathValue("id"), boardForms{}, http.StatusOK)
}

func (s *LeaseService) renderBoard(w http.ResponseWriter, r *http.Request, selectedID string, forms boardForms, status int) {
	ctx := r.Context()
	be := s.backend(r)

	posts, err := be.ListPosts(ctx)
	if err != nil {
		s.backendFailure(w, r, "list posts", err)
		return
	}

	q := parseBoardQuery(r)
	view := board.NewView(posts, q.Filter, board.Options{
		Now:        s.now(),
		SelectedID: selectedID,
		Collapsed:  q.Collapsed,
	})

	var selected *postView
	if view.Selected != nil {
		detail, err := be.GetPost(ctx, selectedID)
		switch {
		case errors.Is(err, api.ErrNotFound):
			view.NotFound = true
		case err != nil:
			s.backendFailure(w, r, "get post", err)
			return
		default:
			selected = newPostView(detail, currentUser(r))
		}
	}
	if view.NotFound {
		middleware.GetLogger(ctx).InfoContext(ctx, "selected post not found", slog.String("post_id", selectedID))
		status = http.StatusNotFound
	}

	basePath := "/qa"
	if selectedID != "" {
		basePath = postURL(selectedID)
	}

	groups := make([]boardGroup, 0, len(view.Groups))
	for _, g := range view.Groups {
		toggled := q
		toggled.Collapsed = q.Collapsed.Toggle(g.Bucket)
		bg := boardGroup{
			Label:     g.Label,
			Count:     len(g.Posts),
			Collapsed: g.Collapsed,
			ToggleURL: toggled.url(basePath),
		}
		for _, p := range g.Posts {
			bg.Items = append(bg.Items, boardItem{
				Post:      p,
				URL:       q.url("/qa/" + url.PathEscape(p.ID)),
				Active:    p.ID == selectedID,
				Scenarios: board.ScenariosFor(p),
			})
		}
		groups = append(groups, bg)
	}

	folders, _ := middleware.GetFolders(ctx)
	counts := board.FolderCounts(posts)
	folderLinks := make([]folderLink, 0, len(folders))
	for _, f := range folders {
		folderLinks = append(folderLinks, folderLink{
			Folder: f,
			Count:  counts[f.Name],
			URL:    q.withFolder(f.Name).url("/qa"),
			Active: q.Filter.Folder == f.Name,
		})
	}

	scenarioLinks := make([]scenarioLink, 0, len(board.Scenarios))
	for _, sc := range board.Scenarios {
		target := q.withScenario(sc.Slug)
		if q.Filter.Scenario == sc.Slug {
			target = q.withScenario("")
		}
		scenarioLinks = append(scenarioLinks, scenarioLink{
			Scenario: sc,
			URL:      target.url("/qa"),
			Active:   q.Filter.Scenario == sc.Slug,
		})
	}

	if forms.Answer == nil {
		forms.Answer = newFormState(&composer.ReplyDraft{})
	}
	if forms.Discussion == nil {
		forms.Discussion = newFormState(&composer.ReplyDraft{})
	}

	title := "Questions"
	if selected != nil {
		title = selected.Post.Summary
	}

	data := s.pageData(r, title)
	data["View"] = view
	data["Groups"] = groups
	data["Query"] = q.Filter
	data["FolderLinks"] = folderLinks
	data["ScenarioLinks"] = scenarioLinks
	data["AllFoldersURL"] = q.withFolder("").url("/qa")
	data["ClearURL"] = "/qa"
	data["Selected"] = selected
	data["SelectedID"] = selectedID
	data["BackURL"] = q.url("/qa")
	data["AnswerForm"] = forms.Answer
	data["DiscussionForm"] = forms.Discussion
	data["AnswerTypes"] = composer.AnswerTypes

	s.renderTemplate(w, r, "board.html", status, data)
}
