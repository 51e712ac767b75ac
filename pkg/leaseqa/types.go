// Package leaseqa holds the records exchanged with the LeaseQA backend.
// The frontend never persists them; they live for one request.
package leaseqa

import "time"

type Role string

const (
	RoleTenant Role = "tenant"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) IsAdmin() bool  { return u != nil && u.Role == RoleAdmin }
func (u *User) IsLawyer() bool { return u != nil && u.Role == RoleLawyer }

// DefaultFolder is applied to a post submitted without any folder.
const DefaultFolder = "uncategorized"

type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

type Post struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Details     string       `json:"details"`
	Folders     []string     `json:"folders"`
	AuthorID    string       `json:"authorId"`
	Urgency     string       `json:"urgency"`
	IsResolved  bool         `json:"isResolved"`
	IsPinned    bool         `json:"isPinned"`
	ViewCount   int          `json:"viewCount"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// HasFolder reports whether the post is tagged with the folder slug.
func (p Post) HasFolder(slug string) bool {
	for _, f := range p.Folders {
		if f == slug {
			return true
		}
	}
	return false
}

// PostDetail is a post together with everything nested under it.
type PostDetail struct {
	Post
	Answers     []Answer     `json:"answers"`
	Discussions []Discussion `json:"discussions"`
}

type Answer struct {
	ID          string       `json:"id"`
	PostID      string       `json:"postId"`
	AuthorID    string       `json:"authorId"`
	AnswerType  string       `json:"answerType"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type Discussion struct {
	ID        string       `json:"id"`
	PostID    string       `json:"postId"`
	ParentID  string       `json:"parentId,omitempty"`
	AuthorID  string       `json:"authorId"`
	Content   string       `json:"content"`
	Replies   []Discussion `json:"replies,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

type Folder struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type StatsOverview struct {
	TotalPosts      int `json:"totalPosts"`
	UnansweredPosts int `json:"unansweredPosts"`
	ResolvedPosts   int `json:"resolvedPosts"`
	LawyerResponses int `json:"lawyerResponses"`
	TotalUsers      int `json:"totalUsers"`
}

type ReviewAnalysis struct {
	Summary         string   `json:"summary"`
	HighRisk        []string `json:"highRisk"`
	MediumRisk      []string `json:"mediumRisk"`
	LowRisk         []string `json:"lowRisk"`
	Recommendations []string `json:"recommendations"`
}

type Review struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Title        string         `json:"title"`
	ContractText string         `json:"contractText"`
	Analysis     ReviewAnalysis `json:"analysis"`
	CreatedAt    time.Time      `json:"createdAt"`
}
