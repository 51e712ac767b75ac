package composer

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

const (
	MaxSummaryLength     = 200
	MaxDetailsLength     = 50000
	MaxContentLength     = 20000
	MaxDisplayNameLength = 60
	MaxDescriptionLength = 500
)

// FormatHTML marks a draft body that holds saved HTML instead of markdown.
const FormatHTML = "html"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var (
	Urgencies   = []string{"low", "medium", "high"}
	AnswerTypes = []string{"lawyer_opinion", "community_answer", "general"}
)

func anyOf(vals []string) []interface{} {
	out := make([]interface{}, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// PostDraft is a question being written or edited.
type PostDraft struct {
	Summary string   `json:"summary"`
	Details string   `json:"details"`
	Urgency string   `json:"urgency"`
	Folders []string `json:"folders"`
	Format  string   `json:"format"`
}

func (d *PostDraft) Normalize() {
	d.Summary = strings.TrimSpace(d.Summary)
	d.Details = strings.TrimSpace(d.Details)
	d.Urgency = strings.ToLower(strings.TrimSpace(d.Urgency))

	folders := d.Folders
	d.Folders = nil
	for _, f := range folders {
		d.AddFolder(f)
	}
}

func (d *PostDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Summary,
			validation.Required.Error("a summary is required"),
			validation.RuneLength(1, MaxSummaryLength)),
		validation.Field(&d.Details,
			validation.Required.Error("details are required"),
			validation.RuneLength(1, MaxDetailsLength)),
		validation.Field(&d.Urgency, validation.In(anyOf(Urgencies)...)),
		validation.Field(&d.Folders, validation.Each(validation.Match(slugPattern))),
	)
}

// ApplyDefaults files a post with no folders under the default folder.
func (d *PostDraft) ApplyDefaults() {
	if len(d.Folders) == 0 {
		d.Folders = []string{leaseqa.DefaultFolder}
	}
}

// AddFolder selects a folder. Adding one already selected is a no-op; the
// result reports whether the selection changed.
func (d *PostDraft) AddFolder(slug string) bool {
	slug = strings.TrimSpace(slug)
	if slug == "" || d.HasFolder(slug) {
		return false
	}
	d.Folders = append(d.Folders, slug)
	return true
}

// RemoveFolder deselects a folder. Removing one not selected is a no-op.
func (d *PostDraft) RemoveFolder(slug string) bool {
	for i, f := range d.Folders {
		if f == slug {
			d.Folders = append(d.Folders[:i:i], d.Folders[i+1:]...)
			return true
		}
	}
	return false
}

func (d *PostDraft) HasFolder(slug string) bool {
	for _, f := range d.Folders {
		if f == slug {
			return true
		}
	}
	return false
}

// ReplyDraft is an answer or a discussion reply.
type ReplyDraft struct {
	Content    string `json:"content"`
	AnswerType string `json:"answerType"`
	ParentID   string `json:"parentId"`
	Format     string `json:"format"`
}

func (d *ReplyDraft) Normalize() {
	d.Content = strings.TrimSpace(d.Content)
	d.AnswerType = strings.TrimSpace(d.AnswerType)
	d.ParentID = strings.TrimSpace(d.ParentID)
}

func (d *ReplyDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Content,
			validation.Required.Error("a reply cannot be empty"),
			validation.RuneLength(1, MaxContentLength)),
		validation.Field(&d.AnswerType, validation.In(anyOf(AnswerTypes)...)),
	)
}

// FolderDraft is an admin folder form.
type FolderDraft struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

func (d *FolderDraft) Normalize() {
	d.Name = strings.ToLower(strings.TrimSpace(d.Name))
	d.DisplayName = strings.TrimSpace(d.DisplayName)
	d.Description = strings.TrimSpace(d.Description)
}

func (d *FolderDraft) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.Name,
			validation.Required.Error("a folder name is required"),
			validation.Length(1, 40),
			validation.Match(slugPattern).Error("use lowercase letters, digits and dashes")),
		validation.Field(&d.DisplayName,
			validation.Required.Error("a display name is required"),
			validation.RuneLength(1, MaxDisplayNameLength)),
		validation.Field(&d.Description, validation.RuneLength(0, MaxDescriptionLength)),
	)
}
