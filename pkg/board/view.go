package board

import (
	"time"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type Options struct {
	Now        time.Time
	SelectedID string
	Collapsed  Collapsed
}

// View is everything the list page renders.
type View struct {
	Filter     Filter
	Groups     []Group
	Total      int
	Matched    int
	SelectedID string
	Selected   *leaseqa.Post
	// NotFound is set when SelectedID names a post absent from the list.
	NotFound  bool
	Collapsed Collapsed
}

func NewView(posts []leaseqa.Post, f Filter, opts Options) View {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	if opts.Collapsed == nil {
		opts.Collapsed = Collapsed{}
	}

	matched := f.Apply(posts)
	v := View{
		Filter:     f,
		Groups:     GroupByRecency(matched, now, opts.Collapsed),
		Total:      len(posts),
		Matched:    len(matched),
		SelectedID: opts.SelectedID,
		Collapsed:  opts.Collapsed,
	}

	if opts.SelectedID != "" {
		// Selection searches the unfiltered list so a post hidden by the
		// current filter still opens.
		if p, ok := Find(posts, opts.SelectedID); ok {
			v.Selected = &p
		} else {
			v.NotFound = true
		}
	}
	return v
}

func (v View) Empty() bool {
	return len(v.Groups) == 0
}

func Find(posts []leaseqa.Post, id string) (leaseqa.Post, bool) {
	for _, p := range posts {
		if p.ID == id {
			return p, true
		}
	}
	return leaseqa.Post{}, false
}

// DisplayName resolves a folder slug to its display name, falling back to
// the slug for folders the backend no longer lists.
func DisplayName(folders []leaseqa.Folder, slug string) string {
	for _, f := range folders {
		if f.Name == slug {
			if f.DisplayName != "" {
				return f.DisplayName
			}
			break
		}
	}
	return slug
}

// FolderCounts counts posts per folder slug.
func FolderCounts(posts []leaseqa.Post) map[string]int {
	counts := make(map[string]int)
	for _, p := range posts {
		for _, f := range p.Folders {
			counts[f]++
		}
	}
	return counts
}
