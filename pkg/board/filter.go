// Package board derives the Q&A list view from the posts fetched from the
// backend: filtering, recency grouping, and selection.
//
// Everything here is a pure function of its inputs. The board is rebuilt
// from a fresh fetch on every request.
package board

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type Status string

const (
	StatusAll      Status = "all"
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// ParseStatus maps a query value to a Status; unknown values mean all.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen
	case StatusResolved:
		return StatusResolved
	default:
		return StatusAll
	}
}

// Filter is the set of list constraints. The zero value matches every post.
type Filter struct {
	Query    string
	Folder   string
	Scenario string
	Status   Status
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.Folder == "" && f.Scenario == "" &&
		(f.Status == "" || f.Status == StatusAll)
}

var textPolicy = bluemonday.StrictPolicy()

// PlainText strips markup from backend HTML and unescapes entities.
func PlainText(s string) string {
	return html.UnescapeString(textPolicy.Sanitize(s))
}

func searchText(p leaseqa.Post) string {
	return strings.ToLower(p.Summary + "\n" + PlainText(p.Details))
}

// Match reports whether p satisfies every constraint in f.
func (f Filter) Match(p leaseqa.Post) bool {
	switch f.Status {
	case StatusOpen:
		if p.IsResolved {
			return false
		}
	case StatusResolved:
		if !p.IsResolved {
			return false
		}
	}

	if f.Folder != "" && !p.HasFolder(f.Folder) {
		return false
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" && f.Scenario == "" {
		return true
	}

	text := searchText(p)
	if q != "" && !strings.Contains(text, q) {
		return false
	}

	if f.Scenario != "" {
		sc, ok := LookupScenario(f.Scenario)
		if ok && !sc.matchesText(text) {
			return false
		}
	}
	return true
}

// Apply returns the posts matching f, preserving input order. Apply is
// idempotent: Apply(Apply(ps)) equals Apply(ps).
func (f Filter) Apply(posts []leaseqa.Post) []leaseqa.Post {
	out := make([]leaseqa.Post, 0, len(posts))
	for _, p := range posts {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
