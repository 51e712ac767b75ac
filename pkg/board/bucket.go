package board

import (
	"sort"
	"strings"
	"time"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type Bucket string

const (
	ThisWeek  Bucket = "thisWeek"
	LastWeek  Bucket = "lastWeek"
	ThisMonth Bucket = "thisMonth"
	Earlier   Bucket = "earlier"
)

// Buckets in display order.
var Buckets = []Bucket{ThisWeek, LastWeek, ThisMonth, Earlier}

func (b Bucket) Label() string {
	switch b {
	case ThisWeek:
		return "This week"
	case LastWeek:
		return "Last week"
	case ThisMonth:
		return "This month"
	default:
		return "Earlier"
	}
}

func (b Bucket) valid() bool {
	for _, v := range Buckets {
		if v == b {
			return true
		}
	}
	return false
}

// ElapsedDays is the number of whole days between created and now,
// rounded down. Timestamps after now count as day 0.
func ElapsedDays(created, now time.Time) int {
	d := now.Sub(created)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// BucketFor assigns a post age to its bucket: 0-6 days this week, 7-13
// last week, 14-30 this month, older earlier.
func BucketFor(created, now time.Time) Bucket {
	switch days := ElapsedDays(created, now); {
	case days <= 6:
		return ThisWeek
	case days <= 13:
		return LastWeek
	case days <= 30:
		return ThisMonth
	default:
		return Earlier
	}
}

type Group struct {
	Bucket    Bucket
	Label     string
	Posts     []leaseqa.Post
	Collapsed bool
}

// SortNewestFirst orders posts by CreatedAt descending. Ties keep their
// input order.
func SortNewestFirst(posts []leaseqa.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

// GroupByRecency sorts a copy of posts newest first and splits it into
// buckets. Empty buckets are omitted.
func GroupByRecency(posts []leaseqa.Post, now time.Time, collapsed Collapsed) []Group {
	sorted := make([]leaseqa.Post, len(posts))
	copy(sorted, posts)
	SortNewestFirst(sorted)

	byBucket := make(map[Bucket][]leaseqa.Post, len(Buckets))
	for _, p := range sorted {
		b := BucketFor(p.CreatedAt, now)
		byBucket[b] = append(byBucket[b], p)
	}

	groups := make([]Group, 0, len(Buckets))
	for _, b := range Buckets {
		ps := byBucket[b]
		if len(ps) == 0 {
			continue
		}
		groups = append(groups, Group{
			Bucket:    b,
			Label:     b.Label(),
			Posts:     ps,
			Collapsed: collapsed[b],
		})
	}
	return groups
}

// Collapsed is the set of buckets folded shut in the list view. It travels
// in the query string as a comma separated list.
type Collapsed map[Bucket]bool

func ParseCollapsed(s string) Collapsed {
	c := Collapsed{}
	for _, part := range strings.Split(s, ",") {
		b := Bucket(strings.TrimSpace(part))
		if b.valid() {
			c[b] = true
		}
	}
	return c
}

// String encodes the set in display order.
func (c Collapsed) String() string {
	var parts []string
	for _, b := range Buckets {
		if c[b] {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, ",")
}

// Toggle returns a copy of c with b flipped.
func (c Collapsed) Toggle(b Bucket) Collapsed {
	out := make(Collapsed, len(c)+1)
	for k, v := range c {
		if v {
			out[k] = true
		}
	}
	if out[b] {
		delete(out, b)
	} else {
		out[b] = true
	}
	return out
}
