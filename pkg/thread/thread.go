// Package thread arranges a post's discussion replies into a forest and
// walks it depth-first without recursion, so arbitrarily deep reply chains
// cannot exhaust the stack.
package thread

import (
	"sort"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type Node struct {
	Discussion leaseqa.Discussion
	Children   []*Node
}

// Row is one line of the rendered thread.
type Row struct {
	Discussion leaseqa.Discussion
	Depth      int
}

// Flatten turns input that may carry nested Replies into a flat list in
// which every reply names its parent. Replies fields are cleared.
func Flatten(items []leaseqa.Discussion) []leaseqa.Discussion {
	type pending struct {
		d        leaseqa.Discussion
		parentID string
	}

	out := make([]leaseqa.Discussion, 0, len(items))
	stack := make([]pending, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		stack = append(stack, pending{d: items[i]})
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		d := p.d
		if d.ParentID == "" {
			d.ParentID = p.parentID
		}
		replies := d.Replies
		d.Replies = nil
		out = append(out, d)

		for i := len(replies) - 1; i >= 0; i-- {
			stack = append(stack, pending{d: replies[i], parentID: d.ID})
		}
	}
	return out
}

// Build arranges items into a forest by ParentID. Items whose parent is
// missing become roots; so does the first member of any parent cycle.
// Siblings are ordered by CreatedAt, oldest first.
func Build(items []leaseqa.Discussion) []*Node {
	flat := Flatten(items)

	nodes := make(map[string]*Node, len(flat))
	order := make([]*Node, 0, len(flat))
	for _, d := range flat {
		if _, dup := nodes[d.ID]; dup && d.ID != "" {
			continue
		}
		n := &Node{Discussion: d}
		if d.ID != "" {
			nodes[d.ID] = n
		}
		order = append(order, n)
	}

	var roots []*Node
	parentOf := make(map[*Node]*Node, len(order))
	for _, n := range order {
		parent, ok := nodes[n.Discussion.ParentID]
		if n.Discussion.ParentID == "" || !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
		parentOf[n] = parent
	}

	// Nodes on a parent cycle are unreachable from any root.
	seen := make(map[*Node]bool, len(order))
	mark := func(from []*Node) {
		Walk(from, func(n *Node, _ int) bool {
			seen[n] = true
			return true
		})
	}
	mark(roots)
	for _, n := range order {
		if seen[n] {
			continue
		}
		if p := parentOf[n]; p != nil {
			p.Children = removeChild(p.Children, n)
		}
		roots = append(roots, n)
		mark([]*Node{n})
	}

	sortSiblings(roots)
	Walk(roots, func(n *Node, _ int) bool {
		sortSiblings(n.Children)
		return true
	})
	return roots
}

func removeChild(children []*Node, n *Node) []*Node {
	for i, c := range children {
		if c == n {
			return append(children[:i:i], children[i+1:]...)
		}
	}
	return children
}

func sortSiblings(ns []*Node) {
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].Discussion.CreatedAt.Before(ns[j].Discussion.CreatedAt)
	})
}

// Walk visits the forest depth-first in display order. Returning false
// from fn skips the node's children.
func Walk(roots []*Node, fn func(n *Node, depth int) bool) {
	type frame struct {
		n     *Node
		depth int
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(f.n, f.depth) {
			continue
		}
		for i := len(f.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.n.Children[i], f.depth + 1})
		}
	}
}

// Rows flattens the forest into display rows.
func Rows(roots []*Node) []Row {
	var rows []Row
	Walk(roots, func(n *Node, depth int) bool {
		rows = append(rows, Row{Discussion: n.Discussion, Depth: depth})
		return true
	})
	return rows
}

// Count returns the number of nodes in the forest.
func Count(roots []*Node) int {
	n := 0
	Walk(roots, func(*Node, int) bool {
		n++
		return true
	})
	return n
}
