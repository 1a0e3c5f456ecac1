// Package filter computes search visibility over an index tree.
package filter

import (
	"strings"

	"dexview/internal/index"
)

// Visibility holds one flag per node of the tree it was computed from.
type Visibility struct {
	query string
	flags []bool
}

// Query returns the query the flags were computed for.
func (v Visibility) Query() string { return v.query }

// Visible reports whether node id is shown. Unknown ids are hidden.
func (v Visibility) Visible(id index.NodeID) bool {
	return id >= 0 && int(id) < len(v.flags) && v.flags[id]
}

// Count returns the number of visible nodes.
func (v Visibility) Count() int {
	n := 0
	for _, f := range v.flags {
		if f {
			n++
		}
	}
	return n
}

// ComputeVisibility matches query case-insensitively as a substring of class
// and method names. A matching method makes its class and package visible,
// a visible class makes its package visible. Package keys themselves are
// not matched. The empty query shows everything.
func ComputeVisibility(t *index.Tree, query string) Visibility {
	v := Visibility{query: query, flags: make([]bool, t.Len())}
	q := strings.ToLower(query)

	// Children follow their parents in pre-order, so a reverse walk sees
	// every descendant before its ancestors.
	for i := t.Len() - 1; i >= 0; i-- {
		n := t.Node(index.NodeID(i))
		if n.Kind != index.KindPackage && strings.Contains(strings.ToLower(n.Name()), q) {
			v.flags[i] = true
		}
		if v.flags[i] && n.Parent != index.NoParent {
			v.flags[n.Parent] = true
		}
	}
	return v
}

// VisibleNodes lists the visible nodes of t in pre-order.
func VisibleNodes(t *index.Tree, v Visibility) []*index.Node {
	var out []*index.Node
	t.Walk(func(n *index.Node) bool {
		if v.Visible(n.ID) {
			out = append(out, n)
		}
		return true
	})
	return out
}
