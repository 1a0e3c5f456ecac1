// Package index groups decoded classes into an immutable
// package → class → method tree.
//
// Node ids are dense and stable for one tree. A tree built from one
// container must not be queried with ids from another; rebuilding after a
// container change is the caller's job.
package index

import (
	"fmt"
	"slices"
	"strings"

	"dexview/internal/container"
)

// DefaultPackage groups classes whose name has no '.'.
const DefaultPackage = "default"

// Kind tags a tree node.
type Kind uint8

const (
	KindPackage Kind = iota
	KindClass
	KindMethod
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// NodeID identifies a node within one Tree.
type NodeID int

// NoParent is the parent of package nodes.
const NoParent NodeID = -1

// Node is one entry of the tree. Exactly one of Package, Class and Method is
// meaningful, selected by Kind. Class and Method point into the container.
type Node struct {
	ID       NodeID
	Kind     Kind
	Parent   NodeID
	Children []NodeID

	Package string
	Class   *container.Class
	Method  *container.Method
}

// Name is the text matched by searches: the package key, the fully
// qualified class name, or the method name.
func (n *Node) Name() string {
	switch n.Kind {
	case KindClass:
		return n.Class.Name
	case KindMethod:
		return n.Method.Name
	}
	return n.Package
}

// Label is the display text: class names lose their package prefix.
func (n *Node) Label() string {
	if n.Kind == KindClass {
		return n.Class.SimpleName()
	}
	return n.Name()
}

// Tree is an immutable package → class → method forest. Nodes are stored in
// pre-order, so NodeID order is display order.
type Tree struct {
	nodes   []Node
	roots   []NodeID
	classes map[string]NodeID // first class node per name
}

// PackageKey returns the grouping key of a class name: everything before the
// last '.', or DefaultPackage when there is none. Names beginning or ending
// with '.' may yield an empty key; it is kept as is.
func PackageKey(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return DefaultPackage
	}
	return name[:i]
}

// BuildIndex groups classes by package key. Packages are sorted
// lexicographically; classes and methods keep container order.
func BuildIndex(classes []*container.Class) *Tree {
	byPkg := make(map[string][]*container.Class)
	for _, c := range classes {
		key := PackageKey(c.Name)
		byPkg[key] = append(byPkg[key], c)
	}
	keys := make([]string, 0, len(byPkg))
	for k := range byPkg {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t := &Tree{classes: make(map[string]NodeID, len(classes))}
	for _, key := range keys {
		pkg := t.add(Node{Kind: KindPackage, Parent: NoParent, Package: key})
		t.roots = append(t.roots, pkg)
		for _, c := range byPkg[key] {
			cls := t.add(Node{Kind: KindClass, Parent: pkg, Package: key, Class: c})
			if _, dup := t.classes[c.Name]; !dup {
				t.classes[c.Name] = cls
			}
			for _, m := range c.Methods {
				t.add(Node{Kind: KindMethod, Parent: cls, Package: key, Class: c, Method: m})
			}
		}
	}
	return t
}

func (t *Tree) add(n Node) NodeID {
	n.ID = NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	if n.Parent != NoParent {
		p := &t.nodes[n.Parent]
		p.Children = append(p.Children, n.ID)
	}
	return n.ID
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Roots returns the package nodes in order.
func (t *Tree) Roots() []NodeID { return t.roots }

// Node returns the node with the given id, or nil if it is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Walk visits every node in pre-order until fn returns false.
func (t *Tree) Walk(fn func(*Node) bool) {
	for i := range t.nodes {
		if !fn(&t.nodes[i]) {
			return
		}
	}
}

// Counts returns the number of package, class and method nodes.
func (t *Tree) Counts() (packages, classes, methods int) {
	t.Walk(func(n *Node) bool {
		switch n.Kind {
		case KindPackage:
			packages++
		case KindClass:
			classes++
		case KindMethod:
			methods++
		}
		return true
	})
	return
}

// Path returns the address of a node as accepted by Find: "pkg",
// "pkg.Class" (the class name) or "pkg.Class#method". A package whose key is
// also a class name (classes "a.b" and "a.b.C") is addressed as "pkg.".
func (t *Tree) Path(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindMethod:
		return n.Class.Name + "#" + n.Method.Name
	case KindPackage:
		if _, shadowed := t.classes[n.Package]; shadowed {
			return n.Package + "."
		}
	}
	return n.Name()
}

// Find resolves a path produced by Path. Class names take precedence over
// package keys; the first method of an overloaded name wins.
func (t *Tree) Find(path string) (NodeID, bool) {
	className, method, isMethod := strings.Cut(path, "#")
	if !isMethod {
		if id, ok := t.classes[path]; ok {
			return id, true
		}
		if id, ok := t.pkg(path); ok {
			return id, true
		}
		if key, ok := strings.CutSuffix(path, "."); ok {
			return t.pkg(key)
		}
		return NoParent, false
	}
	cls, ok := t.classes[className]
	if !ok {
		return NoParent, false
	}
	for _, mid := range t.nodes[cls].Children {
		if t.nodes[mid].Method.Name == method {
			return mid, true
		}
	}
	return NoParent, false
}

func (t *Tree) pkg(key string) (NodeID, bool) {
	i, ok := slices.BinarySearchFunc(t.roots, key, func(id NodeID, key string) int {
		return strings.Compare(t.nodes[id].Package, key)
	})
	if !ok {
		return NoParent, false
	}
	return t.roots[i], true
}
