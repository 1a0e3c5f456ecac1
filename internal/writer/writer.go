// Package writer defines the contract between the viewer and the
// language-specific renderers, and the name-indexed registry of them.
package writer

import (
	"fmt"
	"strings"

	"dexview/internal/container"
	"dexview/internal/highlight"
)

// Options selects the sections of a rendered class.
type Options uint8

const (
	ShowAnnotations Options = 1 << iota // class-level annotations
	ShowName                            // class name header
	ShowDetails                         // modifiers, superclass, interfaces
	ShowFields                          // field declarations

	// DefaultOptions is what the viewer renders classes with.
	DefaultOptions = ShowAnnotations | ShowName | ShowDetails | ShowFields
)

var optionNames = []struct {
	name string
	opt  Options
}{
	{"annotations", ShowAnnotations},
	{"name", ShowName},
	{"details", ShowDetails},
	{"fields", ShowFields},
}

// Has reports whether all bits of o2 are set.
func (o Options) Has(o2 Options) bool { return o&o2 == o2 }

func (o Options) String() string {
	var parts []string
	for _, n := range optionNames {
		if o.Has(n.opt) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseOptions parses option names ("annotations", "name", "details",
// "fields"), also "all" and "none".
func ParseOptions(names []string) (Options, error) {
	var o Options
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "", "none":
			continue
		case "all":
			o |= DefaultOptions
			continue
		}
		found := false
		for _, n := range optionNames {
			if n.name == name {
				o |= n.opt
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("writer: unknown option %q", raw)
		}
	}
	return o, nil
}

// Indentation describes how method bodies are indented.
type Indentation struct {
	Base int  // indent of the declaration
	Step int  // extra indent per nesting level
	Char byte // ' ' or '\t'
}

// DefaultIndentation is (0, 4, ' ').
var DefaultIndentation = Indentation{Base: 0, Step: 4, Char: ' '}

// Prefix returns the indent string for a nesting level.
func (i Indentation) Prefix(level int) string {
	c := i.Char
	if c == 0 {
		c = ' '
	}
	return strings.Repeat(string(c), max(i.Base+level*i.Step, 0))
}

// Format controls method rendering.
type Format struct {
	Indent Indentation
	Code   bool // include the method body
}

// DefaultFormat renders method bodies with DefaultIndentation.
var DefaultFormat = Format{Indent: DefaultIndentation, Code: true}

// Writer renders classes and methods of a bound container as text.
type Writer interface {
	// Bind attaches the writer to a container. Called again whenever the
	// container changes.
	Bind(c container.Container)
	RenderClass(c *container.Class, opts Options) string
	RenderMethod(c *container.Class, m *container.Method, f Format) string
	// HighlightRules returns the writer's rules in application order.
	HighlightRules() []highlight.Spec
}

// Factory creates a fresh, unbound writer.
type Factory func() Writer
