// Package lang provides the built-in writers: Smali, Java and ARM64.
package lang

import (
	"slices"
	"sync"

	"dexview/internal/highlight"
	"dexview/internal/writer"
)

// Entry names a writer factory.
type Entry struct {
	Name string
	New  writer.Factory
}

// Builtin lists the built-in writers in menu order.
var Builtin = []Entry{
	{"Smali", NewSmali},
	{"Java", NewJava},
	{"ARM64", NewARM64},
}

var (
	defaultOnce     sync.Once
	defaultRegistry *writer.Registry
)

// Registry returns the process-wide registry of built-in writers. It is
// populated on first use and read-only afterwards.
func Registry() *writer.Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(nil)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewRegistry registers the built-in writers, appending extra highlight
// rules to the named writers. Bad extra rules fail registration with a
// *writer.MalformedRuleError.
func NewRegistry(extra map[string][]highlight.Spec) (*writer.Registry, error) {
	for name := range extra {
		if !slices.ContainsFunc(Builtin, func(e Entry) bool { return e.Name == name }) {
			return nil, &writer.UnknownWriterError{Name: name}
		}
	}

	r := writer.NewRegistry()
	for _, b := range Builtin {
		f := b.New
		if specs := extra[b.Name]; len(specs) > 0 {
			f = withRules(b.New, specs)
		}
		if err := r.Register(b.Name, f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// extended appends configured rules to a writer's own.
type extended struct {
	writer.Writer
	extra []highlight.Spec
}

func (e extended) HighlightRules() []highlight.Spec {
	own := e.Writer.HighlightRules()
	return append(own[:len(own):len(own)], e.extra...)
}

func withRules(f writer.Factory, extra []highlight.Spec) writer.Factory {
	return func() writer.Writer { return extended{Writer: f(), extra: extra} }
}
