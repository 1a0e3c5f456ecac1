// Package viewer ties the index, the visibility filter, the active writer
// and its highlight rules into one session over an opened container.
//
// A session moves Inactive → Bound → Rendering. Opening a container or
// switching writers returns it to Bound; selecting a node renders it and
// moves it to Rendering. Sessions are not safe for concurrent use.
package viewer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"dexview/internal/container"
	"dexview/internal/filter"
	"dexview/internal/highlight"
	"dexview/internal/index"
	"dexview/internal/loader"
	"dexview/internal/writer"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInactive = errors.New("viewer: no container open")
	ErrNoNode   = errors.New("viewer: no such node")
)

// DefaultCacheSize is the number of rendered pages kept per session.
const DefaultCacheSize = 256

// State is the session state.
type State int

const (
	Inactive State = iota
	Bound
	Rendering
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Bound:
		return "bound"
	case Rendering:
		return "rendering"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Opener opens a container by path.
type Opener func(path string) (container.Container, error)

// LoaderOpener opens paths with the loader, extracting archives as needed.
func LoaderOpener(opts loader.Options) Opener {
	return func(path string) (container.Container, error) {
		return loader.Open(path, opts)
	}
}

// Options configures a session. Zero values select defaults.
type Options struct {
	Registry     *writer.Registry
	Open         Opener
	Writer       string          // initial writer; default the first registered
	ClassOptions *writer.Options // default writer.DefaultOptions
	MethodFormat *writer.Format  // default writer.DefaultFormat
	CacheSize    int
	Logger       *slog.Logger
}

// Page is a rendered node.
type Page struct {
	Node  index.NodeID
	Text  string
	Spans []highlight.Span
}

type pageKey struct {
	writer string
	opts   writer.Options
	node   index.NodeID
}

// Session is one viewer session.
type Session struct {
	reg       *writer.Registry
	open      Opener
	classOpts writer.Options
	format    writer.Format
	log       *slog.Logger
	cache     *lru.Cache[pageKey, Page]

	state    State
	path     string
	cont     container.Container
	tree     *index.Tree
	query    string
	vis      filter.Visibility
	name     string
	w        writer.Writer
	rules    []highlight.Rule
	selected index.NodeID
	page     Page
}

// New creates an inactive session with the initial writer activated.
func New(opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, errors.New("viewer: no writer registry")
	}
	s := &Session{
		reg:       opts.Registry,
		open:      opts.Open,
		classOpts: writer.DefaultOptions,
		format:    writer.DefaultFormat,
		log:       opts.Logger,
		selected:  index.NoParent,
	}
	if s.open == nil {
		s.open = LoaderOpener(loader.Options{})
	}
	if opts.ClassOptions != nil {
		s.classOpts = *opts.ClassOptions
	}
	if opts.MethodFormat != nil {
		s.format = *opts.MethodFormat
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[pageKey, Page](size)
	if err != nil {
		return nil, fmt.Errorf("viewer: page cache: %w", err)
	}
	s.cache = cache

	name := opts.Writer
	if name == "" {
		names := s.reg.Names()
		if len(names) == 0 {
			return nil, errors.New("viewer: registry has no writers")
		}
		name = names[0]
	}
	if err := s.UseWriter(name); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) State() State                   { return s.state }
func (s *Session) Path() string                   { return s.path }
func (s *Session) Container() container.Container { return s.cont }
func (s *Session) Tree() *index.Tree              { return s.tree }
func (s *Session) Query() string                  { return s.query }
func (s *Session) Visibility() filter.Visibility  { return s.vis }
func (s *Session) WriterName() string             { return s.name }
func (s *Session) Writers() []string              { return s.reg.Names() }
func (s *Session) Rules() []highlight.Rule        { return s.rules }
func (s *Session) ClassOptions() writer.Options   { return s.classOpts }

// Selected returns the selected node, if any.
func (s *Session) Selected() (index.NodeID, bool) {
	return s.selected, s.selected != index.NoParent
}

// Page returns the last rendered page; ok is false unless Rendering.
func (s *Session) Page() (Page, bool) {
	return s.page, s.state == Rendering
}

// Open opens path and replaces the current container. On failure the
// session is left exactly as it was.
func (s *Session) Open(path string) error {
	c, err := s.open(path)
	if err != nil {
		s.log.Warn("session.open_failed", "path", path, "err", err)
		return err
	}
	if s.cont != nil {
		if err := s.cont.Close(); err != nil {
			s.log.Warn("session.close_failed", "path", s.path, "err", err)
		}
	}

	s.cont, s.path = c, path
	s.tree = index.BuildIndex(c.Classes())
	s.vis = filter.ComputeVisibility(s.tree, s.query)
	s.w.Bind(c)
	s.cache.Purge()
	s.selected, s.page = index.NoParent, Page{}
	s.state = Bound

	pkgs, classes, methods := s.tree.Counts()
	s.log.Info("session.open", "path", path, "format", c.Format(),
		"packages", pkgs, "classes", classes, "methods", methods)
	return nil
}

// Close disposes the container and returns the session to Inactive.
func (s *Session) Close() error {
	if s.cont == nil {
		return nil
	}
	err := s.cont.Close()
	s.log.Info("session.close", "path", s.path)
	s.cont, s.path, s.tree = nil, "", nil
	s.vis = filter.Visibility{}
	s.w.Bind(nil)
	s.cache.Purge()
	s.selected, s.page = index.NoParent, Page{}
	s.state = Inactive
	return err
}

// UseWriter activates the named writer. An unknown name leaves the session
// untouched. Otherwise the previous rules are dropped, the session returns
// to Bound and the current selection, if any, is rendered again.
func (s *Session) UseWriter(name string) error {
	w, rules, err := s.reg.Activate(name)
	if err != nil {
		return err
	}
	s.name, s.w, s.rules = name, w, rules
	s.w.Bind(s.cont)
	s.cache.Purge()
	s.page = Page{}
	if s.cont == nil {
		return nil
	}
	s.state = Bound
	s.log.Debug("session.writer", "writer", name, "rules", len(rules))

	if id, ok := s.Selected(); ok {
		if _, err := s.Select(id); err != nil {
			return err
		}
	}
	return nil
}

// SetClassOptions changes the class display options and re-renders the
// current selection. Pages rendered with other options stay cached.
func (s *Session) SetClassOptions(o writer.Options) error {
	s.classOpts = o
	if id, ok := s.Selected(); ok && s.state != Inactive {
		_, err := s.Select(id)
		return err
	}
	return nil
}

// Search recomputes visibility for query.
func (s *Session) Search(query string) filter.Visibility {
	s.query = query
	if s.tree != nil {
		s.vis = filter.ComputeVisibility(s.tree, query)
		s.log.Debug("session.search", "query", query, "visible", s.vis.Count())
	}
	return s.vis
}

// Select renders node id with the active writer and highlights it.
// Package nodes render as empty text.
func (s *Session) Select(id index.NodeID) (Page, error) {
	if s.state == Inactive {
		return Page{}, ErrInactive
	}
	n := s.tree.Node(id)
	if n == nil {
		return Page{}, fmt.Errorf("%w: %d", ErrNoNode, id)
	}

	key := pageKey{writer: s.name, opts: s.classOpts, node: id}
	p, hit := s.cache.Get(key)
	if !hit {
		text := s.render(n)
		p = Page{Node: id, Text: text, Spans: highlight.ApplyHighlights(text, s.rules)}
		s.cache.Add(key, p)
	}
	s.selected, s.page = id, p
	s.state = Rendering
	return p, nil
}

// Render renders node id without changing the selection.
func (s *Session) Render(id index.NodeID) (string, error) {
	if s.state == Inactive {
		return "", ErrInactive
	}
	n := s.tree.Node(id)
	if n == nil {
		return "", fmt.Errorf("%w: %d", ErrNoNode, id)
	}
	return s.render(n), nil
}

func (s *Session) render(n *index.Node) string {
	switch n.Kind {
	case index.KindClass:
		return s.w.RenderClass(n.Class, s.classOpts)
	case index.KindMethod:
		return s.w.RenderMethod(n.Class, n.Method, s.format)
	}
	return ""
}
