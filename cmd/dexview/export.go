package main

import (
	"bytes"
	"fmt"
	"path/filepath"

	"dexview/internal/callgraph"
	"dexview/internal/highlight"
	"dexview/internal/index"
	"dexview/internal/output"
	"dexview/internal/render"
	"dexview/internal/viewer"

	"github.com/spf13/cobra"
)

// extensions maps built-in writers to export file extensions.
var extensions = map[string]string{
	"Smali": "smali",
	"Java":  "java",
	"ARM64": "s",
}

type exportFlags struct {
	sessionOptions
	out     string
	html    bool
	methods bool
}

func newExportCommand(a *app) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Render every class to a directory tree",
		Long: `Render every class with the active writer to <out>/<writer>/<pkg path>/<Class>.<ext>
and write the index to <out>/index.json. With --methods each class file is
followed by its rendered methods. With --html a highlighted page is written
next to each class and an index.html summary at the top.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args[0], f)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (required)")
	cmd.Flags().BoolVar(&f.html, "html", false, "also write highlighted HTML pages")
	cmd.Flags().BoolVar(&f.methods, "methods", true, "append rendered methods to each class")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, path string, f *exportFlags) error {
	s, err := a.open(path, f.sessionOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	t := s.Tree()
	name := s.WriterName()
	ext, ok := extensions[name]
	if !ok {
		ext = "txt"
	}

	var pages []render.PageLink
	written := 0
	for _, r := range t.Roots() {
		for _, cid := range t.Node(r).Children {
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			cls := t.Node(cid)
			text, spans, err := a.renderClass(s, t, cls, f.methods)
			if err != nil {
				return err
			}
			if _, err := output.WriteClass(f.out, name, cls.Class.Name, ext, text); err != nil {
				return err
			}
			written++
			if f.html {
				rel := filepath.Join(name, output.ClassPath(cls.Class.Name)+".html")
				var buf bytes.Buffer
				render.WritePageHTML(&buf, cls.Class.Name, text, spans, render.NASA)
				if err := output.WriteFile(f.out, rel, buf.Bytes()); err != nil {
					return err
				}
				pages = append(pages, render.PageLink{Label: cls.Class.Name, Href: filepath.ToSlash(rel)})
			}
		}
	}

	if err := output.WriteIndexJSON(f.out, output.Entries(t, nil)); err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "wrote %d %s classes to %s\n", written, name, filepath.Join(f.out, name))
	fmt.Fprintf(stderr, "wrote %s\n", filepath.Join(f.out, "index.json"))

	if f.html {
		pkgs, classes, methods := t.Counts()
		summary := render.IndexSummary{
			Title:    filepath.Base(path),
			Format:   s.Container().Format(),
			Writer:   name,
			Packages: pkgs,
			Classes:  classes,
			Methods:  methods,
			Pages:    pages,
		}
		if funcs := callgraph.Collect(s.Container()); len(funcs) > 0 {
			stats := render.ComputeStats(funcs)
			summary.Graph = &stats
		}
		var buf bytes.Buffer
		render.WriteIndexHTML(&buf, summary, render.NASA)
		if err := output.WriteFile(f.out, "index.html", buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "wrote %s\n", filepath.Join(f.out, "index.html"))
	}
	return nil
}

// renderClass renders a class and, optionally, its methods, concatenating
// the pages and shifting the method spans.
func (a *app) renderClass(s *viewer.Session, t *index.Tree, cls *index.Node, methods bool) (string, []highlight.Span, error) {
	page, err := s.Select(cls.ID)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(page.Text)
	spans := append([]highlight.Span(nil), page.Spans...)
	if !methods {
		return buf.String(), spans, nil
	}
	for _, mid := range cls.Children {
		mp, err := s.Select(mid)
		if err != nil {
			return "", nil, err
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		base := buf.Len()
		buf.WriteString(mp.Text)
		for _, sp := range mp.Spans {
			sp.Start += base
			sp.End += base
			spans = append(spans, sp)
		}
	}
	a.log.Debug("export.class", "class", t.Path(cls.ID), "bytes", buf.Len())
	return buf.String(), spans, nil
}
