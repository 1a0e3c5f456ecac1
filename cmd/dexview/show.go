package main

import (
	"encoding/json"
	"fmt"
	"os"

	"dexview/internal/highlight"
	"dexview/internal/render"

	"github.com/spf13/cobra"
)

type showFlags struct {
	sessionOptions
	color bool
	html  string
	json  bool
}

// pageJSON is the --json form of a rendered node. Span offsets count
// characters, not bytes.
type pageJSON struct {
	Node  string     `json:"node"`
	Text  string     `json:"text"`
	Spans []spanJSON `json:"spans"`
}

type spanJSON struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Color string `json:"color"`
}

func newShowCommand(a *app) *cobra.Command {
	f := &showFlags{}
	cmd := &cobra.Command{
		Use:   "show <file> <node>",
		Short: "Render one package, class or method",
		Long: `Render a node with the active writer. Packages render as empty text.

Examples:
  dexview show app.apk com.example.MainActivity
  dexview show app.apk 'com.example.MainActivity#onCreate' --writer Java
  dexview show libnative.so com.example.Native#hello --color
  dexview show app.apk com.example.MainActivity --html page.html
  dexview show app.apk com.example.MainActivity --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShow(cmd, args[0], args[1], f)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.color, "color", false, "highlight with 24-bit ANSI colours")
	cmd.Flags().StringVar(&f.html, "html", "", "write a highlighted HTML page to this file ('-' for stdout)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print text and highlight spans (character offsets) as JSON")
	return cmd
}

func (a *app) runShow(cmd *cobra.Command, path, node string, f *showFlags) error {
	s, err := a.open(path, f.sessionOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	id, ok := s.Tree().Find(node)
	if !ok {
		return fmt.Errorf("no node %q in %s", node, path)
	}
	page, err := s.Select(id)
	if err != nil {
		return err
	}

	switch {
	case f.json:
		out := pageJSON{Node: s.Tree().Path(id), Text: page.Text, Spans: []spanJSON{}}
		for _, sp := range highlight.RuneSpans(page.Text, page.Spans) {
			out.Spans = append(out.Spans, spanJSON{Start: sp.Start, End: sp.End, Color: highlight.Hex(sp.Style)})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case f.html == "-":
		render.WritePageHTML(cmd.OutOrStdout(), node, page.Text, page.Spans, render.NASA)
	case f.html != "":
		out, err := os.Create(f.html)
		if err != nil {
			return err
		}
		render.WritePageHTML(out, node, page.Text, page.Spans, render.NASA)
		if err := out.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", f.html)
	case f.color:
		fmt.Fprint(cmd.OutOrStdout(), highlight.ANSI(page.Text, page.Spans))
	default:
		fmt.Fprint(cmd.OutOrStdout(), page.Text)
	}
	return nil
}
