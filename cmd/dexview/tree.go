package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"dexview/internal/filter"
	"dexview/internal/output"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type treeFlags struct {
	query  string
	format string
	paths  bool
}

func newTreeCommand(a *app) *cobra.Command {
	f := &treeFlags{}
	cmd := &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the package/class/method index",
		Long: `Print the index of a file grouped by package. With --query only matching
classes and methods are listed, together with their packages.

Examples:
  dexview tree app.apk
  dexview tree app.apk --query onCreate
  dexview tree classes.dex --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTree(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "case-insensitive substring filter")
	cmd.Flags().StringVar(&f.format, "format", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&f.paths, "paths", false, "print node paths instead of labels (text only)")
	return cmd
}

func (a *app) runTree(cmd *cobra.Command, path string, f *treeFlags) error {
	s, err := a.open(path, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	t := s.Tree()
	vis := s.Search(f.query)
	out := cmd.OutOrStdout()

	switch f.format {
	case "text":
		for _, n := range filter.VisibleNodes(t, vis) {
			if f.paths {
				fmt.Fprintln(out, t.Path(n.ID))
				continue
			}
			// package, class and method depths match their kinds
			fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", int(n.Kind)), n.Label())
		}
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(output.Entries(t, vis.Visible))
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(output.Entries(t, vis.Visible)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", f.format)
	}
	return nil
}
