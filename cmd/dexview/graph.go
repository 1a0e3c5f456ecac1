package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dexview/internal/callgraph"
	"dexview/internal/disasm"
	"dexview/internal/output"
	"dexview/internal/render"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice"
	latticerender "github.com/zboralski/lattice/render"
)

type graphFlags struct {
	out      string
	style    string
	maxNodes int
	cfg      bool
}

func newGraphCommand(a *app) *cobra.Command {
	f := &graphFlags{}
	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Write call graph and CFG DOT files for native methods",
		Long: `Disassemble every ARM64 native method and write Graphviz DOT files:

  callgraph.dot     method → callee edges (BL targets and JNIEnv calls)
  classgraph.dot    aggregated class → class calls (nasa style only)
  cfg/<method>.dot  per-method control flow graphs (with --cfg)
  index.html        summary of the analyzed code

--style lattice renders with the lattice renderer, --style nasa with the
built-in NASA theme (edges coloured by provenance, methods clustered by
class).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGraph(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output directory (required)")
	cmd.Flags().StringVar(&f.style, "style", "nasa", "DOT style: nasa or lattice")
	cmd.Flags().IntVar(&f.maxNodes, "max-nodes", 0, "limit rendered nodes (0 = all, nasa style)")
	cmd.Flags().BoolVar(&f.cfg, "cfg", false, "also write per-method CFGs")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) runGraph(cmd *cobra.Command, path string, f *graphFlags) error {
	if f.style != "nasa" && f.style != "lattice" {
		return fmt.Errorf("unknown style %q", f.style)
	}
	s, err := a.open(path, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	funcs := callgraph.Collect(s.Container())
	if len(funcs) == 0 {
		return fmt.Errorf("%s: no ARM64 native methods", path)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.out, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", f.out, err)
	}
	stderr := cmd.ErrOrStderr()
	title := filepath.Base(path)

	files := map[string]string{}
	var links []render.PageLink
	if f.style == "lattice" {
		cg := callgraph.BuildCallGraph(funcs)
		files["callgraph.dot"] = latticerender.DOT(cg, "callgraph")
		a.log.Debug("graph.callgraph", "nodes", len(cg.Nodes), "edges", len(cg.Edges))
	} else {
		files["callgraph.dot"] = render.CallgraphDOT(funcs, title, render.NASA, f.maxNodes)
		files["classgraph.dot"] = render.ClassgraphDOT(funcs, title, render.NASA, f.maxNodes)
	}
	for _, name := range []string{"callgraph.dot", "classgraph.dot"} {
		if dot, ok := files[name]; ok {
			links = append(links, render.PageLink{Label: name, Href: name})
			if err := output.WriteFile(f.out, name, []byte(dot)); err != nil {
				return err
			}
			fmt.Fprintf(stderr, "wrote %s (%d bytes)\n", filepath.Join(f.out, name), len(dot))
		}
	}

	if f.cfg {
		n, err := writeCFGs(ctx, f, funcs)
		if err != nil {
			return err
		}
		if n > 0 {
			links = append(links, render.PageLink{Label: "Per-method CFGs", Href: "cfg/"})
		}
		fmt.Fprintf(stderr, "wrote %d per-method CFG DOTs to %s\n", n, filepath.Join(f.out, "cfg"))
	}

	stats := render.ComputeStats(funcs)
	pkgs, classes, methods := s.Tree().Counts()
	var buf bytes.Buffer
	render.WriteIndexHTML(&buf, render.IndexSummary{
		Title:    title,
		Format:   s.Container().Format(),
		Writer:   s.WriterName(),
		Packages: pkgs,
		Classes:  classes,
		Methods:  methods,
		Graph:    &stats,
		Graphs:   links,
	}, render.NASA)
	if err := output.WriteFile(f.out, "index.html", buf.Bytes()); err != nil {
		return err
	}
	if stats.BLREdges > 0 {
		fmt.Fprintf(stderr, "BLR annotation rate: %.1f%%\n", float64(stats.BLRAnnotated)/float64(stats.BLREdges)*100)
	}
	return nil
}

// writeCFGs writes one DOT file per method with more than one block.
func writeCFGs(ctx context.Context, f *graphFlags, funcs []callgraph.FuncInfo) (int, error) {
	n := 0
	for _, fn := range funcs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var dot string
		if f.style == "lattice" {
			lcfg, blocks := callgraph.BuildFuncCFG(fn.Name, fn.Insts, fn.CallEdges)
			if blocks < 2 {
				continue
			}
			dot = latticerender.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}, fn.Name)
		} else {
			dcfg := disasm.BuildCFG(fn.Name, fn.Insts)
			if len(dcfg.Blocks) < 2 {
				continue
			}
			dcfg.AttachCalls(fn.CallEdges)
			dot = render.CFGDOT(dcfg, render.NASA)
		}
		name := filepath.Join("cfg", render.SafeFilename(fn.Name)+".dot")
		if err := output.WriteFile(f.out, name, []byte(dot)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
