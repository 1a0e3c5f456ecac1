// Package callgraph builds call graphs and control flow graphs of native
// (JNI) methods for DOT rendering.
package callgraph

import (
	"dexview/internal/container"
	"dexview/internal/disasm"

	"github.com/zboralski/lattice"
)

// provenanceWindow is how many instructions a register definition stays
// attributable to a later BLR.
const provenanceWindow = 8

// FuncInfo holds the data needed to build call graph and CFG for one method.
type FuncInfo struct {
	Name      string
	Insts     []disasm.Inst
	CallEdges []disasm.CallEdge
}

// Lookup returns a symbol lookup for c, or nil if c cannot name addresses.
func Lookup(c container.Container) disasm.SymbolLookup {
	if r, ok := container.Symbols(c); ok {
		return r.SymbolAt
	}
	return nil
}

// Analyze disassembles one native method. ok is false for methods without
// ARM64 machine code.
func Analyze(m *container.Method, lookup disasm.SymbolLookup) (FuncInfo, bool) {
	if m.Machine == nil || m.Machine.Arch != "arm64" {
		return FuncInfo{}, false
	}
	insts := disasm.Disassemble(m.Machine.Bytes, disasm.Options{BaseAddr: m.Machine.Addr})
	edges := disasm.ExtractCallEdges(insts, lookup, []disasm.Annotator{disasm.JNIEnvAnnotator()}, provenanceWindow)
	return FuncInfo{
		Name:      m.Class.Name + "." + m.Name,
		Insts:     insts,
		CallEdges: edges,
	}, true
}

// Collect analyzes every native method of c in container order.
func Collect(c container.Container) []FuncInfo {
	lookup := Lookup(c)
	var funcs []FuncInfo
	for _, class := range c.Classes() {
		for _, m := range class.Methods {
			if f, ok := Analyze(m, lookup); ok {
				funcs = append(funcs, f)
			}
		}
	}
	return funcs
}

// BuildCallGraph constructs a lattice.Graph from analyzed methods.
// Each method becomes a node and each named call edge an edge.
// Unresolved BLR targets are skipped.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, e := range f.CallEdges {
			callee := e.Callee()
			if callee == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}
