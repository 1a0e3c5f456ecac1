package callgraph

import (
	"fmt"

	"dexview/internal/disasm"

	"github.com/zboralski/lattice"
)

// BuildCFG constructs a lattice.CFGGraph from analyzed methods.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f.Name, f.Insts, f.CallEdges)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-method lattice.FuncCFG from instructions and
// call edges. Returns the FuncCFG and the number of basic blocks.
func BuildFuncCFG(name string, insts []disasm.Inst, edges []disasm.CallEdge) (*lattice.FuncCFG, int) {
	dcfg := disasm.BuildCFG(name, insts)
	dcfg.AttachCalls(edges)
	return convertFuncCFG(&dcfg), len(dcfg.Blocks)
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG.
func convertFuncCFG(dcfg *disasm.FuncCFG) *lattice.FuncCFG {
	index := make(map[uint64]int, len(dcfg.Insts))
	for i, inst := range dcfg.Insts {
		index[inst.Addr] = i
	}

	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}
		for _, e := range db.Calls {
			callee := e.Callee()
			if callee == "" {
				callee = fmt.Sprintf("blr %s", e.Reg)
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: index[e.FromPC],
				Callee: callee,
			})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
