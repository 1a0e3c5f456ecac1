package disasm

import "slices"

// BasicBlock is a run of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	Term    string // branch kind ending the block, "" for fallthrough
	Calls   []CallEdge
	IsEntry bool
	IsTerm  bool // ends with RET or a branch out of the method
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken, "F" = fallthrough
}

// FuncCFG is the control flow graph of one native method body.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// Addr returns the address of the block's first instruction.
func (c *FuncCFG) Addr(b BasicBlock) uint64 {
	if b.Start >= len(c.Insts) {
		return 0
	}
	return c.Insts[b.Start].Addr
}

// BuildCFG splits insts into basic blocks. Leaders are the first
// instruction, in-range branch targets and every instruction that follows a
// branch; successors come from the last instruction of each block.
func BuildCFG(name string, insts []Inst) FuncCFG {
	cfg := FuncCFG{Name: name, Insts: insts}
	if len(insts) == 0 {
		return cfg
	}

	lo, hi := insts[0].Addr, insts[len(insts)-1].Addr+4
	index := make(map[uint64]int, len(insts))
	for i, inst := range insts {
		index[inst.Addr] = i
	}
	target := func(bi *BranchInfo) (int, bool) {
		if bi.IsRet || bi.Target < lo || bi.Target >= hi {
			return 0, false
		}
		idx, ok := index[bi.Target]
		return idx, ok
	}

	isLeader := map[int]bool{0: true}
	for i, inst := range insts {
		bi := DecodeBranch(inst.Raw, inst.Addr)
		if bi == nil {
			continue
		}
		if i+1 < len(insts) {
			isLeader[i+1] = true
		}
		if idx, ok := target(bi); ok {
			isLeader[idx] = true
		}
	}
	leaders := make([]int, 0, len(isLeader))
	for idx := range isLeader {
		leaders = append(leaders, idx)
	}
	slices.Sort(leaders)

	blockAt := make(map[int]int, len(leaders))
	cfg.Blocks = make([]BasicBlock, len(leaders))
	for i, start := range leaders {
		end := len(insts)
		if i+1 < len(leaders) {
			end = leaders[i+1]
		}
		cfg.Blocks[i] = BasicBlock{ID: i, Start: start, End: end, IsEntry: start == 0}
		blockAt[start] = i
	}

	for i := range cfg.Blocks {
		blk := &cfg.Blocks[i]
		last := insts[blk.End-1]
		next, hasNext := blockAt[blk.End]

		if !IsBranchTerminator(last.Raw) {
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
			continue
		}
		bi := DecodeBranch(last.Raw, last.Addr)
		blk.Term = bi.Kind
		if bi.IsRet {
			blk.IsTerm = true
			continue
		}

		taken := -1
		if idx, ok := target(bi); ok {
			taken = blockAt[idx]
		}
		switch {
		case bi.Cond:
			if taken >= 0 {
				blk.Succs = append(blk.Succs, Succ{BlockID: taken, Cond: "T"})
			}
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		case taken >= 0:
			blk.Succs = append(blk.Succs, Succ{BlockID: taken})
		default:
			// tail call out of the method
			blk.IsTerm = true
		}
	}
	return cfg
}

// AttachCalls assigns call edges to the blocks containing their call sites.
// Edges outside the method are ignored.
func (c *FuncCFG) AttachCalls(edges []CallEdge) {
	for _, e := range edges {
		for i := range c.Blocks {
			b := &c.Blocks[i]
			if e.FromPC >= c.Addr(*b) && e.FromPC < c.Insts[b.End-1].Addr+4 {
				b.Calls = append(b.Calls, e)
				break
			}
		}
	}
}
