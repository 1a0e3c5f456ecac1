package disasm

// Branch detection from raw 32-bit ARM64 encodings. Used to split native
// method bodies into basic blocks.

// BranchInfo describes a decoded branch instruction.
type BranchInfo struct {
	Kind   string // "ret", "b", "b.cond", "cbz", "cbnz", "tbz", "tbnz"
	Target uint64 // absolute target address (0 if RET)
	Cond   bool   // true if conditional (has fallthrough)
	IsRet  bool   // true if RET
}

// relBranch builds a PC-relative branch from an immediate field.
func relBranch(kind string, pc uint64, imm uint32, bits int, cond bool) *BranchInfo {
	offset := int64(signExtend(imm, bits)) * 4
	return &BranchInfo{Kind: kind, Target: uint64(int64(pc) + offset), Cond: cond}
}

// DecodeBranch attempts to decode a branch instruction from raw encoding at the given PC.
// Returns nil if the instruction is not a branch/ret.
func DecodeBranch(raw uint32, pc uint64) *BranchInfo {
	switch {
	case raw&0xFFFFFC1F == 0xD65F0000: // RET {Xn}
		return &BranchInfo{Kind: "ret", IsRet: true}
	case raw&0xFC000000 == 0x14000000: // B imm26
		return relBranch("b", pc, raw&0x03FFFFFF, 26, false)
	case raw&0xFF000010 == 0x54000000: // B.cond imm19
		return relBranch("b.cond", pc, (raw>>5)&0x7FFFF, 19, true)
	case raw&0x7F000000 == 0x34000000: // CBZ
		return relBranch("cbz", pc, (raw>>5)&0x7FFFF, 19, true)
	case raw&0x7F000000 == 0x35000000: // CBNZ
		return relBranch("cbnz", pc, (raw>>5)&0x7FFFF, 19, true)
	case raw&0x7F000000 == 0x36000000: // TBZ imm14
		return relBranch("tbz", pc, (raw>>5)&0x3FFF, 14, true)
	case raw&0x7F000000 == 0x37000000: // TBNZ imm14
		return relBranch("tbnz", pc, (raw>>5)&0x3FFF, 14, true)
	}
	return nil
}

// signExtend sign-extends a value from the given bit width to int32.
func signExtend(val uint32, bits int) int32 {
	sign := uint32(1) << (bits - 1)
	mask := sign - 1
	if val&sign != 0 {
		return int32(val | ^mask) // negative
	}
	return int32(val & mask)
}

// IsBranchTerminator returns true if the instruction terminates a basic block.
// This includes all branches (B, B.cond, CBZ, CBNZ, TBZ, TBNZ, RET) but NOT BL/BLR
// (calls return to the next instruction).
func IsBranchTerminator(raw uint32) bool {
	return DecodeBranch(raw, 0) != nil
}
