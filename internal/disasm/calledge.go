package disasm

import "fmt"

// CallEdge represents a call site extracted from disassembly.
type CallEdge struct {
	FromPC     uint64 `json:"from_pc"`
	Kind       string `json:"kind"`                // "bl" or "blr"
	TargetPC   uint64 `json:"target_pc,omitempty"` // resolved VA for bl
	TargetName string `json:"target_name,omitempty"`
	Reg        string `json:"reg,omitempty"` // register for blr (e.g. "X8")
	Via        string `json:"via,omitempty"` // provenance: "JNIEnv->FindClass", ""
}

// Callee returns the best available name for the call target.
func (e CallEdge) Callee() string {
	switch {
	case e.TargetName != "":
		return e.TargetName
	case e.Via != "":
		return e.Via
	case e.Kind == "bl":
		return fmt.Sprintf("sub_%x", e.TargetPC)
	}
	return ""
}

// RegDef records the last definition of a register within the window.
type RegDef struct {
	Annotation string
	Age        int // instructions since definition
}

// RegTracker tracks last-def provenance for GP registers X0-X30.
// Definitions older than the window are expired.
type RegTracker struct {
	defs [31]RegDef // X0..X30
	w    int
}

// NewRegTracker creates a tracker with the given window size.
func NewRegTracker(w int) *RegTracker {
	return &RegTracker{w: w}
}

// Reset clears all tracked definitions. Call between functions.
func (rt *RegTracker) Reset() {
	for i := range rt.defs {
		rt.defs[i] = RegDef{}
	}
}

// Tick ages all definitions by 1 and expires those beyond the window.
func (rt *RegTracker) Tick() {
	for i := range rt.defs {
		if rt.defs[i].Annotation != "" {
			rt.defs[i].Age++
			if rt.defs[i].Age > rt.w {
				rt.defs[i] = RegDef{}
			}
		}
	}
}

// Define records that register rd was defined with the given annotation.
func (rt *RegTracker) Define(rd int, annotation string) {
	if rd < 0 || rd > 30 {
		return
	}
	rt.defs[rd] = RegDef{Annotation: annotation}
}

// Lookup returns the annotation for register rd, or "" if expired/unknown.
func (rt *RegTracker) Lookup(rd int) string {
	if rd < 0 || rd > 30 {
		return ""
	}
	return rt.defs[rd].Annotation
}

// Kill clears the definition for a register.
func (rt *RegTracker) Kill(rd int) {
	if rd < 0 || rd > 30 {
		return
	}
	rt.defs[rd] = RegDef{}
}

// isBL detects ARM64 BL (branch with link) instructions.
// Encoding: 1 | 00101 | imm26
// Returns the target address (sign-extended imm26 * 4 + PC).
func isBL(raw uint32, pc uint64) (target uint64, ok bool) {
	if raw&0xFC000000 != 0x94000000 {
		return 0, false
	}
	return uint64(int64(pc) + int64(signExtend(raw&0x03FFFFFF, 26))*4), true
}

// isBLR detects ARM64 BLR (branch with link to register) instructions.
// Mask: 0xFFFFFC1F, Value: 0xD63F0000
func isBLR(raw uint32) (rn int, ok bool) {
	if raw&0xFFFFFC1F != 0xD63F0000 {
		return 0, false
	}
	return int((raw >> 5) & 0x1F), true
}

// dstRegOfInst returns the destination register of a common load or
// data-processing instruction, or -1 if not detected.
func dstRegOfInst(raw uint32) int {
	switch {
	case raw&0xFFC00000 == 0xF9400000, // LDR X, unsigned offset
		raw&0xFFC00000 == 0xB9400000, // LDR W, unsigned offset
		raw&0xFFE00C00 == 0xF8400000, // LDUR X
		raw&0xFFE00C00 == 0xB8400000, // LDUR W
		raw&0xFFE00C00 == 0xF8600800, // LDR X, register offset
		raw&0xFF000000 == 0x91000000, // ADD X, immediate
		raw&0xFF000000 == 0xD1000000, // SUB X, immediate
		raw&0x9F000000 == 0x90000000, // ADRP
		raw&0x9F000000 == 0x10000000, // ADR
		raw&0xFF800000 == 0xD2800000, // MOVZ X
		raw&0xFF800000 == 0xF2800000, // MOVK X
		raw&0xFF800000 == 0x92800000, // MOVN X
		raw&0xFFE0FFE0 == 0xAA0003E0: // MOV X (ORR alias)
		return int(raw & 0x1F)
	}
	return -1
}

// ExtractCallEdges scans instructions for BL and BLR call sites.
// annotators run per instruction; an annotated register definition becomes
// the provenance of a later BLR through that register within window w.
// symbols resolves BL target addresses to names.
func ExtractCallEdges(insts []Inst, symbols SymbolLookup, annotators []Annotator, w int) []CallEdge {
	rt := NewRegTracker(w)
	var edges []CallEdge

	for _, inst := range insts {
		var annotation string
		for _, ann := range annotators {
			if s := ann(inst); s != "" && annotation == "" {
				annotation = s
			}
		}

		if target, ok := isBL(inst.Raw, inst.Addr); ok {
			e := CallEdge{FromPC: inst.Addr, Kind: "bl", TargetPC: target}
			if symbols != nil {
				if name, found := symbols(target); found {
					e.TargetName = name
				}
			}
			edges = append(edges, e)
			rt.Tick()
			continue
		}

		if rn, ok := isBLR(inst.Raw); ok {
			edges = append(edges, CallEdge{
				FromPC: inst.Addr,
				Kind:   "blr",
				Reg:    fmt.Sprintf("X%d", rn),
				Via:    rt.Lookup(rn),
			})
			rt.Tick()
			continue
		}

		rd := dstRegOfInst(inst.Raw)
		rt.Tick()
		if rd >= 0 {
			if annotation != "" {
				rt.Define(rd, annotation)
			} else {
				rt.Kill(rd)
			}
		}
	}
	return edges
}
