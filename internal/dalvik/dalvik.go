// Package dalvik decodes Dalvik bytecode into smali-style instruction text.
package dalvik

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"dexview/internal/container"
)

// ErrTruncated is returned when an instruction runs past the code array.
var ErrTruncated = errors.New("dalvik: truncated instruction")

// Payload identifiers carried in the high byte of a nop.
const (
	packedSwitchPayload = 0x0100
	sparseSwitchPayload = 0x0200
	fillArrayPayload    = 0x0300
)

// Inst is one decoded instruction. Offsets and targets are in code units
// from the start of the method.
type Inst struct {
	Offset  int
	Size    int
	Op      *Opcode
	Regs    []int  // register operands in syntax order
	Range   bool   // Regs is a contiguous {vA .. vN} range
	Literal int64  // immediate operand
	HasLit  bool   // Literal is meaningful
	Index   uint32 // pool index
	Proto   uint32 // second pool index of 45cc/4rcc
	Target  int    // branch or payload target, -1 if none
	Payload string // pseudo-instruction name for payload tables
}

// IsBranch reports whether Target is a code label.
func (i *Inst) IsBranch() bool { return i.Target >= 0 }

// Decode decodes a code array. On a truncated final instruction it returns
// the instructions decoded so far and ErrTruncated.
func Decode(insns []uint16) ([]Inst, error) {
	var out []Inst
	for pc := 0; pc < len(insns); {
		in, err := decodeAt(insns, pc)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		pc += in.Size
	}
	return out, nil
}

func decodeAt(code []uint16, pc int) (Inst, error) {
	u0 := code[pc]
	op := &Opcodes[u0&0xff]
	in := Inst{Offset: pc, Op: op, Target: -1}

	if op.Name == "nop" && u0 != 0 {
		return payload(code, pc)
	}
	in.Size = formatUnits[op.Format]
	if pc+in.Size > len(code) {
		return in, fmt.Errorf("%w: %s at %04x", ErrTruncated, op.Name, pc)
	}
	u := code[pc : pc+in.Size]
	aa := int(u0 >> 8)
	a, b := int(u0>>8)&0xf, int(u0>>12)
	u32 := func(i int) uint32 { return uint32(u[i]) | uint32(u[i+1])<<16 }
	lit := func(v int64) { in.Literal, in.HasLit = v, true }

	switch op.Format {
	case "10x":
	case "12x":
		in.Regs = []int{a, b}
	case "11n":
		in.Regs = []int{a}
		lit(int64(int8(u0>>8) >> 4))
	case "11x":
		in.Regs = []int{aa}
	case "10t":
		in.Target = pc + int(int8(aa))
	case "20t":
		in.Target = pc + int(int16(u[1]))
	case "22x":
		in.Regs = []int{aa, int(u[1])}
	case "21t":
		in.Regs = []int{aa}
		in.Target = pc + int(int16(u[1]))
	case "21s":
		in.Regs = []int{aa}
		lit(int64(int16(u[1])))
	case "21h":
		in.Regs = []int{aa}
		if op.Name == "const-wide/high16" {
			lit(int64(int16(u[1])) << 48)
		} else {
			lit(int64(int32(uint32(u[1]) << 16)))
		}
	case "21c":
		in.Regs = []int{aa}
		in.Index = uint32(u[1])
	case "23x":
		in.Regs = []int{aa, int(u[1] & 0xff), int(u[1] >> 8)}
	case "22b":
		in.Regs = []int{aa, int(u[1] & 0xff)}
		lit(int64(int8(u[1] >> 8)))
	case "22t":
		in.Regs = []int{a, b}
		in.Target = pc + int(int16(u[1]))
	case "22s":
		in.Regs = []int{a, b}
		lit(int64(int16(u[1])))
	case "22c":
		in.Regs = []int{a, b}
		in.Index = uint32(u[1])
	case "32x":
		in.Regs = []int{int(u[1]), int(u[2])}
	case "30t":
		in.Target = pc + int(int32(u32(1)))
	case "31t":
		in.Regs = []int{aa}
		in.Target = pc + int(int32(u32(1)))
	case "31i":
		in.Regs = []int{aa}
		lit(int64(int32(u32(1))))
	case "31c":
		in.Regs = []int{aa}
		in.Index = u32(1)
	case "35c", "45cc":
		count := int(u0 >> 12)
		all := []int{int(u[2] & 0xf), int(u[2]>>4) & 0xf, int(u[2]>>8) & 0xf, int(u[2] >> 12), a}
		in.Regs = all[:min(count, 5)]
		in.Index = uint32(u[1])
		if op.Format == "45cc" {
			in.Proto = uint32(u[3])
		}
	case "3rc", "4rcc":
		in.Range = true
		for r := range aa {
			in.Regs = append(in.Regs, int(u[2])+r)
		}
		in.Index = uint32(u[1])
		if op.Format == "4rcc" {
			in.Proto = uint32(u[3])
		}
	case "51l":
		in.Regs = []int{aa}
		lit(int64(uint64(u32(1)) | uint64(u32(3))<<32))
	}
	return in, nil
}

// payload sizes a switch or array-data table so decoding can skip it.
func payload(code []uint16, pc int) (Inst, error) {
	in := Inst{Offset: pc, Op: &Opcodes[0], Target: -1}
	rest := len(code) - pc
	if rest < 2 {
		return in, fmt.Errorf("%w: payload at %04x", ErrTruncated, pc)
	}
	n := int(code[pc+1])
	switch code[pc] {
	case packedSwitchPayload:
		in.Payload, in.Size = ".packed-switch-payload", 4+n*2
	case sparseSwitchPayload:
		in.Payload, in.Size = ".sparse-switch-payload", 2+n*4
	case fillArrayPayload:
		if rest < 4 {
			return in, fmt.Errorf("%w: payload at %04x", ErrTruncated, pc)
		}
		width := int(code[pc+1])
		count := int(uint32(code[pc+2]) | uint32(code[pc+3])<<16)
		in.Payload, in.Size = ".array-data-payload", 4+(count*width+1)/2
	default:
		in.Size = 1
		return in, nil
	}
	if in.Size > rest {
		return in, fmt.Errorf("%w: %s at %04x", ErrTruncated, in.Payload, pc)
	}
	return in, nil
}

// Label returns the smali label for a code offset.
func Label(offset int) string { return fmt.Sprintf(":addr_%x", offset) }

// Text renders the instruction as smali. pool may be nil, in which case
// indices print as kind@index.
func (i *Inst) Text(pool container.PoolResolver) string {
	if i.Payload != "" {
		return i.Payload
	}
	var ops []string
	switch {
	case i.Op.Format == "35c" || i.Op.Format == "45cc":
		ops = append(ops, "{"+regList(i.Regs)+"}")
	case i.Range:
		if len(i.Regs) == 0 {
			ops = append(ops, "{}")
		} else {
			ops = append(ops, fmt.Sprintf("{v%d .. v%d}", i.Regs[0], i.Regs[len(i.Regs)-1]))
		}
	default:
		for _, r := range i.Regs {
			ops = append(ops, "v"+strconv.Itoa(r))
		}
	}
	if i.HasLit {
		ops = append(ops, "0x"+strconv.FormatInt(i.Literal, 16))
		if i.Literal < 0 {
			ops[len(ops)-1] = "-0x" + strconv.FormatInt(-i.Literal, 16)
		}
	}
	if i.Op.Ref != RefNone {
		ops = append(ops, reference(pool, i.Op.Ref, i.Index))
	}
	if i.Op.Format == "45cc" || i.Op.Format == "4rcc" {
		ops = append(ops, reference(pool, RefProto, i.Proto))
	}
	if i.IsBranch() {
		ops = append(ops, Label(i.Target))
	}
	if len(ops) == 0 {
		return i.Op.Name
	}
	return i.Op.Name + " " + strings.Join(ops, ", ")
}

func regList(regs []int) string {
	parts := make([]string, len(regs))
	for k, r := range regs {
		parts[k] = "v" + strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}

func reference(pool container.PoolResolver, kind Ref, idx uint32) string {
	fallback := fmt.Sprintf("%s@%d", kind, idx)
	if pool == nil {
		return fallback
	}
	switch kind {
	case RefString:
		if s, ok := pool.StringAt(idx); ok {
			return strconv.Quote(s)
		}
	case RefType:
		if t, ok := pool.TypeAt(idx); ok {
			return container.Descriptor(t)
		}
	case RefField:
		if f, ok := pool.FieldAt(idx); ok {
			return container.Descriptor(f.Class) + "->" + f.Name + ":" + container.Descriptor(f.Type)
		}
	case RefMethod:
		if m, ok := pool.MethodAt(idx); ok {
			return container.Descriptor(m.Class) + "->" + m.Name + ProtoDescriptor(m.Proto)
		}
	case RefProto:
		if p, ok := pool.ProtoAt(idx); ok {
			return ProtoDescriptor(p)
		}
	}
	return fallback
}

// ProtoDescriptor renders a prototype as "(params)ret" descriptors.
func ProtoDescriptor(p container.Prototype) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, t := range p.Params {
		b.WriteString(container.Descriptor(t))
	}
	b.WriteByte(')')
	b.WriteString(container.Descriptor(p.Return))
	return b.String()
}

// Listing renders a code array as smali lines with labels, each prefixed by
// indent. Branch targets and any extra label offsets get a label line. A
// truncated tail is reported as a comment.
func Listing(insns []uint16, pool container.PoolResolver, indent string, labels ...int) string {
	insts, err := Decode(insns)
	targets := slices.Clone(labels)
	for _, in := range insts {
		if in.IsBranch() {
			targets = append(targets, in.Target)
		}
	}
	slices.Sort(targets)
	targets = slices.Compact(targets)

	var b strings.Builder
	for _, in := range insts {
		if _, ok := slices.BinarySearch(targets, in.Offset); ok {
			b.WriteString(indent + Label(in.Offset) + "\n")
		}
		b.WriteString(indent + in.Text(pool) + "\n")
	}
	if err != nil {
		fmt.Fprintf(&b, "%s# %v\n", indent, err)
	}
	return b.String()
}
