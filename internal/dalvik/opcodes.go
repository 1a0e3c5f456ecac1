package dalvik

import "fmt"

// Fmt is a Dalvik instruction format id, e.g. "35c".
type Fmt string

// Ref is the constant pool an instruction index refers to.
type Ref uint8

const (
	RefNone Ref = iota
	RefString
	RefType
	RefField
	RefMethod
	RefProto
	RefCallSite
	RefMethodHandle
)

func (r Ref) String() string {
	switch r {
	case RefString:
		return "string"
	case RefType:
		return "type"
	case RefField:
		return "field"
	case RefMethod:
		return "method"
	case RefProto:
		return "proto"
	case RefCallSite:
		return "call_site"
	case RefMethodHandle:
		return "method_handle"
	}
	return ""
}

// Opcode describes one of the 256 primary opcodes.
type Opcode struct {
	Name   string
	Format Fmt
	Ref    Ref
}

// formatUnits is the size in 16-bit code units of each format.
var formatUnits = map[Fmt]int{
	"10x": 1, "12x": 1, "11n": 1, "11x": 1, "10t": 1,
	"20t": 2, "22x": 2, "21t": 2, "21s": 2, "21h": 2, "21c": 2,
	"23x": 2, "22b": 2, "22t": 2, "22s": 2, "22c": 2,
	"32x": 3, "30t": 3, "31t": 3, "31i": 3, "31c": 3, "35c": 3, "3rc": 3,
	"45cc": 4, "4rcc": 4, "51l": 5,
}

// Opcodes is indexed by the low byte of the first code unit.
var Opcodes = buildOpcodes()

func buildOpcodes() [256]Opcode {
	var t [256]Opcode
	for i := range t {
		t[i] = Opcode{Name: fmt.Sprintf("unused-%02x", i), Format: "10x"}
	}
	set := func(op int, name string, f Fmt, ref Ref) { t[op] = Opcode{name, f, ref} }
	seq := func(op int, f Fmt, ref Ref, names ...string) {
		for i, n := range names {
			set(op+i, n, f, ref)
		}
	}

	seq(0x00, "10x", RefNone, "nop")
	seq(0x01, "12x", RefNone, "move")
	seq(0x02, "22x", RefNone, "move/from16")
	seq(0x03, "32x", RefNone, "move/16")
	seq(0x04, "12x", RefNone, "move-wide")
	seq(0x05, "22x", RefNone, "move-wide/from16")
	seq(0x06, "32x", RefNone, "move-wide/16")
	seq(0x07, "12x", RefNone, "move-object")
	seq(0x08, "22x", RefNone, "move-object/from16")
	seq(0x09, "32x", RefNone, "move-object/16")
	seq(0x0a, "11x", RefNone, "move-result", "move-result-wide", "move-result-object", "move-exception")
	seq(0x0e, "10x", RefNone, "return-void")
	seq(0x0f, "11x", RefNone, "return", "return-wide", "return-object")
	seq(0x12, "11n", RefNone, "const/4")
	seq(0x13, "21s", RefNone, "const/16")
	seq(0x14, "31i", RefNone, "const")
	seq(0x15, "21h", RefNone, "const/high16")
	seq(0x16, "21s", RefNone, "const-wide/16")
	seq(0x17, "31i", RefNone, "const-wide/32")
	seq(0x18, "51l", RefNone, "const-wide")
	seq(0x19, "21h", RefNone, "const-wide/high16")
	seq(0x1a, "21c", RefString, "const-string")
	seq(0x1b, "31c", RefString, "const-string/jumbo")
	seq(0x1c, "21c", RefType, "const-class")
	seq(0x1d, "11x", RefNone, "monitor-enter", "monitor-exit")
	seq(0x1f, "21c", RefType, "check-cast")
	seq(0x20, "22c", RefType, "instance-of")
	seq(0x21, "12x", RefNone, "array-length")
	seq(0x22, "21c", RefType, "new-instance")
	seq(0x23, "22c", RefType, "new-array")
	seq(0x24, "35c", RefType, "filled-new-array")
	seq(0x25, "3rc", RefType, "filled-new-array/range")
	seq(0x26, "31t", RefNone, "fill-array-data")
	seq(0x27, "11x", RefNone, "throw")
	seq(0x28, "10t", RefNone, "goto")
	seq(0x29, "20t", RefNone, "goto/16")
	seq(0x2a, "30t", RefNone, "goto/32")
	seq(0x2b, "31t", RefNone, "packed-switch", "sparse-switch")
	seq(0x2d, "23x", RefNone, "cmpl-float", "cmpg-float", "cmpl-double", "cmpg-double", "cmp-long")
	seq(0x32, "22t", RefNone, "if-eq", "if-ne", "if-lt", "if-ge", "if-gt", "if-le")
	seq(0x38, "21t", RefNone, "if-eqz", "if-nez", "if-ltz", "if-gez", "if-gtz", "if-lez")

	kinds := []string{"", "-wide", "-object", "-boolean", "-byte", "-char", "-short"}
	for i, k := range kinds {
		set(0x44+i, "aget"+k, "23x", RefNone)
		set(0x4b+i, "aput"+k, "23x", RefNone)
		set(0x52+i, "iget"+k, "22c", RefField)
		set(0x59+i, "iput"+k, "22c", RefField)
		set(0x60+i, "sget"+k, "21c", RefField)
		set(0x67+i, "sput"+k, "21c", RefField)
	}

	invokes := []string{"invoke-virtual", "invoke-super", "invoke-direct", "invoke-static", "invoke-interface"}
	for i, n := range invokes {
		set(0x6e+i, n, "35c", RefMethod)
		set(0x74+i, n+"/range", "3rc", RefMethod)
	}

	seq(0x7b, "12x", RefNone,
		"neg-int", "not-int", "neg-long", "not-long", "neg-float", "neg-double",
		"int-to-long", "int-to-float", "int-to-double",
		"long-to-int", "long-to-float", "long-to-double",
		"float-to-int", "float-to-long", "float-to-double",
		"double-to-int", "double-to-long", "double-to-float",
		"int-to-byte", "int-to-char", "int-to-short")

	var binops []string
	for _, ty := range []string{"int", "long"} {
		for _, op := range []string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "ushr"} {
			binops = append(binops, op+"-"+ty)
		}
	}
	for _, ty := range []string{"float", "double"} {
		for _, op := range []string{"add", "sub", "mul", "div", "rem"} {
			binops = append(binops, op+"-"+ty)
		}
	}
	for i, n := range binops {
		set(0x90+i, n, "23x", RefNone)
		set(0xb0+i, n+"/2addr", "12x", RefNone)
	}

	seq(0xd0, "22s", RefNone,
		"add-int/lit16", "rsub-int", "mul-int/lit16", "div-int/lit16",
		"rem-int/lit16", "and-int/lit16", "or-int/lit16", "xor-int/lit16")
	seq(0xd8, "22b", RefNone,
		"add-int/lit8", "rsub-int/lit8", "mul-int/lit8", "div-int/lit8",
		"rem-int/lit8", "and-int/lit8", "or-int/lit8", "xor-int/lit8",
		"shl-int/lit8", "shr-int/lit8", "ushr-int/lit8")

	set(0xfa, "invoke-polymorphic", "45cc", RefMethod)
	set(0xfb, "invoke-polymorphic/range", "4rcc", RefMethod)
	set(0xfc, "invoke-custom", "35c", RefCallSite)
	set(0xfd, "invoke-custom/range", "3rc", RefCallSite)
	set(0xfe, "const-method-handle", "21c", RefMethodHandle)
	set(0xff, "const-method-type", "21c", RefProto)
	return t
}
