// Package container defines the decoded, read-only view of one binary input:
// its classes, their methods and the metadata writers need to render them.
//
// Decoders (internal/dex, internal/elfx) produce these values; everything
// downstream references them and never mutates them.
package container

import "strings"

// Container is the decoded in-memory representation of one binary input file.
type Container interface {
	// Format names the decoded format, e.g. "dex 035".
	Format() string
	// Classes returns the classes in decoder order.
	Classes() []*Class
	// Close releases decoded resources.
	Close() error
}

// SymbolResolver is implemented by containers that can name code addresses.
type SymbolResolver interface {
	SymbolAt(addr uint64) (name string, ok bool)
}

// PoolResolver is implemented by containers whose bytecode refers to
// constant pools by index. Type names are Java names.
type PoolResolver interface {
	StringAt(idx uint32) (string, bool)
	TypeAt(idx uint32) (string, bool)
	FieldAt(idx uint32) (FieldRef, bool)
	MethodAt(idx uint32) (MethodRef, bool)
	ProtoAt(idx uint32) (Prototype, bool)
}

// FieldRef is a field_id entry.
type FieldRef struct {
	Class string
	Name  string
	Type  string
}

// MethodRef is a method_id entry.
type MethodRef struct {
	Class string
	Name  string
	Proto Prototype
}

// Unwrapper is implemented by containers that wrap a decoded one, such as
// an extracted archive entry.
type Unwrapper interface {
	Unwrap() Container
}

// Symbols returns the SymbolResolver of c or of a container it wraps.
func Symbols(c Container) (SymbolResolver, bool) { return capability[SymbolResolver](c) }

// Pool returns the PoolResolver of c or of a container it wraps.
func Pool(c Container) (PoolResolver, bool) { return capability[PoolResolver](c) }

func capability[T any](c Container) (T, bool) {
	for c != nil {
		if t, ok := c.(T); ok {
			return t, true
		}
		u, ok := c.(Unwrapper)
		if !ok {
			break
		}
		c = u.Unwrap()
	}
	var zero T
	return zero, false
}

// Class is one decoded class.
type Class struct {
	Name        string // fully-qualified dotted name
	Flags       AccessFlags
	Super       string // dotted name; "" when absent
	Interfaces  []string
	SourceFile  string
	Annotations []Annotation
	Fields      []Field
	Methods     []*Method
}

// SimpleName returns the class name without its package prefix.
func (c *Class) SimpleName() string {
	return c.Name[strings.LastIndexByte(c.Name, '.')+1:]
}

// Annotation is a class-level annotation reference.
type Annotation struct {
	Type       string // dotted type name
	Visibility Visibility
}

// Visibility is the retention of an annotation.
type Visibility uint8

const (
	VisibilityBuild Visibility = iota
	VisibilityRuntime
	VisibilitySystem
)

func (v Visibility) String() string {
	switch v {
	case VisibilityBuild:
		return "build"
	case VisibilityRuntime:
		return "runtime"
	case VisibilitySystem:
		return "system"
	}
	return "unknown"
}

// Field is a static or instance field declaration.
type Field struct {
	Name  string
	Type  string // Java type name, e.g. "int[]"
	Flags AccessFlags
}

// Prototype is a method signature in Java type names.
type Prototype struct {
	Return string
	Params []string
}

// Method is one method; it belongs to exactly one Class.
type Method struct {
	Name  string
	Class *Class
	Flags AccessFlags
	Proto Prototype

	// At most one of Bytecode and Machine is set.
	Bytecode *Bytecode
	Machine  *MachineCode
}

// Bytecode is a Dalvik code item.
type Bytecode struct {
	Registers uint16
	Ins       uint16
	Outs      uint16
	Insns     []uint16 // 16-bit code units
	Tries     []Try
}

// Try is a try_item: a range of code units and the handlers guarding it.
type Try struct {
	Start    uint32 // first covered code unit
	Count    uint16 // number of covered code units
	Handlers []Handler
}

// Handler is one catch clause. An empty Type catches everything.
type Handler struct {
	Type string // dotted exception type
	Addr uint32 // handler code unit
}

// MachineCode is native code backing a method.
type MachineCode struct {
	Arch  string // "arm64"
	Addr  uint64 // virtual address of the first byte
	Bytes []byte
}
