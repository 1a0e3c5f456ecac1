// Package dextest assembles small, valid DEX images for tests.
//
// Ids are interned in first-use order rather than the sorted order dx/d8
// emit; the decoder does not depend on table ordering.
package dextest

import (
	"encoding/binary"
	"hash/adler32"
	"strings"
	"unicode/utf16"

	"dexview/internal/container"
	"dexview/internal/dexfmt"
)

// Class describes one class_def. Names are dotted Java names.
type Class struct {
	Name        string
	Super       string
	Interfaces  []string
	Flags       uint32
	SourceFile  string
	Annotations []string // runtime-visible annotation types
	Fields      []Field
	Methods     []Method
}

// Field describes an encoded_field. Type is a Java type name.
type Field struct {
	Name  string
	Type  string
	Flags uint32
}

// Method describes an encoded_method. Static, private and constructor
// methods land in the direct list, all others in the virtual list.
type Method struct {
	Name      string
	Return    string
	Params    []string
	Flags     uint32
	Registers uint16
	Insns     []uint16 // nil: no code item
	Tries     []container.Try
}

func (m Method) direct() bool {
	return m.Flags&uint32(container.AccStatic|container.AccPrivate|container.AccConstructor) != 0 ||
		m.Name == "<init>" || m.Name == "<clinit>"
}

// Ordered returns methods in the order the decoder yields them: the direct
// list followed by the virtual list.
func Ordered(methods []Method) []Method {
	var direct, virtual []Method
	for _, m := range methods {
		if m.direct() {
			direct = append(direct, m)
		} else {
			virtual = append(virtual, m)
		}
	}
	return append(direct, virtual...)
}

type proto struct {
	shorty uint32
	ret    uint32
	params []uint32
}

type member struct {
	class uint32
	ref   uint32 // type idx for fields, proto idx for methods
	name  uint32
}

type pool struct {
	strs     []string
	strIdx   map[string]uint32
	types    []uint32
	typeIdx  map[string]uint32
	protos   []proto
	protoIdx map[string]uint32
	fields   []member
	methods  []member
}

func newPool() *pool {
	return &pool{
		strIdx:   make(map[string]uint32),
		typeIdx:  make(map[string]uint32),
		protoIdx: make(map[string]uint32),
	}
}

func (p *pool) str(s string) uint32 {
	if i, ok := p.strIdx[s]; ok {
		return i
	}
	i := uint32(len(p.strs))
	p.strs = append(p.strs, s)
	p.strIdx[s] = i
	return i
}

// typ interns a Java type name.
func (p *pool) typ(name string) uint32 {
	desc := container.Descriptor(name)
	if i, ok := p.typeIdx[desc]; ok {
		return i
	}
	i := uint32(len(p.types))
	p.types = append(p.types, p.str(desc))
	p.typeIdx[desc] = i
	return i
}

func shortyChar(name string) byte {
	d := container.Descriptor(name)
	if d[0] == 'L' || d[0] == '[' {
		return 'L'
	}
	return d[0]
}

func (p *pool) proto(ret string, params []string) uint32 {
	key := ret + "(" + strings.Join(params, ",") + ")"
	if i, ok := p.protoIdx[key]; ok {
		return i
	}
	shorty := []byte{shortyChar(ret)}
	pr := proto{ret: p.typ(ret)}
	for _, param := range params {
		shorty = append(shorty, shortyChar(param))
		pr.params = append(pr.params, p.typ(param))
	}
	pr.shorty = p.str(string(shorty))
	i := uint32(len(p.protos))
	p.protos = append(p.protos, pr)
	p.protoIdx[key] = i
	return i
}

type plannedMethod struct {
	idx   uint32
	flags uint32
	regs  uint16
	insns []uint16
	tries []plannedTry
}

type plannedTry struct {
	start    uint32
	count    uint16
	types    []uint32
	addrs    []uint32
	catchAll int64 // -1: none
}

type plannedClass struct {
	c          Class
	class      uint32
	super      uint32
	ifaces     []uint32
	src        uint32
	anns       []uint32
	static     []uint32
	instance   []uint32
	fieldFlags map[uint32]uint32
	direct     []plannedMethod
	virtual    []plannedMethod
}

const noIndex = 0xffffffff

// Build assembles a DEX image containing classes in the given order.
func Build(classes ...Class) []byte {
	p := newPool()
	plans := make([]*plannedClass, 0, len(classes))
	for _, c := range classes {
		pc := &plannedClass{c: c, class: p.typ(c.Name), super: noIndex, src: noIndex, fieldFlags: map[uint32]uint32{}}
		if c.Super != "" {
			pc.super = p.typ(c.Super)
		}
		for _, iface := range c.Interfaces {
			pc.ifaces = append(pc.ifaces, p.typ(iface))
		}
		if c.SourceFile != "" {
			pc.src = p.str(c.SourceFile)
		}
		for _, a := range c.Annotations {
			pc.anns = append(pc.anns, p.typ(a))
		}
		for _, static := range []bool{true, false} {
			for _, f := range c.Fields {
				if (f.Flags&uint32(container.AccStatic) != 0) != static {
					continue
				}
				idx := uint32(len(p.fields))
				p.fields = append(p.fields, member{class: pc.class, ref: p.typ(f.Type), name: p.str(f.Name)})
				pc.fieldFlags[idx] = f.Flags
				if static {
					pc.static = append(pc.static, idx)
				} else {
					pc.instance = append(pc.instance, idx)
				}
			}
		}
		for _, m := range Ordered(c.Methods) {
			idx := uint32(len(p.methods))
			p.methods = append(p.methods, member{class: pc.class, ref: p.proto(m.Return, m.Params), name: p.str(m.Name)})
			pm := plannedMethod{idx: idx, flags: m.Flags, regs: m.Registers, insns: m.Insns}
			for _, t := range m.Tries {
				pt := plannedTry{start: t.Start, count: t.Count, catchAll: -1}
				for _, h := range t.Handlers {
					if h.Type == "" {
						pt.catchAll = int64(h.Addr)
						continue
					}
					pt.types = append(pt.types, p.typ(h.Type))
					pt.addrs = append(pt.addrs, h.Addr)
				}
				pm.tries = append(pm.tries, pt)
			}
			if m.direct() {
				pc.direct = append(pc.direct, pm)
			} else {
				pc.virtual = append(pc.virtual, pm)
			}
		}
		plans = append(plans, pc)
	}
	return layout(p, plans)
}

func layout(p *pool, plans []*plannedClass) []byte {
	le := binary.LittleEndian
	stringOff := uint32(0x70)
	typeOff := stringOff + 4*uint32(len(p.strs))
	protoOff := typeOff + 4*uint32(len(p.types))
	fieldOff := protoOff + 12*uint32(len(p.protos))
	methodOff := fieldOff + 8*uint32(len(p.fields))
	classOff := methodOff + 8*uint32(len(p.methods))
	dataOff := classOff + 32*uint32(len(plans))

	var data []byte
	at := func() uint32 { return dataOff + uint32(len(data)) }
	align := func() {
		for len(data)%4 != 0 {
			data = append(data, 0)
		}
	}
	typeList := func(idxs []uint32) uint32 {
		if len(idxs) == 0 {
			return 0
		}
		align()
		off := at()
		data = le.AppendUint32(data, uint32(len(idxs)))
		for _, i := range idxs {
			data = le.AppendUint16(data, uint16(i))
		}
		return off
	}

	strOffs := make([]uint32, len(p.strs))
	for i, s := range p.strs {
		strOffs[i] = at()
		data = dexfmt.AppendULEB128(data, uint32(len(utf16.Encode([]rune(s)))))
		data = dexfmt.AppendMUTF8(data, s)
	}
	paramOffs := make([]uint32, len(p.protos))
	for i, pr := range p.protos {
		paramOffs[i] = typeList(pr.params)
	}

	type classOffs struct{ ifaces, anns, data uint32 }
	offs := make([]classOffs, len(plans))
	for i, pc := range plans {
		offs[i].ifaces = typeList(pc.ifaces)
		if len(pc.anns) > 0 {
			var items []uint32
			for _, t := range pc.anns {
				items = append(items, at())
				data = append(data, byte(container.VisibilityRuntime))
				data = dexfmt.AppendULEB128(data, t)
				data = dexfmt.AppendULEB128(data, 0)
			}
			align()
			setOff := at()
			data = le.AppendUint32(data, uint32(len(items)))
			for _, it := range items {
				data = le.AppendUint32(data, it)
			}
			offs[i].anns = at()
			data = le.AppendUint32(data, setOff)
			data = le.AppendUint32(data, 0)
			data = le.AppendUint32(data, 0)
			data = le.AppendUint32(data, 0)
		}

		codeOffs := map[uint32]uint32{}
		for _, pm := range append(append([]plannedMethod{}, pc.direct...), pc.virtual...) {
			if pm.insns == nil {
				continue
			}
			align()
			codeOffs[pm.idx] = at()
			data = le.AppendUint16(data, pm.regs)
			data = le.AppendUint16(data, 0)
			data = le.AppendUint16(data, 0)
			data = le.AppendUint16(data, uint16(len(pm.tries)))
			data = le.AppendUint32(data, 0)
			data = le.AppendUint32(data, uint32(len(pm.insns)))
			for _, u := range pm.insns {
				data = le.AppendUint16(data, u)
			}
			if len(pm.tries) > 0 {
				data = appendTries(data, pm)
			}
		}

		if len(pc.static)+len(pc.instance)+len(pc.direct)+len(pc.virtual) == 0 {
			continue
		}
		offs[i].data = at()
		for _, n := range []int{len(pc.static), len(pc.instance), len(pc.direct), len(pc.virtual)} {
			data = dexfmt.AppendULEB128(data, uint32(n))
		}
		for _, list := range [][]uint32{pc.static, pc.instance} {
			prev := uint32(0)
			for _, idx := range list {
				data = dexfmt.AppendULEB128(data, idx-prev)
				data = dexfmt.AppendULEB128(data, pc.fieldFlags[idx])
				prev = idx
			}
		}
		for _, list := range [][]plannedMethod{pc.direct, pc.virtual} {
			prev := uint32(0)
			for _, pm := range list {
				data = dexfmt.AppendULEB128(data, pm.idx-prev)
				data = dexfmt.AppendULEB128(data, pm.flags)
				data = dexfmt.AppendULEB128(data, codeOffs[pm.idx])
				prev = pm.idx
			}
		}
	}
	align()

	sec := func(out []byte, n int, off uint32) []byte {
		if n == 0 {
			off = 0
		}
		out = le.AppendUint32(out, uint32(n))
		return le.AppendUint32(out, off)
	}

	total := dataOff + uint32(len(data))
	out := make([]byte, 0, total)
	out = append(out, "dex\n035\x00"...)
	out = le.AppendUint32(out, 0) // checksum, patched below
	out = append(out, make([]byte, 20)...)
	out = le.AppendUint32(out, total)
	out = le.AppendUint32(out, 0x70)
	out = le.AppendUint32(out, 0x12345678)
	out = le.AppendUint32(out, 0) // link_size
	out = le.AppendUint32(out, 0) // link_off
	out = le.AppendUint32(out, 0) // map_off
	out = sec(out, len(p.strs), stringOff)
	out = sec(out, len(p.types), typeOff)
	out = sec(out, len(p.protos), protoOff)
	out = sec(out, len(p.fields), fieldOff)
	out = sec(out, len(p.methods), methodOff)
	out = sec(out, len(plans), classOff)
	out = sec(out, len(data), dataOff)

	for _, o := range strOffs {
		out = le.AppendUint32(out, o)
	}
	for _, s := range p.types {
		out = le.AppendUint32(out, s)
	}
	for i, pr := range p.protos {
		out = le.AppendUint32(out, pr.shorty)
		out = le.AppendUint32(out, pr.ret)
		out = le.AppendUint32(out, paramOffs[i])
	}
	for _, f := range p.fields {
		out = le.AppendUint16(out, uint16(f.class))
		out = le.AppendUint16(out, uint16(f.ref))
		out = le.AppendUint32(out, f.name)
	}
	for _, m := range p.methods {
		out = le.AppendUint16(out, uint16(m.class))
		out = le.AppendUint16(out, uint16(m.ref))
		out = le.AppendUint32(out, m.name)
	}
	for i, pc := range plans {
		out = le.AppendUint32(out, pc.class)
		out = le.AppendUint32(out, pc.c.Flags)
		out = le.AppendUint32(out, pc.super)
		out = le.AppendUint32(out, offs[i].ifaces)
		out = le.AppendUint32(out, pc.src)
		out = le.AppendUint32(out, offs[i].anns)
		out = le.AppendUint32(out, offs[i].data)
		out = le.AppendUint32(out, 0) // static_values_off
	}
	out = append(out, data...)
	le.PutUint32(out[8:], adler32.Checksum(out[12:]))
	return out
}

// appendTries appends the try_items and encoded_catch_handler_list that
// follow a code item's insns.
func appendTries(data []byte, pm plannedMethod) []byte {
	le := binary.LittleEndian
	if len(pm.insns)%2 == 1 {
		data = le.AppendUint16(data, 0)
	}
	list := dexfmt.AppendULEB128(nil, uint32(len(pm.tries)))
	offs := make([]int, len(pm.tries))
	for i, t := range pm.tries {
		offs[i] = len(list)
		size := int32(len(t.types))
		if t.catchAll >= 0 {
			size = -size
		}
		list = dexfmt.AppendSLEB128(list, size)
		for j, ty := range t.types {
			list = dexfmt.AppendULEB128(list, ty)
			list = dexfmt.AppendULEB128(list, t.addrs[j])
		}
		if t.catchAll >= 0 {
			list = dexfmt.AppendULEB128(list, uint32(t.catchAll))
		}
	}
	for i, t := range pm.tries {
		data = le.AppendUint32(data, t.start)
		data = le.AppendUint16(data, t.count)
		data = le.AppendUint16(data, uint16(offs[i]))
	}
	return append(data, list...)
}

// Names builds one empty class per dotted name, each with the given methods.
func Names(names []string, methods ...string) []Class {
	out := make([]Class, 0, len(names))
	for _, n := range names {
		c := Class{Name: n, Super: "java.lang.Object", Flags: uint32(container.AccPublic)}
		for _, m := range methods {
			c.Methods = append(c.Methods, Method{Name: m, Return: "void", Flags: uint32(container.AccPublic), Registers: 1, Insns: []uint16{0x000e}})
		}
		out = append(out, c)
	}
	return out
}
