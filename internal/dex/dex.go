// Package dex decodes Dalvik executable (DEX) files into container classes.
//
// Only the structures the viewer needs are decoded: the id tables, class
// definitions, class data, code items and class-level annotation types.
// Encoded values, debug info and try/catch tables are skipped.
package dex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"os"

	"dexview/internal/container"
	"dexview/internal/dexfmt"
)

var (
	ErrNotDex    = errors.New("dex: not a DEX file")
	ErrEndian    = errors.New("dex: unsupported endian tag")
	ErrTruncated = errors.New("dex: truncated")
	ErrBadIndex  = errors.New("dex: index out of range")
	ErrChecksum  = errors.New("dex: checksum mismatch")
)

const (
	// HeaderSize is the fixed size of header_item.
	HeaderSize = 0x70

	endianConstant = 0x12345678
	noIndex        = 0xffffffff
)

// Section locates one id table or the data area.
type Section struct {
	Size uint32 `json:"size"`
	Off  uint32 `json:"off"`
}

// Header is the decoded header_item.
type Header struct {
	Version   string  `json:"version"`
	Checksum  uint32  `json:"checksum"`
	FileSize  uint32  `json:"file_size"`
	StringIDs Section `json:"string_ids"`
	TypeIDs   Section `json:"type_ids"`
	ProtoIDs  Section `json:"proto_ids"`
	FieldIDs  Section `json:"field_ids"`
	MethodIDs Section `json:"method_ids"`
	ClassDefs Section `json:"class_defs"`
	Data      Section `json:"data"`
}

type fieldID struct {
	class string
	typ   string
	name  string
}

type methodID struct {
	class string
	proto container.Prototype
	name  string
}

// File is a decoded DEX file. It implements container.Container.
type File struct {
	Header Header

	data    []byte
	opts    dexfmt.Options
	strs    []string
	types   []string
	protos  []container.Prototype
	fields  []fieldID
	methods []methodID
	classes []*container.Class
	diags   dexfmt.Diags
}

// Open reads and decodes the DEX file at path.
func Open(path string, opts dexfmt.Options) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dex: read: %w", err)
	}
	return Parse(data, opts)
}

// IsDex reports whether data starts with the DEX magic.
func IsDex(data []byte) bool {
	return len(data) >= 8 && string(data[:4]) == "dex\n" && data[7] == 0
}

// Parse decodes a DEX image held in memory.
func Parse(data []byte, opts dexfmt.Options) (*File, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	f := &File{Header: h, data: data, opts: opts}

	if int(h.FileSize) != len(data) {
		if err := f.fail(32, dexfmt.DiagTruncated, "file_size %d, have %d bytes", h.FileSize, len(data)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
	}
	if sum := adler32.Checksum(data[12:]); sum != h.Checksum {
		if err := f.fail(8, dexfmt.DiagInvalid, "checksum 0x%08x, computed 0x%08x", h.Checksum, sum); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChecksum, err)
		}
	}

	steps := []func() error{
		f.readStrings,
		f.readTypes,
		f.readProtos,
		f.readFields,
		f.readMethods,
		f.readClasses,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize || !IsDex(data) {
		return h, ErrNotDex
	}
	le := binary.LittleEndian
	if le.Uint32(data[40:]) != endianConstant {
		return h, ErrEndian
	}
	sec := func(at int) Section {
		return Section{Size: le.Uint32(data[at:]), Off: le.Uint32(data[at+4:])}
	}
	h.Version = string(data[4:7])
	h.Checksum = le.Uint32(data[8:])
	h.FileSize = le.Uint32(data[32:])
	h.StringIDs = sec(56)
	h.TypeIDs = sec(64)
	h.ProtoIDs = sec(72)
	h.FieldIDs = sec(80)
	h.MethodIDs = sec(88)
	h.ClassDefs = sec(96)
	h.Data = sec(104)
	return h, nil
}

// Format implements container.Container.
func (f *File) Format() string { return "dex " + f.Header.Version }

// Classes implements container.Container.
func (f *File) Classes() []*container.Class { return f.classes }

// Diags returns the issues recorded in best-effort mode.
func (f *File) Diags() []dexfmt.Diag { return f.diags.Items() }

// Close drops the decoded tables and the file image.
func (f *File) Close() error {
	f.data = nil
	f.strs = nil
	f.types = nil
	f.protos = nil
	f.fields = nil
	f.methods = nil
	f.classes = nil
	return nil
}

// fail records a diagnostic in best-effort mode and returns an error in strict mode.
func (f *File) fail(off uint64, kind dexfmt.DiagKind, format string, args ...any) error {
	if f.opts.Mode == dexfmt.ModeStrict {
		return fmt.Errorf(format, args...)
	}
	f.diags.Addf(off, kind, format, args...)
	return nil
}

func (f *File) checkTable(name string, sec Section, itemSize int) error {
	if sec.Size == 0 {
		return nil
	}
	if int(sec.Size) > f.opts.EffectiveMaxSteps() {
		return fmt.Errorf("%w: %s has %d items (cap %d)", ErrTruncated, name, sec.Size, f.opts.EffectiveMaxSteps())
	}
	end := uint64(sec.Off) + uint64(sec.Size)*uint64(itemSize)
	if end > uint64(len(f.data)) {
		return fmt.Errorf("%w: %s ends at 0x%x past 0x%x", ErrTruncated, name, end, len(f.data))
	}
	return nil
}

func (f *File) stream(off uint32) (*dexfmt.Stream, error) {
	if uint64(off) >= uint64(len(f.data)) {
		return nil, fmt.Errorf("%w: offset 0x%x", ErrTruncated, off)
	}
	return dexfmt.NewStreamAt(f.data, int(off)), nil
}

func (f *File) readStrings() error {
	sec := f.Header.StringIDs
	if err := f.checkTable("string_ids", sec, 4); err != nil {
		return err
	}
	f.strs = make([]string, sec.Size)
	for i := range f.strs {
		off := binary.LittleEndian.Uint32(f.data[sec.Off+uint32(i)*4:])
		s, err := f.readString(off)
		if err != nil {
			if ferr := f.fail(uint64(off), dexfmt.DiagInvalid, "string %d: %v", i, err); ferr != nil {
				return fmt.Errorf("dex: %w", ferr)
			}
			s = fmt.Sprintf("<string_%d>", i)
		}
		f.strs[i] = s
	}
	return nil
}

func (f *File) readString(off uint32) (string, error) {
	s, err := f.stream(off)
	if err != nil {
		return "", err
	}
	if _, err := s.ReadULEB128(); err != nil {
		return "", err
	}
	return s.ReadMUTF8()
}

func (f *File) str(idx uint32) (string, error) {
	if uint64(idx) >= uint64(len(f.strs)) {
		return "", fmt.Errorf("%w: string %d", ErrBadIndex, idx)
	}
	return f.strs[idx], nil
}

func (f *File) typ(idx uint32) (string, error) {
	if uint64(idx) >= uint64(len(f.types)) {
		return "", fmt.Errorf("%w: type %d", ErrBadIndex, idx)
	}
	return f.types[idx], nil
}

func (f *File) readTypes() error {
	sec := f.Header.TypeIDs
	if err := f.checkTable("type_ids", sec, 4); err != nil {
		return err
	}
	f.types = make([]string, sec.Size)
	for i := range f.types {
		desc, err := f.str(binary.LittleEndian.Uint32(f.data[sec.Off+uint32(i)*4:]))
		if err != nil {
			return fmt.Errorf("dex: type %d: %w", i, err)
		}
		f.types[i] = container.JavaName(desc)
	}
	return nil
}

// typeList decodes a type_list; off 0 means an empty list.
func (f *File) typeList(off uint32) ([]string, error) {
	if off == 0 {
		return nil, nil
	}
	s, err := f.stream(off)
	if err != nil {
		return nil, err
	}
	n, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int64(n)*2 > int64(s.Remaining()) {
		return nil, fmt.Errorf("%w: type_list of %d at 0x%x", ErrTruncated, n, off)
	}
	out := make([]string, n)
	for i := range out {
		idx, _ := s.ReadUint16()
		if out[i], err = f.typ(uint32(idx)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *File) readProtos() error {
	sec := f.Header.ProtoIDs
	if err := f.checkTable("proto_ids", sec, 12); err != nil {
		return err
	}
	le := binary.LittleEndian
	f.protos = make([]container.Prototype, sec.Size)
	for i := range f.protos {
		at := sec.Off + uint32(i)*12
		ret, err := f.typ(le.Uint32(f.data[at+4:]))
		if err != nil {
			return fmt.Errorf("dex: proto %d: %w", i, err)
		}
		params, err := f.typeList(le.Uint32(f.data[at+8:]))
		if err != nil {
			return fmt.Errorf("dex: proto %d params: %w", i, err)
		}
		f.protos[i] = container.Prototype{Return: ret, Params: params}
	}
	return nil
}

func (f *File) readFields() error {
	sec := f.Header.FieldIDs
	if err := f.checkTable("field_ids", sec, 8); err != nil {
		return err
	}
	le := binary.LittleEndian
	f.fields = make([]fieldID, sec.Size)
	for i := range f.fields {
		at := sec.Off + uint32(i)*8
		class, err1 := f.typ(uint32(le.Uint16(f.data[at:])))
		typ, err2 := f.typ(uint32(le.Uint16(f.data[at+2:])))
		name, err3 := f.str(le.Uint32(f.data[at+4:]))
		if err := errors.Join(err1, err2, err3); err != nil {
			return fmt.Errorf("dex: field %d: %w", i, err)
		}
		f.fields[i] = fieldID{class: class, typ: typ, name: name}
	}
	return nil
}

func (f *File) readMethods() error {
	sec := f.Header.MethodIDs
	if err := f.checkTable("method_ids", sec, 8); err != nil {
		return err
	}
	le := binary.LittleEndian
	f.methods = make([]methodID, sec.Size)
	for i := range f.methods {
		at := sec.Off + uint32(i)*8
		class, err1 := f.typ(uint32(le.Uint16(f.data[at:])))
		name, err2 := f.str(le.Uint32(f.data[at+4:]))
		var err3 error
		protoIdx := int(le.Uint16(f.data[at+2:]))
		if protoIdx >= len(f.protos) {
			err3 = fmt.Errorf("%w: proto %d", ErrBadIndex, protoIdx)
		}
		if err := errors.Join(err1, err2, err3); err != nil {
			return fmt.Errorf("dex: method %d: %w", i, err)
		}
		f.methods[i] = methodID{class: class, proto: f.protos[protoIdx], name: name}
	}
	return nil
}

func (f *File) readClasses() error {
	sec := f.Header.ClassDefs
	if err := f.checkTable("class_defs", sec, 32); err != nil {
		return err
	}
	f.classes = make([]*container.Class, 0, sec.Size)
	for i := uint32(0); i < sec.Size; i++ {
		at := sec.Off + i*32
		c, err := f.readClass(at)
		if err != nil {
			if ferr := f.fail(uint64(at), dexfmt.DiagInvalid, "class_def %d: %v", i, err); ferr != nil {
				return fmt.Errorf("dex: %w", ferr)
			}
			continue
		}
		f.classes = append(f.classes, c)
	}
	return nil
}

func (f *File) readClass(at uint32) (*container.Class, error) {
	le := binary.LittleEndian
	var def [8]uint32
	for j := range def {
		def[j] = le.Uint32(f.data[at+uint32(j)*4:])
	}
	classIdx, flags, superIdx, ifOff, srcIdx, annOff, dataOff := def[0], def[1], def[2], def[3], def[4], def[5], def[6]

	name, err := f.typ(classIdx)
	if err != nil {
		return nil, err
	}
	c := &container.Class{Name: name, Flags: container.AccessFlags(flags)}
	if superIdx != noIndex {
		if c.Super, err = f.typ(superIdx); err != nil {
			return nil, err
		}
	}
	if c.Interfaces, err = f.typeList(ifOff); err != nil {
		return nil, fmt.Errorf("interfaces: %w", err)
	}
	if srcIdx != noIndex {
		if c.SourceFile, err = f.str(srcIdx); err != nil {
			return nil, err
		}
	}
	if annOff != 0 {
		if c.Annotations, err = f.classAnnotations(annOff); err != nil {
			return nil, fmt.Errorf("annotations: %w", err)
		}
	}
	if dataOff != 0 {
		if err := f.classData(c, dataOff); err != nil {
			return nil, fmt.Errorf("class_data: %w", err)
		}
	}
	return c, nil
}

func (f *File) classAnnotations(dirOff uint32) ([]container.Annotation, error) {
	dir, err := f.stream(dirOff)
	if err != nil {
		return nil, err
	}
	setOff, err := dir.ReadUint32()
	if err != nil || setOff == 0 {
		return nil, err
	}
	set, err := f.stream(setOff)
	if err != nil {
		return nil, err
	}
	n, err := set.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int64(n)*4 > int64(set.Remaining()) {
		return nil, fmt.Errorf("%w: annotation set of %d at 0x%x", ErrTruncated, n, setOff)
	}
	out := make([]container.Annotation, 0, n)
	for i := uint32(0); i < n; i++ {
		itemOff, _ := set.ReadUint32()
		item, err := f.stream(itemOff)
		if err != nil {
			return nil, err
		}
		vis, _ := item.ReadByte()
		typeIdx, err := item.ReadULEB128()
		if err != nil {
			return nil, err
		}
		typ, err := f.typ(typeIdx)
		if err != nil {
			return nil, err
		}
		out = append(out, container.Annotation{Type: typ, Visibility: container.Visibility(vis)})
	}
	return out, nil
}

func (f *File) classData(c *container.Class, off uint32) error {
	s, err := f.stream(off)
	if err != nil {
		return err
	}
	var counts [4]uint32
	for i := range counts {
		if counts[i], err = s.ReadULEB128(); err != nil {
			return err
		}
		if int(counts[i]) > f.opts.EffectiveMaxSteps() {
			return fmt.Errorf("%w: %d members", ErrTruncated, counts[i])
		}
	}

	// Static then instance fields; member indices are delta-encoded per list.
	for _, n := range counts[:2] {
		idx := uint32(0)
		for j := uint32(0); j < n; j++ {
			diff, err1 := s.ReadULEB128()
			flags, err2 := s.ReadULEB128()
			if err := errors.Join(err1, err2); err != nil {
				return err
			}
			idx += diff
			if uint64(idx) >= uint64(len(f.fields)) {
				return fmt.Errorf("%w: field %d", ErrBadIndex, idx)
			}
			fid := f.fields[idx]
			c.Fields = append(c.Fields, container.Field{
				Name:  fid.name,
				Type:  fid.typ,
				Flags: container.AccessFlags(flags),
			})
		}
	}

	// Direct then virtual methods.
	for _, n := range counts[2:] {
		idx := uint32(0)
		for j := uint32(0); j < n; j++ {
			diff, err1 := s.ReadULEB128()
			flags, err2 := s.ReadULEB128()
			codeOff, err3 := s.ReadULEB128()
			if err := errors.Join(err1, err2, err3); err != nil {
				return err
			}
			idx += diff
			if uint64(idx) >= uint64(len(f.methods)) {
				return fmt.Errorf("%w: method %d", ErrBadIndex, idx)
			}
			mid := f.methods[idx]
			m := &container.Method{
				Name:  mid.name,
				Class: c,
				Flags: container.AccessFlags(flags),
				Proto: mid.proto,
			}
			if codeOff != 0 {
				if m.Bytecode, err = f.code(codeOff); err != nil {
					return fmt.Errorf("code for %s: %w", mid.name, err)
				}
			}
			c.Methods = append(c.Methods, m)
		}
	}
	return nil
}

func (f *File) code(off uint32) (*container.Bytecode, error) {
	s, err := f.stream(off)
	if err != nil {
		return nil, err
	}
	var hdr [4]uint16
	for i := range hdr {
		if hdr[i], err = s.ReadUint16(); err != nil {
			return nil, err
		}
	}
	if _, err := s.ReadUint32(); err != nil { // debug_info_off
		return nil, err
	}
	n, err := s.ReadUint32()
	if err != nil {
		return nil, err
	}
	if avail := uint32(s.Remaining() / 2); n > avail {
		if err := f.fail(uint64(off), dexfmt.DiagClamped, "insns_size %d, %d available", n, avail); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		n = avail
	}
	insns := make([]uint16, n)
	for i := range insns {
		insns[i], _ = s.ReadUint16()
	}
	bc := &container.Bytecode{
		Registers: hdr[0],
		Ins:       hdr[1],
		Outs:      hdr[2],
		Insns:     insns,
	}
	if hdr[3] == 0 {
		return bc, nil
	}
	if n%2 == 1 {
		s.ReadUint16() // padding
	}
	tries, err := f.tries(s, int(hdr[3]))
	if err != nil {
		if err := f.fail(uint64(off), dexfmt.DiagInvalid, "tries: %v", err); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return bc, nil
	}
	bc.Tries = tries
	return bc, nil
}

// tries reads n try_items and resolves their encoded_catch_handlers.
func (f *File) tries(s *dexfmt.Stream, n int) ([]container.Try, error) {
	type item struct {
		start      uint32
		count      uint16
		handlerOff uint16
	}
	items := make([]item, n)
	for i := range items {
		var err error
		if items[i].start, err = s.ReadUint32(); err != nil {
			return nil, err
		}
		if items[i].count, err = s.ReadUint16(); err != nil {
			return nil, err
		}
		if items[i].handlerOff, err = s.ReadUint16(); err != nil {
			return nil, err
		}
	}
	base := s.Position()

	out := make([]container.Try, n)
	for i, it := range items {
		s.SetPosition(base + int(it.handlerOff))
		size, err := s.ReadSLEB128()
		if err != nil {
			return nil, err
		}
		typed := size
		if typed < 0 {
			typed = -typed
		}
		if int(typed) > s.Remaining() {
			return nil, fmt.Errorf("handler size %d exceeds data", size)
		}
		t := container.Try{Start: it.start, Count: it.count}
		for range typed {
			typeIdx, err1 := s.ReadULEB128()
			addr, err2 := s.ReadULEB128()
			if err := errors.Join(err1, err2); err != nil {
				return nil, err
			}
			name, err := f.typ(typeIdx)
			if err != nil {
				return nil, err
			}
			t.Handlers = append(t.Handlers, container.Handler{Type: name, Addr: addr})
		}
		if size <= 0 {
			addr, err := s.ReadULEB128()
			if err != nil {
				return nil, err
			}
			t.Handlers = append(t.Handlers, container.Handler{Addr: addr})
		}
		out[i] = t
	}
	return out, nil
}
