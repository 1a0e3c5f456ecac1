package dex

import "dexview/internal/container"

// The methods below implement container.PoolResolver for bytecode operands.

func (f *File) StringAt(idx uint32) (string, bool) {
	s, err := f.str(idx)
	return s, err == nil
}

func (f *File) TypeAt(idx uint32) (string, bool) {
	t, err := f.typ(idx)
	return t, err == nil
}

func (f *File) FieldAt(idx uint32) (container.FieldRef, bool) {
	if uint64(idx) >= uint64(len(f.fields)) {
		return container.FieldRef{}, false
	}
	fd := f.fields[idx]
	return container.FieldRef{Class: fd.class, Name: fd.name, Type: fd.typ}, true
}

func (f *File) MethodAt(idx uint32) (container.MethodRef, bool) {
	if uint64(idx) >= uint64(len(f.methods)) {
		return container.MethodRef{}, false
	}
	m := f.methods[idx]
	return container.MethodRef{Class: m.class, Name: m.name, Proto: m.proto}, true
}

func (f *File) ProtoAt(idx uint32) (container.Prototype, bool) {
	if uint64(idx) >= uint64(len(f.protos)) {
		return container.Prototype{}, false
	}
	return f.protos[idx], true
}
