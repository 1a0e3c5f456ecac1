package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dexview/internal/container"
)

// Native is a JNI library viewed as a container: every exported
// Java_<class>_<method> function becomes a native method of its class.
type Native struct {
	file    *File
	classes []*container.Class
	names   map[uint64]string
}

// OpenNative opens an ARM64 shared object and groups its JNI exports by class.
// A library without JNI exports yields an empty container.
func OpenNative(path string) (*Native, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	n := &Native{file: f, names: make(map[uint64]string)}

	syms, err := f.ELF.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		f.Close()
		return nil, fmt.Errorf("elfx: dynsym: %w", err)
	}

	segs := f.LoadSegments()
	byClass := make(map[string]*container.Class)
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}
		class, method, params, ok := DecodeJNIName(s.Name)
		if _, dup := n.names[s.Value]; !dup {
			n.names[s.Value] = s.Name
			if ok {
				n.names[s.Value] = class + "." + method
			}
		}
		if !ok {
			continue
		}
		c := byClass[class]
		if c == nil {
			c = &container.Class{Name: class, Flags: container.AccPublic}
			byClass[class] = c
			n.classes = append(n.classes, c)
		}
		m := &container.Method{
			Name:  method,
			Class: c,
			Flags: container.AccPublic | container.AccNative,
			Proto: container.Prototype{Params: params},
		}
		if s.Size > 0 && executable(segs, s.Value, s.Size) {
			code, err := f.ReadBytesAtVA(s.Value, int(s.Size))
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("elfx: code for %s: %w", s.Name, err)
			}
			m.Machine = &container.MachineCode{Arch: "arm64", Addr: s.Value, Bytes: code}
		}
		c.Methods = append(c.Methods, m)
	}
	return n, nil
}

// executable reports whether a symbol's bytes lie in an executable PT_LOAD
// segment. Exports pointing elsewhere are listed without machine code.
func executable(segs []SegmentInfo, va, n uint64) bool {
	for _, sg := range segs {
		if sg.Executable(va, n) {
			return true
		}
	}
	return false
}

// Format implements container.Container.
func (n *Native) Format() string { return "elf arm64 jni" }

// Classes implements container.Container.
func (n *Native) Classes() []*container.Class { return n.classes }

// SymbolAt implements container.SymbolResolver over all exported functions.
// JNI exports resolve to their dotted Java name.
func (n *Native) SymbolAt(addr uint64) (string, bool) {
	name, ok := n.names[addr]
	return name, ok
}

// Close releases the underlying ELF file.
func (n *Native) Close() error {
	n.classes = nil
	return n.file.Close()
}

// DecodeJNIName splits a JNI export name into its dotted class name, method
// name and, for overloaded exports ("__" suffix), the parameter types.
// Escapes: _1 '_', _2 ';', _3 '[', _0xxxx UTF-16 unit.
func DecodeJNIName(sym string) (class, method string, params []string, ok bool) {
	rest, found := strings.CutPrefix(sym, "Java_")
	if !found {
		return "", "", nil, false
	}
	var sig string
	if i := strings.Index(rest, "__"); i >= 0 {
		rest, sig = rest[:i], rest[i+2:]
	}
	path, ok := unmangle(rest)
	if !ok {
		return "", "", nil, false
	}
	slash := strings.LastIndexByte(path, '/')
	if slash <= 0 || slash == len(path)-1 {
		return "", "", nil, false
	}
	class = strings.ReplaceAll(path[:slash], "/", ".")
	method = path[slash+1:]

	if sig != "" {
		desc, ok := unmangle(sig)
		if !ok {
			return "", "", nil, false
		}
		if params, ok = splitDescriptors(desc); !ok {
			return "", "", nil, false
		}
	}
	return class, method, params, true
}

// unmangle resolves JNI escapes; a bare '_' becomes '/'.
func unmangle(s string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			b.WriteByte('/')
			continue
		}
		switch s[i+1] {
		case '1':
			b.WriteByte('_')
			i++
		case '2':
			b.WriteByte(';')
			i++
		case '3':
			b.WriteByte('[')
			i++
		case '0':
			if i+6 > len(s) {
				return "", false
			}
			v, err := strconv.ParseUint(s[i+2:i+6], 16, 16)
			if err != nil {
				return "", false
			}
			b.WriteRune(rune(v))
			i += 5
		default:
			b.WriteByte('/')
		}
	}
	return b.String(), true
}

// splitDescriptors splits a concatenated descriptor list ("I[JLjava/lang/String;").
func splitDescriptors(s string) ([]string, bool) {
	var out []string
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] == '[' {
			i++
		}
		if i == len(s) {
			return nil, false
		}
		if s[i] == 'L' {
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				return nil, false
			}
			i += end
		}
		out = append(out, container.JavaName(s[:i+1]))
		s = s[i+1:]
	}
	return out, true
}
