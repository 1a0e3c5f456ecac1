// Package elfx loads ARM64 shared objects (Android JNI libraries) and exposes
// their exported JNI entry points as container classes and methods.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNotELF    = errors.New("elfx: not an ELF file")
	ErrNotARM64  = errors.New("elfx: not ARM64 (EM_AARCH64)")
	ErrNotShared = errors.New("elfx: not a shared object")
	ErrNot64Bit  = errors.New("elfx: not 64-bit ELF")
	ErrNoSegment = errors.New("elfx: no PT_LOAD segment covers address")
)

// File wraps a debug/elf.File with address translation helpers.
type File struct {
	ELF  *elf.File
	raw  io.ReaderAt
	file *os.File
	size int64
}

// Open opens an ELF file and validates it is an ARM64 shared object.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("elfx: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("elfx: stat: %w", err)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	var verr error
	switch {
	case ef.Class != elf.ELFCLASS64:
		verr = ErrNot64Bit
	case ef.Machine != elf.EM_AARCH64:
		verr = ErrNotARM64
	case ef.Type != elf.ET_DYN:
		verr = ErrNotShared
	}
	if verr != nil {
		f.Close()
		return nil, verr
	}

	return &File{ELF: ef, raw: f, file: f, size: info.Size()}, nil
}

// Close releases resources. elf.NewFile does not own the os.File, so it is
// closed here.
func (f *File) Close() error {
	return f.file.Close()
}

// VAToFileOffset converts a virtual address to a file offset using PT_LOAD segments.
func (f *File) VAToFileOffset(va uint64) (uint64, error) {
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if va >= p.Vaddr && va < p.Vaddr+p.Memsz {
			offset := va - p.Vaddr + p.Off
			if offset >= uint64(f.size) {
				return 0, fmt.Errorf("elfx: VA 0x%x maps to offset 0x%x beyond file size 0x%x", va, offset, f.size)
			}
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: VA 0x%x", ErrNoSegment, va)
}

// ReadBytesAtVA reads n bytes starting at the given virtual address.
func (f *File) ReadBytesAtVA(va uint64, n int) ([]byte, error) {
	off, err := f.VAToFileOffset(va)
	if err != nil {
		return nil, err
	}
	// Clamp to file size.
	avail := f.size - int64(off)
	if avail <= 0 {
		return nil, fmt.Errorf("elfx: offset 0x%x at or past end of file", off)
	}
	if int64(n) > avail {
		n = int(avail)
	}
	buf := make([]byte, n)
	_, err = f.raw.ReadAt(buf, int64(off))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("elfx: read at 0x%x: %w", off, err)
	}
	return buf, nil
}

// SegmentInfo describes a PT_LOAD segment.
type SegmentInfo struct {
	Vaddr  uint64
	Memsz  uint64
	Filesz uint64
	Offset uint64
	Flags  elf.ProgFlag
}

// Executable reports whether [va, va+n) lies within the file-backed part of
// one executable segment.
func (s SegmentInfo) Executable(va, n uint64) bool {
	return s.Flags&elf.PF_X != 0 && va >= s.Vaddr && va+n >= va && va+n <= s.Vaddr+s.Filesz
}

// LoadSegments returns all PT_LOAD segments.
func (f *File) LoadSegments() []SegmentInfo {
	var segs []SegmentInfo
	for _, p := range f.ELF.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		segs = append(segs, SegmentInfo{
			Vaddr:  p.Vaddr,
			Memsz:  p.Memsz,
			Filesz: p.Filesz,
			Offset: p.Off,
			Flags:  p.Flags,
		})
	}
	return segs
}
