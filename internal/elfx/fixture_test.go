package elfx

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// sym is a dynamic FUNC symbol in a fixture library.
type sym struct {
	name       string
	addr, size uint64
}

// Fixture layout: one R+X PT_LOAD at [0, 0x200) holding .text at 0x100,
// one R+W PT_LOAD at [0x200, 0x210) holding .data.
const (
	textAddr = 0x100
	dataAddr = 0x200
)

// nopRet is NOP; RET.
var nopRet = []byte{0x1f, 0x20, 0x03, 0xd5, 0xc0, 0x03, 0x5f, 0xd6}

// buildSO writes a minimal ARM64 shared object exporting syms and returns
// its path.
func buildSO(t *testing.T, syms ...sym) string {
	t.Helper()
	le := binary.LittleEndian

	img := make([]byte, dataAddr+0x10)
	for off := textAddr; off+len(nopRet) <= dataAddr; off += len(nopRet) {
		copy(img[off:], nopRet)
	}

	dynstr := []byte{0}
	dynsym := make([]byte, 24) // null symbol
	for _, s := range syms {
		name := uint32(len(dynstr))
		dynstr = append(append(dynstr, s.name...), 0)
		dynsym = le.AppendUint32(dynsym, name)
		dynsym = append(dynsym, byte(elf.STB_GLOBAL)<<4|byte(elf.STT_FUNC), 0)
		dynsym = le.AppendUint16(dynsym, 1)
		dynsym = le.AppendUint64(dynsym, s.addr)
		dynsym = le.AppendUint64(dynsym, s.size)
	}
	shstr := []byte("\x00.text\x00.data\x00.dynsym\x00.dynstr\x00.shstrtab\x00")

	align := func() {
		for len(img)%8 != 0 {
			img = append(img, 0)
		}
	}
	symOff := uint64(len(img))
	img = append(img, dynsym...)
	strOff := uint64(len(img))
	img = append(img, dynstr...)
	shstrOff := uint64(len(img))
	img = append(img, shstr...)
	align()
	shOff := uint64(len(img))

	type shdr struct {
		name, typ            uint32
		flags, addr, off, sz uint64
		link, info           uint32
		align, entsize       uint64
	}
	sections := []shdr{
		{},
		{name: 1, typ: uint32(elf.SHT_PROGBITS), flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), addr: textAddr, off: textAddr, sz: dataAddr - textAddr, align: 4},
		{name: 7, typ: uint32(elf.SHT_PROGBITS), flags: uint64(elf.SHF_ALLOC | elf.SHF_WRITE), addr: dataAddr, off: dataAddr, sz: 0x10, align: 8},
		{name: 13, typ: uint32(elf.SHT_DYNSYM), flags: uint64(elf.SHF_ALLOC), off: symOff, sz: uint64(len(dynsym)), link: 4, info: 1, align: 8, entsize: 24},
		{name: 21, typ: uint32(elf.SHT_STRTAB), flags: uint64(elf.SHF_ALLOC), off: strOff, sz: uint64(len(dynstr)), align: 1},
		{name: 29, typ: uint32(elf.SHT_STRTAB), off: shstrOff, sz: uint64(len(shstr)), align: 1},
	}
	for _, sh := range sections {
		img = le.AppendUint32(img, sh.name)
		img = le.AppendUint32(img, sh.typ)
		img = le.AppendUint64(img, sh.flags)
		img = le.AppendUint64(img, sh.addr)
		img = le.AppendUint64(img, sh.off)
		img = le.AppendUint64(img, sh.sz)
		img = le.AppendUint32(img, sh.link)
		img = le.AppendUint32(img, sh.info)
		img = le.AppendUint64(img, sh.align)
		img = le.AppendUint64(img, sh.entsize)
	}

	// ELF header.
	copy(img, elf.ELFMAG)
	img[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	img[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	img[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	le.PutUint16(img[16:], uint16(elf.ET_DYN))
	le.PutUint16(img[18:], uint16(elf.EM_AARCH64))
	le.PutUint32(img[20:], uint32(elf.EV_CURRENT))
	le.PutUint64(img[32:], 64) // e_phoff
	le.PutUint64(img[40:], shOff)
	le.PutUint16(img[52:], 64) // e_ehsize
	le.PutUint16(img[54:], 56) // e_phentsize
	le.PutUint16(img[56:], 2)  // e_phnum
	le.PutUint16(img[58:], 64) // e_shentsize
	le.PutUint16(img[60:], uint16(len(sections)))
	le.PutUint16(img[62:], uint16(len(sections)-1))

	// Program headers.
	phdr := func(at int, flags elf.ProgFlag, off, size uint64) {
		le.PutUint32(img[at:], uint32(elf.PT_LOAD))
		le.PutUint32(img[at+4:], uint32(flags))
		le.PutUint64(img[at+8:], off)   // p_offset
		le.PutUint64(img[at+16:], off)  // p_vaddr
		le.PutUint64(img[at+24:], off)  // p_paddr
		le.PutUint64(img[at+32:], size) // p_filesz
		le.PutUint64(img[at+40:], size) // p_memsz
		le.PutUint64(img[at+48:], 0x10)
	}
	phdr(64, elf.PF_R|elf.PF_X, 0, dataAddr)
	phdr(64+56, elf.PF_R|elf.PF_W, dataAddr, 0x10)

	path := filepath.Join(t.TempDir(), "libnative.so")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
