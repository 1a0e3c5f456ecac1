// DEX data stream reader.
// Implements the little-endian fixed-width and LEB128 encodings used by the
// Dalvik executable format, plus the MUTF-8 string encoding.
package dexfmt

import (
	"encoding/binary"
	"errors"
	"unicode/utf16"
)

var (
	ErrStreamEOF     = errors.New("stream: unexpected end of data")
	ErrStreamOverrun = errors.New("stream: value too large")
	ErrBadMUTF8      = errors.New("stream: malformed MUTF-8")
)

// Stream reads DEX data at an absolute file offset.
type Stream struct {
	data []byte
	pos  int
	end  int
}

// NewStream creates a stream over the given data.
func NewStream(data []byte) *Stream {
	return &Stream{data: data, pos: 0, end: len(data)}
}

// NewStreamAt creates a stream starting at offset within data.
func NewStreamAt(data []byte, offset int) *Stream {
	if offset > len(data) || offset < 0 {
		offset = len(data)
	}
	return &Stream{data: data, pos: offset, end: len(data)}
}

// Position returns the current read position.
func (s *Stream) Position() int { return s.pos }

// SetPosition sets the read position.
func (s *Stream) SetPosition(pos int) {
	if pos > s.end || pos < 0 {
		pos = s.end
	}
	s.pos = pos
}

// Remaining returns bytes left to read.
func (s *Stream) Remaining() int { return s.end - s.pos }

// ReadByte reads a single byte.
func (s *Stream) ReadByte() (byte, error) {
	if s.pos >= s.end {
		return 0, ErrStreamEOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// ReadBytes reads n bytes into a new slice.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 || s.pos+n > s.end {
		return nil, ErrStreamEOF
	}
	out := make([]byte, n)
	copy(out, s.data[s.pos:s.pos+n])
	s.pos += n
	return out, nil
}

// ReadUint16 reads a little-endian uint16.
func (s *Stream) ReadUint16() (uint16, error) {
	if s.pos+2 > s.end {
		return 0, ErrStreamEOF
	}
	v := binary.LittleEndian.Uint16(s.data[s.pos:])
	s.pos += 2
	return v, nil
}

// ReadUint32 reads a little-endian uint32.
func (s *Stream) ReadUint32() (uint32, error) {
	if s.pos+4 > s.end {
		return 0, ErrStreamEOF
	}
	v := binary.LittleEndian.Uint32(s.data[s.pos:])
	s.pos += 4
	return v, nil
}

// ReadULEB128 reads an unsigned LEB128 value of at most five bytes.
func (s *Stream) ReadULEB128() (uint32, error) {
	var r uint32
	for i := 0; i < 5; i++ {
		b, err := s.ReadByte()
		if err != nil {
			return 0, err
		}
		if i == 4 && b > 0x0f {
			return 0, ErrStreamOverrun
		}
		r |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return r, nil
		}
	}
	return 0, ErrStreamOverrun
}

// ReadSLEB128 reads a signed LEB128 value of at most five bytes.
func (s *Stream) ReadSLEB128() (int32, error) {
	var r int32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := s.ReadByte()
		if err != nil {
			return 0, err
		}
		r |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 32 && b&0x40 != 0 {
				r |= -1 << shift
			}
			return r, nil
		}
	}
	return 0, ErrStreamOverrun
}

// ReadMUTF8 reads a NUL-terminated modified UTF-8 string.
// Supplementary characters arrive as surrogate pairs encoded separately.
func (s *Stream) ReadMUTF8() (string, error) {
	var units []uint16
	for {
		b, err := s.ReadByte()
		if err != nil {
			return "", err
		}
		switch {
		case b == 0:
			return string(utf16.Decode(units)), nil
		case b < 0x80:
			units = append(units, uint16(b))
		case b&0xe0 == 0xc0:
			b2, err := s.ReadByte()
			if err != nil {
				return "", err
			}
			if b2&0xc0 != 0x80 {
				return "", ErrBadMUTF8
			}
			units = append(units, uint16(b&0x1f)<<6|uint16(b2&0x3f))
		case b&0xf0 == 0xe0:
			b2, err := s.ReadByte()
			if err != nil {
				return "", err
			}
			b3, err := s.ReadByte()
			if err != nil {
				return "", err
			}
			if b2&0xc0 != 0x80 || b3&0xc0 != 0x80 {
				return "", ErrBadMUTF8
			}
			units = append(units, uint16(b&0x0f)<<12|uint16(b2&0x3f)<<6|uint16(b3&0x3f))
		default:
			return "", ErrBadMUTF8
		}
	}
}

// AppendULEB128 appends the unsigned LEB128 encoding of v to buf.
func AppendULEB128(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// AppendSLEB128 appends the signed LEB128 encoding of v to buf.
func AppendSLEB128(buf []byte, v int32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// AppendMUTF8 appends the NUL-terminated modified UTF-8 encoding of s to buf.
func AppendMUTF8(buf []byte, s string) []byte {
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			buf = append(buf, byte(u))
		case u < 0x800:
			buf = append(buf, 0xc0|byte(u>>6), 0x80|byte(u&0x3f))
		default:
			buf = append(buf, 0xe0|byte(u>>12), 0x80|byte((u>>6)&0x3f), 0x80|byte(u&0x3f))
		}
	}
	return append(buf, 0)
}
