package dexfmt

import (
	"errors"
	"testing"
)

func TestReadULEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x7f}, 16256},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}
	for _, tt := range tests {
		s := NewStream(tt.in)
		got, err := s.ReadULEB128()
		if err != nil {
			t.Errorf("ReadULEB128(%x): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadULEB128(%x) = %d, want %d", tt.in, got, tt.want)
		}
		if s.Remaining() != 0 {
			t.Errorf("ReadULEB128(%x) left %d bytes", tt.in, s.Remaining())
		}
	}
}

func TestReadULEB128Overrun(t *testing.T) {
	s := NewStream([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	if _, err := s.ReadULEB128(); !errors.Is(err, ErrStreamOverrun) {
		t.Fatalf("err = %v, want ErrStreamOverrun", err)
	}
}

func TestReadULEB128EOF(t *testing.T) {
	s := NewStream([]byte{0x80})
	if _, err := s.ReadULEB128(); !errors.Is(err, ErrStreamEOF) {
		t.Fatalf("err = %v, want ErrStreamEOF", err)
	}
}

func TestReadSLEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, -1},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
	}
	for _, tt := range tests {
		got, err := NewStream(tt.in).ReadSLEB128()
		if err != nil {
			t.Errorf("ReadSLEB128(%x): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadSLEB128(%x) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSLEB128RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 63, -64, 64, -65, 1 << 20, -(1 << 20), 0x7fffffff, -0x80000000} {
		buf := AppendSLEB128(nil, v)
		got, err := NewStream(buf).ReadSLEB128()
		if err != nil {
			t.Fatalf("%d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d (%x)", v, got, buf)
		}
	}
}

func TestULEB128RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, 1 << 20, 0xffffffff} {
		buf := AppendULEB128(nil, v)
		got, err := NewStream(buf).ReadULEB128()
		if err != nil {
			t.Fatalf("%d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d = %d", v, got)
		}
	}
}

func TestReadMUTF8(t *testing.T) {
	for _, s := range []string{"", "Lcom/example/Foo;", "<init>", "café", "中文", "emoji \U0001F600", "nul\x00inside"} {
		buf := AppendMUTF8(nil, s)
		for _, b := range buf[:len(buf)-1] {
			if b == 0 {
				t.Fatalf("%q: encoded form contains NUL", s)
			}
		}
		got, err := NewStream(buf).ReadMUTF8()
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if got != s {
			t.Errorf("got %q, want %q", got, s)
		}
	}
}

func TestReadMUTF8Unterminated(t *testing.T) {
	if _, err := NewStream([]byte("abc")).ReadMUTF8(); !errors.Is(err, ErrStreamEOF) {
		t.Fatalf("err = %v, want ErrStreamEOF", err)
	}
}

func TestStreamFixedWidth(t *testing.T) {
	s := NewStreamAt([]byte{0xaa, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12}, 1)
	v16, err := s.ReadUint16()
	if err != nil || v16 != 0x1234 {
		t.Fatalf("ReadUint16 = %x, %v", v16, err)
	}
	s.SetPosition(3)
	v32, err := s.ReadUint32()
	if err != nil || v32 != 0x12345678 {
		t.Fatalf("ReadUint32 = %x, %v", v32, err)
	}
	if _, err := s.ReadUint32(); !errors.Is(err, ErrStreamEOF) {
		t.Fatalf("err = %v, want ErrStreamEOF", err)
	}
}

func TestDiags(t *testing.T) {
	var d Diags
	d.Add(0x10, DiagTruncated, "short")
	d.Addf(0x20, DiagIndex, "type %d", 7)
	if d.Len() != 2 {
		t.Fatalf("len = %d", d.Len())
	}
	if got := d.Items()[1].String(); got != "[bad_index] 0x20: type 7" {
		t.Errorf("String() = %q", got)
	}
	if (Options{}).EffectiveMaxSteps() != DefaultMaxSteps {
		t.Error("zero MaxSteps should use default")
	}
}
