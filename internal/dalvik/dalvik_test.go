package dalvik

import (
	"errors"
	"strings"
	"testing"

	"dexview/internal/container"
)

type pool struct{}

func (pool) StringAt(idx uint32) (string, bool) {
	if idx == 3 {
		return "hello\n", true
	}
	return "", false
}
func (pool) TypeAt(idx uint32) (string, bool) {
	if idx == 1 {
		return "java.lang.StringBuilder", true
	}
	return "", false
}
func (pool) FieldAt(idx uint32) (container.FieldRef, bool) {
	return container.FieldRef{Class: "com.example.Foo", Name: "count", Type: "int"}, idx == 0
}
func (pool) MethodAt(idx uint32) (container.MethodRef, bool) {
	return container.MethodRef{
		Class: "java.lang.Object",
		Name:  "<init>",
		Proto: container.Prototype{Return: "void"},
	}, idx == 2
}
func (pool) ProtoAt(idx uint32) (container.Prototype, bool) {
	return container.Prototype{Return: "int", Params: []string{"java.lang.String", "long[]"}}, idx == 0
}

func TestOpcodeTable(t *testing.T) {
	tests := []struct {
		op   byte
		name string
		f    Fmt
	}{
		{0x00, "nop", "10x"},
		{0x0e, "return-void", "10x"},
		{0x1a, "const-string", "21c"},
		{0x4a, "aget-short", "23x"},
		{0x58, "iget-short", "22c"},
		{0x6d, "sput-short", "21c"},
		{0x70, "invoke-direct", "35c"},
		{0x78, "invoke-interface/range", "3rc"},
		{0x8f, "int-to-short", "12x"},
		{0xaf, "rem-double", "23x"},
		{0xcf, "rem-double/2addr", "12x"},
		{0xe2, "ushr-int/lit8", "22b"},
		{0xe3, "unused-e3", "10x"},
		{0xff, "const-method-type", "21c"},
	}
	for _, tt := range tests {
		op := Opcodes[tt.op]
		if op.Name != tt.name || op.Format != tt.f {
			t.Errorf("0x%02x = %s/%s, want %s/%s", tt.op, op.Name, op.Format, tt.name, tt.f)
		}
		if _, ok := formatUnits[op.Format]; !ok {
			t.Errorf("0x%02x: format %s has no size", tt.op, op.Format)
		}
	}
}

func TestTextWithPool(t *testing.T) {
	tests := []struct {
		name  string
		insns []uint16
		want  string
	}{
		{"const-string", []uint16{0x001a, 0x0003}, `const-string v0, "hello\n"`},
		{"new-instance", []uint16{0x0122, 0x0001}, "new-instance v1, Ljava/lang/StringBuilder;"},
		{"invoke-direct", []uint16{0x1070, 0x0002, 0x0000}, "invoke-direct {v0}, Ljava/lang/Object;-><init>()V"},
		{"iget", []uint16{0x2152, 0x0000}, "iget v1, v2, Lcom/example/Foo;->count:I"},
		{"invoke-static/range", []uint16{0x0377, 0x0002, 0x0004}, "invoke-static/range {v4 .. v6}, Ljava/lang/Object;-><init>()V"},
		{"invoke-polymorphic", []uint16{0x20fa, 0x0002, 0x0010, 0x0000}, "invoke-polymorphic {v0, v1}, Ljava/lang/Object;-><init>()V, (Ljava/lang/String;[J)I"},
		{"unresolved", []uint16{0x001a, 0x0009}, "const-string v0, string@9"},
	}
	for _, tt := range tests {
		insts, err := Decode(tt.insns)
		if err != nil || len(insts) != 1 {
			t.Fatalf("%s: Decode = %v, %v", tt.name, insts, err)
		}
		if got := insts[0].Text(pool{}); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		insns []uint16
		want  string
	}{
		{[]uint16{0x1012}, "const/4 v0, 0x1"},
		{[]uint16{0xf112}, "const/4 v1, -0x1"},
		{[]uint16{0x0013, 0xfffe}, "const/16 v0, -0x2"},
		{[]uint16{0x0015, 0x4120}, "const/high16 v0, 0x41200000"},
		{[]uint16{0x0014, 0x5678, 0x1234}, "const v0, 0x12345678"},
		{[]uint16{0x0218, 0x0001, 0x0000, 0x0000, 0x0100}, "const-wide v2, 0x100000000000001"},
		{[]uint16{0x01d8, 0xff02}, "add-int/lit8 v1, v2, -0x1"},
		{[]uint16{0x2190}, ""}, // truncated 23x
	}
	for _, tt := range tests {
		insts, err := Decode(tt.insns)
		if tt.want == "" {
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("%04x: err = %v, want ErrTruncated", tt.insns, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%04x: %v", tt.insns, err)
		}
		if got := insts[0].Text(nil); got != tt.want {
			t.Errorf("%04x: got %q, want %q", tt.insns, got, tt.want)
		}
	}
}

func TestListingLabelsAndPayload(t *testing.T) {
	insns := []uint16{
		0x0038, 0x0004, // if-eqz v0, +4
		0x1012,                                         // const/4 v0, 1
		0x0f00 | 0x0f,                                  // return v15
		0x000e,                                         // return-void (target)
		0x0000,                                         // nop padding
		0x0100, 0x0001, 0x0000, 0x0000, 0x0003, 0x0000, // packed-switch-payload, 1 entry
	}
	text := Listing(insns, nil, "    ")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	want := []string{
		"    if-eqz v0, :addr_4",
		"    const/4 v0, 0x1",
		"    return v15",
		"    :addr_4",
		"    return-void",
		"    nop",
		"    .packed-switch-payload",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), text)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestListingExtraLabels(t *testing.T) {
	text := Listing([]uint16{0x000e, 0x000e}, nil, "", 1, 1, 7)
	if text != "return-void\n:addr_1\nreturn-void\n" {
		t.Errorf("got %q", text)
	}
}

func TestListingTruncated(t *testing.T) {
	text := Listing([]uint16{0x000e, 0x001a}, nil, "")
	if !strings.HasPrefix(text, "return-void\n# dalvik: truncated instruction") {
		t.Errorf("got %q", text)
	}
}

func TestProtoDescriptor(t *testing.T) {
	p := container.Prototype{Return: "void", Params: []string{"int", "java.lang.String[][]"}}
	if got := ProtoDescriptor(p); got != "(I[[Ljava/lang/String;)V" {
		t.Errorf("got %q", got)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{0x0e, 0x00})
	f.Add([]byte{0x70, 0x10, 0x02, 0x00, 0x00, 0x00})
	f.Add([]byte{0x00, 0x03, 0x01, 0x00, 0xff, 0xff, 0xff, 0x7f})
	f.Fuzz(func(t *testing.T, data []byte) {
		insns := make([]uint16, len(data)/2)
		for i := range insns {
			insns[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
		}
		insts, _ := Decode(insns)
		pc := 0
		for _, in := range insts {
			if in.Offset != pc || in.Size <= 0 {
				t.Fatalf("bad layout at %d: %+v", pc, in)
			}
			_ = in.Text(pool{})
			pc += in.Size
		}
	})
}
