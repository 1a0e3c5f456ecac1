package lang

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"dexview/internal/container"
	"dexview/internal/dex"
	"dexview/internal/dex/dextest"
	"dexview/internal/dexfmt"
	"dexview/internal/highlight"
	"dexview/internal/writer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greeter(t *testing.T) (*dex.File, *container.Class) {
	t.Helper()
	img := dextest.Build(dextest.Class{
		Name:        "com.example.Greeter",
		Super:       "java.lang.Object",
		Interfaces:  []string{"java.lang.Runnable"},
		Flags:       uint32(container.AccPublic | container.AccFinal),
		SourceFile:  "Greeter.java",
		Annotations: []string{"com.example.Keep"},
		Fields: []dextest.Field{
			{Name: "TAG", Type: "java.lang.String", Flags: uint32(container.AccPublic | container.AccStatic | container.AccFinal)},
		},
		Methods: []dextest.Method{
			// const-string v0, string@0; invoke-direct {v0}, method@0; return-void
			{Name: "<init>", Return: "void", Flags: uint32(container.AccPublic | container.AccConstructor), Registers: 1,
				Insns: []uint16{0x001a, 0x0000, 0x1070, 0x0000, 0x0000, 0x000e}},
			{Name: "greet", Return: "java.lang.String", Params: []string{"java.lang.String", "int"},
				Flags: uint32(container.AccPublic | container.AccNative)},
		},
	})
	f, err := dex.Parse(img, dexfmt.Options{})
	require.NoError(t, err)
	return f, f.Classes()[0]
}

func nativeClass() *container.Class {
	// LDR X8, [X0]; LDR X8, [X8, #0x538]; BLR X8; BL +8; RET
	raws := []uint32{0xF9400008, 0xF9429D08, 0xD63F0100, 0x94000002, 0xD65F03C0}
	code := make([]byte, 4*len(raws))
	for i, r := range raws {
		binary.LittleEndian.PutUint32(code[4*i:], r)
	}
	c := &container.Class{Name: "com.example.Native", Flags: container.AccPublic}
	c.Methods = []*container.Method{{
		Name:    "hello",
		Class:   c,
		Flags:   container.AccPublic | container.AccNative,
		Proto:   container.Prototype{Return: "void", Params: []string{"int"}},
		Machine: &container.MachineCode{Arch: "arm64", Addr: 0x1000, Bytes: code},
	}}
	return c
}

type symbols map[uint64]string

func (symbols) Format() string              { return "test" }
func (symbols) Classes() []*container.Class { return nil }
func (symbols) Close() error                { return nil }
func (s symbols) SymbolAt(a uint64) (string, bool) {
	n, ok := s[a]
	return n, ok
}

func TestRegistryBuiltins(t *testing.T) {
	r := Registry()
	assert.Same(t, r, Registry())
	assert.Equal(t, []string{"Smali", "Java", "ARM64"}, r.Names())
	for _, name := range r.Names() {
		w, rules, err := r.Activate(name)
		require.NoError(t, err, name)
		assert.NotNil(t, w)
		assert.NotEmpty(t, rules, name)
	}
	_, _, err := r.Activate("COBOL")
	var unknown *writer.UnknownWriterError
	assert.True(t, errors.As(err, &unknown))
}

func TestNewRegistryExtraRules(t *testing.T) {
	r, err := NewRegistry(map[string][]highlight.Spec{
		"Java": {{Pattern: `(TODO)`, Color: "#ff0000"}},
	})
	require.NoError(t, err)
	_, rules, err := r.Activate("Java")
	require.NoError(t, err)
	assert.Len(t, rules, len(NewJava().HighlightRules())+1)

	_, err = NewRegistry(map[string][]highlight.Spec{"Smali": {{Pattern: `(`, Color: "#ff0000"}}})
	var malformed *writer.MalformedRuleError
	assert.True(t, errors.As(err, &malformed), "err = %v", err)

	_, err = NewRegistry(map[string][]highlight.Spec{"Kotlin": {{Pattern: `(x)`, Color: "#ff0000"}}})
	var unknown *writer.UnknownWriterError
	assert.True(t, errors.As(err, &unknown))
}

func TestSmaliClass(t *testing.T) {
	f, c := greeter(t)
	w := NewSmali()
	w.Bind(f)

	full := w.RenderClass(c, writer.DefaultOptions)
	for _, want := range []string{
		".class public final Lcom/example/Greeter;",
		".super Ljava/lang/Object;",
		`.source "Greeter.java"`,
		".implements Ljava/lang/Runnable;",
		".annotation runtime Lcom/example/Keep;",
		".field public static final TAG:Ljava/lang/String;",
	} {
		assert.Contains(t, full, want)
	}

	assert.Equal(t, ".class Lcom/example/Greeter;\n", w.RenderClass(c, writer.ShowName))
	assert.Empty(t, w.RenderClass(c, 0))

	fieldsOnly := w.RenderClass(c, writer.ShowFields)
	assert.Contains(t, fieldsOnly, ".field")
	assert.NotContains(t, fieldsOnly, ".class")
	assert.NotContains(t, fieldsOnly, ".annotation")
	assert.NotContains(t, fieldsOnly, ".super")
}

func TestDetailsOnlyShowsModifiers(t *testing.T) {
	f, c := greeter(t)
	for _, w := range []writer.Writer{NewSmali(), NewJava(), NewARM64()} {
		w.Bind(f)
		text := w.RenderClass(c, writer.ShowDetails)
		assert.Contains(t, text, "public final", "%T", w)
	}

	w := NewSmali()
	w.Bind(f)
	assert.True(t, strings.HasPrefix(w.RenderClass(c, writer.ShowDetails), "# modifiers: public final\n"))
	assert.NotContains(t, w.RenderClass(c, writer.ShowName|writer.ShowDetails), "# modifiers")
}

func TestSmaliMethod(t *testing.T) {
	f, c := greeter(t)
	w := NewSmali()
	w.Bind(f)

	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)
	want := strings.Join([]string{
		".method public constructor <init>()V",
		"    .registers 1",
		`    const-string v0, "Lcom/example/Greeter;"`,
		"    invoke-direct {v0}, Lcom/example/Greeter;-><init>()V",
		"    return-void",
		".end method",
		"",
	}, "\n")
	assert.Equal(t, want, text)

	decl := w.RenderMethod(c, c.Methods[1], writer.Format{Indent: writer.DefaultIndentation})
	assert.Equal(t, ".method public native greet(Ljava/lang/String;I)Ljava/lang/String;\n.end method\n", decl)
}

func TestSmaliCatches(t *testing.T) {
	img := dextest.Build(dextest.Class{
		Name:  "com.example.Risky",
		Super: "java.lang.Object",
		Flags: uint32(container.AccPublic),
		Methods: []dextest.Method{{
			Name: "risky", Return: "void", Flags: uint32(container.AccPublic | container.AccStatic), Registers: 1,
			Insns: []uint16{0x000e, 0x000e, 0x000e},
			Tries: []container.Try{{Start: 0, Count: 1, Handlers: []container.Handler{{Type: "java.io.IOException", Addr: 1}, {Addr: 2}}}},
		}},
	})
	f, err := dex.Parse(img, dexfmt.Options{})
	require.NoError(t, err)
	c := f.Classes()[0]
	w := NewSmali()
	w.Bind(f)

	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)
	assert.Contains(t, text, "    :addr_1\n    return-void\n    :addr_2\n")
	assert.Contains(t, text, "    .catch Ljava/io/IOException; {:addr_0 .. :addr_1} :addr_1\n")
	assert.Contains(t, text, "    .catchall {:addr_0 .. :addr_1} :addr_2\n")
}

func TestSmaliUnbound(t *testing.T) {
	_, c := greeter(t)
	w := NewSmali()
	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)
	assert.Contains(t, text, "const-string v0, string@0")
	assert.Contains(t, text, "invoke-direct {v0}, method@0")
}

func TestJavaClass(t *testing.T) {
	f, c := greeter(t)
	w := NewJava()
	w.Bind(f)

	want := strings.Join([]string{
		"// source: Greeter.java",
		"@com.example.Keep",
		"public final class Greeter implements java.lang.Runnable {",
		"    public static final java.lang.String TAG;",
		"}",
		"",
	}, "\n")
	assert.Equal(t, want, w.RenderClass(c, writer.DefaultOptions))
	assert.Equal(t, "class Greeter {\n}\n", w.RenderClass(c, writer.ShowName))
	assert.Equal(t, "// source: Greeter.java\n// public final implements java.lang.Runnable\n", w.RenderClass(c, writer.ShowDetails))
	assert.Equal(t, "@com.example.Keep\n", w.RenderClass(c, writer.ShowAnnotations))
}

func TestJavaMethod(t *testing.T) {
	f, c := greeter(t)
	w := NewJava()
	w.Bind(f)

	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)
	assert.True(t, strings.HasPrefix(text, "public Greeter() {\n    // registers: 1"), text)
	assert.Contains(t, text, "    // invoke-direct {v0}")
	assert.True(t, strings.HasSuffix(text, "}\n"))

	assert.Equal(t, "public Greeter() { ... }\n", w.RenderMethod(c, c.Methods[0], writer.Format{}))
	assert.Equal(t, "public native java.lang.String greet(java.lang.String p0, int p1);\n",
		w.RenderMethod(c, c.Methods[1], writer.DefaultFormat))
}

func TestARM64Method(t *testing.T) {
	c := nativeClass()
	w := NewARM64()
	w.Bind(symbols{0x1014: "com.example.Native.helper"})

	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	require.Len(t, lines, 7, text)
	assert.Equal(t, "; public native void hello(int p0)", lines[0])
	assert.Equal(t, "com.example.Native.hello:", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "    0x00001000  "), lines[2])
	assert.True(t, strings.HasSuffix(lines[3], "; JNIEnv->NewStringUTF"), lines[3])
	assert.True(t, strings.HasSuffix(lines[5], "; -> com.example.Native.helper"), lines[5])

	rules := highlight.MustCompile(w.HighlightRules())
	var styled []string
	for _, s := range highlight.ApplyHighlights(text, rules) {
		styled = append(styled, text[s.Start:s.End])
	}
	assert.Contains(t, styled, "JNIEnv->NewStringUTF")
	assert.Contains(t, styled, "0x00001000")
}

func TestARM64NoMachineCode(t *testing.T) {
	_, c := greeter(t)
	w := NewARM64()
	w.Bind(nil)
	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)
	assert.Equal(t, "; public Greeter()\n; no native code\n", text)
}

func TestARM64Class(t *testing.T) {
	c := nativeClass()
	w := NewARM64()
	assert.Equal(t, "; class com.example.Native\n; modifiers: public\n; native methods: 1 of 1\n",
		w.RenderClass(c, writer.DefaultOptions))
	assert.Empty(t, w.RenderClass(c, writer.ShowFields))
}

func TestSmaliHighlightRules(t *testing.T) {
	f, c := greeter(t)
	w := NewSmali()
	w.Bind(f)
	text := w.RenderMethod(c, c.Methods[0], writer.DefaultFormat)

	rules := highlight.MustCompile(w.HighlightRules())
	styled := map[string]bool{}
	for _, s := range highlight.ApplyHighlights(text, rules) {
		styled[text[s.Start:s.End]] = true
	}
	for _, want := range []string{".method", ".registers", "invoke-direct", "const-string", "v0", "Lcom/example/Greeter;", "public", "constructor"} {
		assert.True(t, styled[want], "%q not highlighted", want)
	}
}
