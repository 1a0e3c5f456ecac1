package lang

import (
	"fmt"
	"strings"

	"dexview/internal/container"
	"dexview/internal/dalvik"
	"dexview/internal/highlight"
	"dexview/internal/writer"
)

// Java renders Java-like declarations. Method bodies are not decompiled;
// bytecode appears as a commented smali listing.
type Java struct {
	pool container.PoolResolver
}

// NewJava returns an unbound Java writer.
func NewJava() writer.Writer { return &Java{} }

func (j *Java) Bind(c container.Container) {
	j.pool = nil
	if c == nil {
		return
	}
	if p, ok := container.Pool(c); ok {
		j.pool = p
	}
}

func (j *Java) RenderClass(c *container.Class, opts writer.Options) string {
	var b strings.Builder
	details := opts.Has(writer.ShowDetails)
	if details && c.SourceFile != "" {
		fmt.Fprintf(&b, "// source: %s\n", c.SourceFile)
	}
	if opts.Has(writer.ShowAnnotations) {
		for _, a := range c.Annotations {
			fmt.Fprintf(&b, "@%s\n", a.Type)
		}
	}

	header := ""
	if opts.Has(writer.ShowName) {
		header = c.Flags.ClassKind() + " " + c.SimpleName()
	}
	if details {
		header = join(strings.Join(c.Flags.ClassModifiers(), " "), header)
		if c.Super != "" && c.Super != "java.lang.Object" {
			header = join(header, "extends", c.Super)
		}
		if len(c.Interfaces) > 0 {
			kw := "implements"
			if c.Flags.Has(container.AccInterface) {
				kw = "extends"
			}
			header = join(header, kw, strings.Join(c.Interfaces, ", "))
		}
	}

	indent := ""
	if header != "" {
		if opts.Has(writer.ShowName) {
			header += " {"
			indent = "    "
		} else {
			header = "// " + header
		}
		b.WriteString(header + "\n")
	}
	if opts.Has(writer.ShowFields) {
		for _, f := range c.Fields {
			fmt.Fprintf(&b, "%s%s;\n", indent, join(strings.Join(f.Flags.FieldModifiers(), " "), f.Type, f.Name))
		}
	}
	if opts.Has(writer.ShowName) {
		b.WriteString("}\n")
	}
	return b.String()
}

// signature returns the Java declaration of m without body.
func signature(c *container.Class, m *container.Method) string {
	mods := strings.Join(m.Flags.MethodModifiers(), " ")
	params := make([]string, len(m.Proto.Params))
	for i, p := range m.Proto.Params {
		params[i] = fmt.Sprintf("%s p%d", p, i)
	}
	args := "(" + strings.Join(params, ", ") + ")"
	switch m.Name {
	case "<clinit>":
		return "static"
	case "<init>":
		return join(mods, c.SimpleName()+args)
	}
	return join(mods, m.Proto.Return, m.Name+args)
}

func (j *Java) RenderMethod(c *container.Class, m *container.Method, f writer.Format) string {
	var b strings.Builder
	decl := f.Indent.Prefix(0)
	body := f.Indent.Prefix(1)
	sig := signature(c, m)

	if m.Bytecode == nil || !f.Code {
		end := ";"
		if m.Bytecode != nil {
			end = " { ... }"
		}
		fmt.Fprintf(&b, "%s%s%s\n", decl, sig, end)
		if f.Code && m.Machine != nil {
			fmt.Fprintf(&b, "%s// %s code at 0x%x, %d bytes\n", decl, m.Machine.Arch, m.Machine.Addr, len(m.Machine.Bytes))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "%s%s {\n", decl, sig)
	fmt.Fprintf(&b, "%s// registers: %d, ins: %d, outs: %d\n", body, m.Bytecode.Registers, m.Bytecode.Ins, m.Bytecode.Outs)
	b.WriteString(dalvik.Listing(m.Bytecode.Insns, j.pool, body+"// "))
	fmt.Fprintf(&b, "%s}\n", decl)
	return b.String()
}

func (j *Java) HighlightRules() []highlight.Spec {
	return []highlight.Spec{
		{Pattern: `\b(public|private|protected|static|final|abstract|native|synchronized|transient|volatile|strictfp|class|interface|enum|extends|implements|void|boolean|byte|char|short|int|long|float|double)\b`, Color: "#c678dd"},
		{Pattern: `(@[\w.$]+)`, Color: "#e5c07b"},
		{Pattern: `(?m)(//.*)$`, Color: "#7f848e"},
	}
}
