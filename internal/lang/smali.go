package lang

import (
	"fmt"
	"strings"

	"dexview/internal/container"
	"dexview/internal/dalvik"
	"dexview/internal/highlight"
	"dexview/internal/writer"
)

type accWord struct {
	flag container.AccessFlags
	word string
}

var (
	smaliClassWords = []accWord{
		{container.AccPublic, "public"}, {container.AccPrivate, "private"},
		{container.AccProtected, "protected"}, {container.AccStatic, "static"},
		{container.AccFinal, "final"}, {container.AccInterface, "interface"},
		{container.AccAbstract, "abstract"}, {container.AccSynthetic, "synthetic"},
		{container.AccAnnotation, "annotation"}, {container.AccEnum, "enum"},
	}
	smaliFieldWords = []accWord{
		{container.AccPublic, "public"}, {container.AccPrivate, "private"},
		{container.AccProtected, "protected"}, {container.AccStatic, "static"},
		{container.AccFinal, "final"}, {container.AccVolatile, "volatile"},
		{container.AccTransient, "transient"}, {container.AccSynthetic, "synthetic"},
		{container.AccEnum, "enum"},
	}
	smaliMethodWords = []accWord{
		{container.AccPublic, "public"}, {container.AccPrivate, "private"},
		{container.AccProtected, "protected"}, {container.AccStatic, "static"},
		{container.AccFinal, "final"}, {container.AccSynchronized, "synchronized"},
		{container.AccBridge, "bridge"}, {container.AccVarargs, "varargs"},
		{container.AccNative, "native"}, {container.AccAbstract, "abstract"},
		{container.AccStrict, "strictfp"}, {container.AccSynthetic, "synthetic"},
		{container.AccConstructor, "constructor"},
		{container.AccDeclaredSynchronized, "declared-synchronized"},
	}
)

func accWords(f container.AccessFlags, table []accWord) string {
	var out []string
	for _, w := range table {
		if f.Has(w.flag) {
			out = append(out, w.word)
		}
	}
	return strings.Join(out, " ")
}

// join concatenates non-empty parts with spaces.
func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Smali renders classes as smali assembler listings.
type Smali struct {
	pool container.PoolResolver
}

// NewSmali returns an unbound Smali writer.
func NewSmali() writer.Writer { return &Smali{} }

// Bind implements writer.Writer. Bytecode operands are resolved through the
// container's constant pools when it has them.
func (s *Smali) Bind(c container.Container) {
	s.pool = nil
	if c == nil {
		return
	}
	if p, ok := container.Pool(c); ok {
		s.pool = p
	}
}

func (s *Smali) RenderClass(c *container.Class, opts writer.Options) string {
	var b strings.Builder
	if opts.Has(writer.ShowName) {
		mods := ""
		if opts.Has(writer.ShowDetails) {
			mods = accWords(c.Flags, smaliClassWords)
		}
		fmt.Fprintf(&b, "%s\n", join(".class", mods, container.Descriptor(c.Name)))
	}
	if opts.Has(writer.ShowDetails) {
		if mods := accWords(c.Flags, smaliClassWords); mods != "" && !opts.Has(writer.ShowName) {
			fmt.Fprintf(&b, "# modifiers: %s\n", mods)
		}
		if c.Super != "" {
			fmt.Fprintf(&b, ".super %s\n", container.Descriptor(c.Super))
		}
		if c.SourceFile != "" {
			fmt.Fprintf(&b, ".source %q\n", c.SourceFile)
		}
		if len(c.Interfaces) > 0 {
			b.WriteString("\n# interfaces\n")
			for _, i := range c.Interfaces {
				fmt.Fprintf(&b, ".implements %s\n", container.Descriptor(i))
			}
		}
	}
	if opts.Has(writer.ShowAnnotations) && len(c.Annotations) > 0 {
		b.WriteString("\n# annotations\n")
		for _, a := range c.Annotations {
			fmt.Fprintf(&b, ".annotation %s %s\n.end annotation\n", a.Visibility, container.Descriptor(a.Type))
		}
	}
	if opts.Has(writer.ShowFields) && len(c.Fields) > 0 {
		b.WriteString("\n# fields\n")
		for _, f := range c.Fields {
			fmt.Fprintf(&b, "%s\n", join(".field", accWords(f.Flags, smaliFieldWords), f.Name+":"+container.Descriptor(f.Type)))
		}
	}
	return b.String()
}

func (s *Smali) RenderMethod(c *container.Class, m *container.Method, f writer.Format) string {
	var b strings.Builder
	decl := f.Indent.Prefix(0)
	body := f.Indent.Prefix(1)

	fmt.Fprintf(&b, "%s%s\n", decl, join(".method", accWords(m.Flags, smaliMethodWords), m.Name+dalvik.ProtoDescriptor(m.Proto)))
	if f.Code {
		switch {
		case m.Bytecode != nil:
			fmt.Fprintf(&b, "%s.registers %d\n", body, m.Bytecode.Registers)
			b.WriteString(dalvik.Listing(m.Bytecode.Insns, s.pool, body, tryLabels(m.Bytecode.Tries)...))
			writeCatches(&b, body, m.Bytecode.Tries)
		case m.Machine != nil:
			fmt.Fprintf(&b, "%s# %s code at 0x%x, %d bytes\n", body, m.Machine.Arch, m.Machine.Addr, len(m.Machine.Bytes))
		}
	}
	fmt.Fprintf(&b, "%s.end method\n", decl)
	return b.String()
}

func tryLabels(tries []container.Try) []int {
	var out []int
	for _, t := range tries {
		out = append(out, int(t.Start), int(t.Start)+int(t.Count))
		for _, h := range t.Handlers {
			out = append(out, int(h.Addr))
		}
	}
	return out
}

func writeCatches(b *strings.Builder, indent string, tries []container.Try) {
	for _, t := range tries {
		span := fmt.Sprintf("{%s .. %s}", dalvik.Label(int(t.Start)), dalvik.Label(int(t.Start)+int(t.Count)))
		for _, h := range t.Handlers {
			if h.Type == "" {
				fmt.Fprintf(b, "%s.catchall %s %s\n", indent, span, dalvik.Label(int(h.Addr)))
				continue
			}
			fmt.Fprintf(b, "%s.catch %s %s %s\n", indent, container.Descriptor(h.Type), span, dalvik.Label(int(h.Addr)))
		}
	}
}

func (s *Smali) HighlightRules() []highlight.Spec {
	return []highlight.Spec{
		{Pattern: `(?m)(#.*)$`, Color: "#7f848e"},
		{Pattern: `(?m)^\s*(\.[a-z-]+)`, Color: "#c678dd"},
		{Pattern: `(?m)^\s+([a-z][a-z0-9-]*(?:/[a-z0-9-]+)*)(?:\s|$)`, Color: "#61afef"},
		{Pattern: `\b(public|private|protected|static|final|abstract|native|synchronized|interface|enum|synthetic|constructor|bridge|varargs|volatile|transient|annotation|runtime|build|system)\b`, Color: "#e5c07b"},
		{Pattern: `(\[*L[\w/$]+;)`, Color: "#56b6c2"},
		{Pattern: `\b([vp]\d+)\b`, Color: "#e06c75"},
		{Pattern: `(:addr_[0-9a-f]+)`, Color: "#d19a66"},
		{Pattern: `("(?:[^"\\]|\\.)*")`, Color: "#98c379"},
	}
}
