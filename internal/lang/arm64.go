package lang

import (
	"fmt"
	"strings"

	"dexview/internal/container"
	"dexview/internal/disasm"
	"dexview/internal/highlight"
	"dexview/internal/writer"
)

// ARM64 disassembles native method bodies. JNIEnv function-table calls and
// BL targets are annotated.
type ARM64 struct {
	symbols disasm.SymbolLookup
}

// NewARM64 returns an unbound ARM64 writer.
func NewARM64() writer.Writer { return &ARM64{} }

func (a *ARM64) Bind(c container.Container) {
	a.symbols = nil
	if c == nil {
		return
	}
	if r, ok := container.Symbols(c); ok {
		a.symbols = r.SymbolAt
	}
}

func (a *ARM64) RenderClass(c *container.Class, opts writer.Options) string {
	var b strings.Builder
	if opts.Has(writer.ShowAnnotations) {
		for _, an := range c.Annotations {
			fmt.Fprintf(&b, "; @%s\n", an.Type)
		}
	}
	if opts.Has(writer.ShowName) {
		fmt.Fprintf(&b, "; class %s\n", c.Name)
	}
	if opts.Has(writer.ShowDetails) {
		if mods := c.Flags.ClassModifiers(); len(mods) > 0 {
			fmt.Fprintf(&b, "; modifiers: %s\n", strings.Join(mods, " "))
		}
		native := 0
		for _, m := range c.Methods {
			if m.Machine != nil {
				native++
			}
		}
		fmt.Fprintf(&b, "; native methods: %d of %d\n", native, len(c.Methods))
	}
	if opts.Has(writer.ShowFields) {
		for _, f := range c.Fields {
			fmt.Fprintf(&b, "; field %s %s\n", f.Type, f.Name)
		}
	}
	return b.String()
}

func (a *ARM64) RenderMethod(c *container.Class, m *container.Method, f writer.Format) string {
	var b strings.Builder
	decl := f.Indent.Prefix(0)
	fmt.Fprintf(&b, "%s; %s\n", decl, signature(c, m))
	if m.Machine == nil {
		fmt.Fprintf(&b, "%s; no native code\n", decl)
		return b.String()
	}
	fmt.Fprintf(&b, "%s%s.%s:\n", decl, c.Name, m.Name)
	if !f.Code {
		return b.String()
	}
	if m.Machine.Arch != "arm64" {
		fmt.Fprintf(&b, "%s; unsupported architecture %s\n", decl, m.Machine.Arch)
		return b.String()
	}

	insts := disasm.Disassemble(m.Machine.Bytes, disasm.Options{BaseAddr: m.Machine.Addr})
	text := disasm.Format(insts, nil, disasm.JNIEnvAnnotator(), disasm.CallTargetAnnotator(a.symbols))
	body := f.Indent.Prefix(1)
	for _, line := range strings.SplitAfter(text, "\n") {
		if line != "" {
			b.WriteString(body + line)
		}
	}
	return b.String()
}

func (a *ARM64) HighlightRules() []highlight.Spec {
	return []highlight.Spec{
		{Pattern: `(?m)(;.*)$`, Color: "#5c6370"},
		{Pattern: `(?m)^\s*(0x[0-9a-f]{8})`, Color: "#7f848e"},
		{Pattern: `(?m)^\s*0x[0-9a-f]{8}  (?:[0-9a-f]{2} ){4} (\S+)`, Color: "#61afef"},
		{Pattern: `\b([XW](?:[12]?\d|30)|SP|XZR|WZR)\b`, Color: "#e06c75"},
		{Pattern: `(#-?(?:0x[0-9a-fA-F]+|\d+))`, Color: "#d19a66"},
		{Pattern: `(JNIEnv->\w+|-> \S+)`, Color: "#98c379"},
	}
}
