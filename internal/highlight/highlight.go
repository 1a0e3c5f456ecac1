// Package highlight turns ordered pattern → colour rules into styled spans
// over rendered text.
package highlight

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrNoGroup is returned for patterns without a capturing group.
var ErrNoGroup = errors.New("highlight: pattern has no capturing group")

// Spec is the uncompiled form of a rule, as writers and config files
// declare it. Color is "#rrggbb".
type Spec struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Color   string `yaml:"color" json:"color"`
}

// Rule is a compiled Spec. The first capturing group of Pattern is the
// styled span; the rest of the match is context.
type Rule struct {
	Pattern *regexp.Regexp
	Style   tcell.Color
}

// Span styles text[Start:End]. Offsets are byte offsets into the rendered
// text; RuneSpans converts them to character offsets.
type Span struct {
	Start int
	End   int
	Style tcell.Color
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// RuleError reports the rule that failed to compile.
type RuleError struct {
	Index int
	Spec  Spec
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("highlight: rule %d %q: %v", e.Index, e.Spec.Pattern, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// ParseColor parses "#rrggbb" into an RGB tcell colour.
func ParseColor(s string) (tcell.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return tcell.ColorDefault, fmt.Errorf("highlight: colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b)), nil
}

// Hex formats an RGB colour as "#rrggbb".
func Hex(c tcell.Color) string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// Compile compiles specs in order. It fails on the first bad pattern or
// colour, so a broken rule never reaches a scan.
func Compile(specs []Spec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return nil, &RuleError{Index: i, Spec: s, Err: err}
		}
		if re.NumSubexp() < 1 {
			return nil, &RuleError{Index: i, Spec: s, Err: ErrNoGroup}
		}
		style, err := ParseColor(s.Color)
		if err != nil {
			return nil, &RuleError{Index: i, Spec: s, Err: err}
		}
		rules = append(rules, Rule{Pattern: re, Style: style})
	}
	return rules, nil
}

// MustCompile is like Compile but panics on error. For rule tables that are
// part of the program.
func MustCompile(specs []Spec) []Rule {
	rules, err := Compile(specs)
	if err != nil {
		panic(err)
	}
	return rules
}

// ApplyHighlights scans text with each rule in order and returns one span
// per non-overlapping match, covering the match's first capturing group.
// Matches where the group did not participate or is empty are skipped.
// Spans from different rules may overlap.
func ApplyHighlights(text string, rules []Rule) []Span {
	var spans []Span
	for _, r := range rules {
		for _, loc := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if start < 0 || start == end {
				continue
			}
			spans = append(spans, Span{Start: start, End: end, Style: r.Style})
		}
	}
	return spans
}

// Styles resolves spans to one style per byte of a text of length n; later
// spans win. Unstyled bytes are tcell.ColorDefault.
func Styles(n int, spans []Span) []tcell.Color {
	styles := make([]tcell.Color, n)
	for _, s := range spans {
		for i := max(s.Start, 0); i < s.End && i < n; i++ {
			styles[i] = s.Style
		}
	}
	return styles
}

// RuneSpans returns spans with offsets counted in runes rather than bytes,
// the unit character-indexed text widgets use. An offset inside a
// multi-byte rune rounds up to the next rune.
func RuneSpans(text string, spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	at := make([]int, len(text)+1)
	n := 0
	for i := 0; i < len(text); i++ {
		at[i] = n
		if utf8.RuneStart(text[i]) {
			n++
		}
	}
	at[len(text)] = n
	conv := func(off int) int { return at[min(max(off, 0), len(text))] }

	out := make([]Span, len(spans))
	for i, sp := range spans {
		out[i] = Span{Start: conv(sp.Start), End: conv(sp.End), Style: sp.Style}
	}
	return out
}

// ANSI renders text with 24-bit foreground escape sequences.
func ANSI(text string, spans []Span) string {
	if len(spans) == 0 {
		return text
	}
	styles := Styles(len(text), spans)
	var b strings.Builder
	cur := tcell.ColorDefault
	for i := 0; i < len(text); i++ {
		if styles[i] != cur {
			if cur != tcell.ColorDefault {
				b.WriteString("\x1b[0m")
			}
			if styles[i] != tcell.ColorDefault {
				r, g, bl := styles[i].RGB()
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm", r, g, bl)
			}
			cur = styles[i]
		}
		b.WriteByte(text[i])
	}
	if cur != tcell.ColorDefault {
		b.WriteString("\x1b[0m")
	}
	return b.String()
}
