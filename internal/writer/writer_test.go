package writer

import (
	"errors"
	"testing"

	"dexview/internal/container"
	"dexview/internal/highlight"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	rules []highlight.Spec
	bound container.Container
}

func (s *stubWriter) Bind(c container.Container) { s.bound = c }
func (s *stubWriter) RenderClass(c *container.Class, opts Options) string {
	return c.Name + " " + opts.String()
}
func (s *stubWriter) RenderMethod(c *container.Class, m *container.Method, f Format) string {
	return f.Indent.Prefix(1) + m.Name
}
func (s *stubWriter) HighlightRules() []highlight.Spec { return s.rules }

func stub(rules ...highlight.Spec) Factory {
	return func() Writer { return &stubWriter{rules: rules} }
}

func TestRegistryNamesInOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"Smali", "Java", "ARM64"} {
		require.NoError(t, r.Register(name, stub()))
	}
	assert.Equal(t, []string{"Smali", "Java", "ARM64"}, r.Names())
	assert.True(t, r.Has("Java"))
	assert.False(t, r.Has("java"))
}

func TestRegistryActivate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Smali", stub(highlight.Spec{Pattern: `(\.class)`, Color: "#ff0000"})))

	w, rules, err := r.Activate("Smali")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Len(t, rules, 1)

	// every activation builds a fresh writer
	w2, _, err := r.Activate("Smali")
	require.NoError(t, err)
	assert.NotSame(t, w, w2)
}

func TestRegistryUnknownWriter(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Smali", stub()))

	w, rules, err := r.Activate("COBOL")
	var unknown *UnknownWriterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "COBOL", unknown.Name)
	assert.Nil(t, w)
	assert.Nil(t, rules)
}

func TestRegistryMalformedRule(t *testing.T) {
	r := NewRegistry()
	err := r.Register("Broken", stub(highlight.Spec{Pattern: "(unclosed", Color: "#ffffff"}))

	var malformed *MalformedRuleError
	require.True(t, errors.As(err, &malformed), "err = %v", err)
	assert.Equal(t, "Broken", malformed.Writer)
	var rerr *highlight.RuleError
	assert.True(t, errors.As(err, &rerr))
	assert.Empty(t, r.Names())
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Java", stub()))
	assert.Error(t, r.Register("Java", stub()))
	assert.Equal(t, []string{"Java"}, r.Names())
}

func TestRegistryNamesIsCopy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Java", stub()))
	names := r.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"Java"}, r.Names())
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		in   []string
		want Options
	}{
		{nil, 0},
		{[]string{"name"}, ShowName},
		{[]string{"Fields", " details "}, ShowFields | ShowDetails},
		{[]string{"all"}, DefaultOptions},
		{[]string{"none"}, 0},
	}
	for _, tt := range tests {
		got, err := ParseOptions(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseOptions([]string{"bogus"})
	assert.Error(t, err)
}

func TestOptionsString(t *testing.T) {
	assert.Equal(t, "none", Options(0).String())
	assert.Equal(t, "annotations|name|details|fields", DefaultOptions.String())
	assert.Equal(t, "name|fields", (ShowFields | ShowName).String())
	assert.True(t, DefaultOptions.Has(ShowDetails|ShowName))
	assert.False(t, ShowName.Has(ShowName|ShowFields))
}

func TestIndentationPrefix(t *testing.T) {
	assert.Equal(t, "", DefaultIndentation.Prefix(0))
	assert.Equal(t, "        ", DefaultIndentation.Prefix(2))
	assert.Equal(t, "\t\t\t", Indentation{Base: 1, Step: 2, Char: '\t'}.Prefix(1))
	assert.Equal(t, "  ", Indentation{Base: 2}.Prefix(3))
}
