package tui

import (
	"context"
	"strings"
	"testing"

	"dexview/internal/config"
	"dexview/internal/container"
	"dexview/internal/dex"
	"dexview/internal/dex/dextest"
	"dexview/internal/dexfmt"
	"dexview/internal/lang"
	"dexview/internal/viewer"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBrowser(t *testing.T) (*Browser, tcell.SimulationScreen, *viewer.Session) {
	t.Helper()
	s, err := viewer.New(viewer.Options{
		Registry: lang.Registry(),
		Writer:   "Smali",
		Open: func(string) (container.Container, error) {
			img := dextest.Build(dextest.Names([]string{"com.example.Alpha", "com.example.Beta"}, "run", "stop")...)
			return dex.Parse(img, dexfmt.Options{})
		},
	})
	require.NoError(t, err)
	require.NoError(t, s.Open("app.dex"))

	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(100, 20)
	t.Cleanup(screen.Fini)
	return New(screen, s, PaletteFrom(config.Default().Theme)), screen, s
}

func labels(b *Browser) []string {
	var out []string
	for _, n := range b.Rows() {
		out = append(out, n.Label())
	}
	return out
}

func line(screen tcell.Screen, y int) string { return cells(screen, y, 0) }

// code returns row y of the code pane; the tree pane is 33 columns wide,
// followed by the separator.
func code(screen tcell.Screen, y int) string { return cells(screen, y, 34) }

func cells(screen tcell.Screen, y, x0 int) string {
	w, _ := screen.Size()
	var sb strings.Builder
	for x := x0; x < w; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		sb.WriteRune(r)
	}
	return strings.TrimRight(sb.String(), " ")
}

func TestBrowserNavigation(t *testing.T) {
	b, screen, s := newBrowser(t)
	assert.Equal(t, []string{"com.example", "Alpha", "Beta"}, labels(b))

	b.HandleKey(tcell.KeyDown, 0)
	assert.Equal(t, 1, b.Cursor())
	id, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "com.example.Alpha", s.Tree().Path(id))

	b.Draw()
	assert.True(t, strings.HasPrefix(code(screen, 0), ".class public Lcom/example/Alpha;"), line(screen, 0))
	assert.Contains(t, line(screen, 19), "Smali")
	assert.Contains(t, line(screen, 19), "com.example.Alpha")

	b.HandleKey(tcell.KeyEnter, 0)
	assert.Equal(t, []string{"com.example", "Alpha", "run", "stop", "Beta"}, labels(b))

	b.HandleKey(tcell.KeyRune, 'j')
	b.HandleKey(tcell.KeyRune, 'h')
	assert.Equal(t, []string{"com.example", "Alpha", "Beta"}, labels(b))
	assert.Equal(t, 1, b.Cursor())

	b.HandleKey(tcell.KeyUp, 0)
	b.HandleKey(tcell.KeyLeft, 0)
	assert.Equal(t, []string{"com.example"}, labels(b))

	b.HandleKey(tcell.KeyRune, 'q')
	assert.True(t, b.Quit())
}

func TestBrowserRun(t *testing.T) {
	b, screen, _ := newBrowser(t)
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	assert.NoError(t, b.Run(context.Background()))
	assert.True(t, b.Quit())

	b, _, _ = newBrowser(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Run(ctx), context.Canceled)
	assert.False(t, b.Quit())
}

func TestBrowserSearch(t *testing.T) {
	b, screen, s := newBrowser(t)

	b.HandleKey(tcell.KeyRune, '/')
	for _, r := range "bet" {
		b.HandleKey(tcell.KeyRune, r)
	}
	assert.Equal(t, "bet", s.Query())
	assert.Equal(t, []string{"com.example", "Beta"}, labels(b))
	b.Draw()
	assert.Equal(t, "/bet", line(screen, 19))

	b.HandleKey(tcell.KeyBackspace2, 0)
	b.HandleKey(tcell.KeyBackspace2, 0)
	b.HandleKey(tcell.KeyRune, 't')
	// "bt" matches nothing
	assert.Empty(t, b.Rows())

	b.HandleKey(tcell.KeyEscape, 0)
	assert.Equal(t, "", s.Query())
	assert.False(t, b.Quit(), "escape leaves search, not the browser")
	assert.Equal(t, []string{"com.example", "Alpha", "Beta"}, labels(b))

	b.HandleKey(tcell.KeyRune, '/')
	b.HandleKey(tcell.KeyRune, 's')
	b.HandleKey(tcell.KeyEnter, 0)
	// both "stop" methods match, so everything is listed expanded
	assert.Equal(t, []string{"com.example", "Alpha", "stop", "Beta", "stop"}, labels(b))
	b.Draw()
	assert.Contains(t, line(screen, 19), `match "s"`)
}

func TestBrowserCycleWriter(t *testing.T) {
	b, screen, s := newBrowser(t)
	b.HandleKey(tcell.KeyDown, 0)

	b.HandleKey(tcell.KeyRune, 'w')
	assert.Equal(t, "Java", s.WriterName())
	assert.Equal(t, "writer: Java", b.Status())
	page, ok := s.Page()
	require.True(t, ok)
	assert.Contains(t, page.Text, "class Alpha")

	b.Draw()
	assert.Contains(t, code(screen, 0), "Alpha {")

	b.HandleKey(tcell.KeyRune, 'w')
	b.HandleKey(tcell.KeyRune, 'w')
	assert.Equal(t, "Smali", s.WriterName())
}

func TestBrowserCodeScroll(t *testing.T) {
	b, screen, _ := newBrowser(t)
	b.HandleKey(tcell.KeyDown, 0)
	b.HandleKey(tcell.KeyTab, 0)
	b.HandleKey(tcell.KeyDown, 0)
	b.Draw()
	assert.False(t, strings.HasPrefix(code(screen, 0), ".class"), "code pane scrolled by one line")
	// tree cursor did not move while the code pane had focus
	assert.Equal(t, 1, b.Cursor())
}

func TestPaletteFrom(t *testing.T) {
	p := PaletteFrom(config.Theme{Selection: "#0b3d91", Match: "nope"})
	assert.Equal(t, tcell.NewRGBColor(0x0b, 0x3d, 0x91), p.Selection)
	assert.Equal(t, tcell.ColorDefault, p.Match)
	assert.Equal(t, tcell.ColorDefault, p.Text)
}
