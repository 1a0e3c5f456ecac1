// Package tui is a terminal browser over a viewer session: a tree pane of
// the visible index, a code pane with the highlighted page, an incremental
// search line and writer cycling.
package tui

import (
	"context"
	"fmt"
	"strings"

	"dexview/internal/filter"
	"dexview/internal/highlight"
	"dexview/internal/index"
	"dexview/internal/viewer"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

const (
	maxTreeWidth = 48
	tabWidth     = 4
)

type pane int

const (
	treePane pane = iota
	codePane
)

// Browser draws a session on a screen and applies key presses to it.
type Browser struct {
	screen tcell.Screen
	s      *viewer.Session
	pal    Palette

	expanded map[index.NodeID]bool
	rows     []*index.Node
	cursor   int
	top      int
	codeTop  int
	focus    pane

	searching bool
	input     []rune
	status    string
	quit      bool
}

// New creates a browser over an open session. The screen must already be
// initialized.
func New(screen tcell.Screen, s *viewer.Session, pal Palette) *Browser {
	b := &Browser{
		screen:   screen,
		s:        s,
		pal:      pal,
		expanded: make(map[index.NodeID]bool),
	}
	if t := s.Tree(); t != nil && len(t.Roots()) == 1 {
		b.expanded[t.Roots()[0]] = true
	}
	b.refresh()
	return b
}

// Run draws and handles events until the user quits or ctx is done.
func (b *Browser) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = b.screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	b.Draw()
	for !b.quit {
		switch ev := b.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventInterrupt:
			if err := ctx.Err(); err != nil {
				return err
			}
		case *tcell.EventKey:
			b.HandleKey(ev.Key(), ev.Rune())
		case *tcell.EventResize:
			b.screen.Sync()
		}
		b.Draw()
	}
	return nil
}

// Quit reports whether the user asked to leave.
func (b *Browser) Quit() bool { return b.quit }

// Rows returns the tree rows currently listed.
func (b *Browser) Rows() []*index.Node { return b.rows }

// Cursor returns the index of the highlighted row.
func (b *Browser) Cursor() int { return b.cursor }

// Status returns the last status message.
func (b *Browser) Status() string { return b.status }

// HandleKey applies one key press.
func (b *Browser) HandleKey(key tcell.Key, r rune) {
	if b.searching {
		b.searchKey(key, r)
		return
	}
	switch key {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		b.quit = true
	case tcell.KeyTab:
		b.focus = 1 - b.focus
	case tcell.KeyUp:
		b.move(-1)
	case tcell.KeyDown:
		b.move(1)
	case tcell.KeyPgUp:
		b.page(-1)
	case tcell.KeyPgDn:
		b.page(1)
	case tcell.KeyEnter, tcell.KeyRight:
		b.toggle(true)
	case tcell.KeyLeft:
		b.toggle(false)
	case tcell.KeyRune:
		switch r {
		case 'q':
			b.quit = true
		case 'k':
			b.move(-1)
		case 'j':
			b.move(1)
		case 'l':
			b.toggle(true)
		case 'h':
			b.toggle(false)
		case '/':
			b.searching = true
			b.input = []rune(b.s.Query())
		case 'w':
			b.cycleWriter()
		}
	}
}

func (b *Browser) searchKey(key tcell.Key, r rune) {
	switch key {
	case tcell.KeyEnter:
		b.searching = false
		return
	case tcell.KeyEscape:
		b.searching = false
		b.input = nil
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(b.input) > 0 {
			b.input = b.input[:len(b.input)-1]
		}
	case tcell.KeyRune:
		b.input = append(b.input, r)
	default:
		return
	}
	b.s.Search(string(b.input))
	b.refresh()
	b.cursor, b.top = 0, 0
	b.selectCursor()
}

func (b *Browser) move(d int) {
	if b.focus == codePane {
		b.codeTop = max(b.codeTop+d, 0)
		return
	}
	if len(b.rows) == 0 {
		return
	}
	b.cursor = min(max(b.cursor+d, 0), len(b.rows)-1)
	b.selectCursor()
}

func (b *Browser) page(d int) {
	_, h := b.screen.Size()
	step := max(h-2, 1)
	if b.focus == codePane {
		b.codeTop = max(b.codeTop+d*step, 0)
		return
	}
	b.move(d * step)
}

// toggle expands (open) or collapses a node. Collapsing a node that is not
// expanded collapses its parent and moves there.
func (b *Browser) toggle(open bool) {
	if b.focus == codePane || len(b.rows) == 0 {
		return
	}
	n := b.rows[b.cursor]
	switch {
	case open:
		if len(n.Children) > 0 {
			b.expanded[n.ID] = true
		}
	case b.expanded[n.ID]:
		delete(b.expanded, n.ID)
	case n.Parent != index.NoParent:
		delete(b.expanded, n.Parent)
		b.refresh()
		b.moveTo(n.Parent)
		return
	}
	b.refresh()
}

func (b *Browser) moveTo(id index.NodeID) {
	for i, r := range b.rows {
		if r.ID == id {
			b.cursor = i
			b.selectCursor()
			return
		}
	}
}

func (b *Browser) cycleWriter() {
	names := b.s.Writers()
	if len(names) == 0 {
		return
	}
	next := names[0]
	for i, n := range names {
		if n == b.s.WriterName() {
			next = names[(i+1)%len(names)]
		}
	}
	if err := b.s.UseWriter(next); err != nil {
		b.status = err.Error()
		return
	}
	b.codeTop = 0
	b.status = "writer: " + next
}

func (b *Browser) selectCursor() {
	b.codeTop = 0
	if len(b.rows) == 0 {
		return
	}
	if _, err := b.s.Select(b.rows[b.cursor].ID); err != nil {
		b.status = err.Error()
	}
}

// refresh recomputes the listed rows: visible nodes whose ancestors are all
// expanded. A non-empty query expands everything it matched.
func (b *Browser) refresh() {
	t := b.s.Tree()
	b.rows = nil
	if t == nil {
		return
	}
	vis := b.s.Visibility()
	all := b.s.Query() != ""
	t.Walk(func(n *index.Node) bool {
		if !vis.Visible(n.ID) {
			return true
		}
		for p := n.Parent; p != index.NoParent; p = t.Node(p).Parent {
			if !all && !b.expanded[p] {
				return true
			}
		}
		b.rows = append(b.rows, n)
		return true
	})
	b.cursor = min(b.cursor, max(len(b.rows)-1, 0))
}

func depth(t *index.Tree, n *index.Node) int {
	d := 0
	for p := n.Parent; p != index.NoParent; p = t.Node(p).Parent {
		d++
	}
	return d
}

// Draw renders the whole screen.
func (b *Browser) Draw() {
	b.screen.Clear()
	w, h := b.screen.Size()
	if w <= 0 || h <= 1 {
		b.screen.Show()
		return
	}
	base := b.pal.base()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b.screen.SetContent(x, y, ' ', nil, base)
		}
	}

	treeW := min(maxTreeWidth, w/3)
	b.drawTree(0, 0, treeW, h-1)
	for y := 0; y < h-1; y++ {
		b.screen.SetContent(treeW, y, '│', nil, base)
	}
	b.drawCode(treeW+1, 0, w-treeW-1, h-1)
	b.drawStatus(h-1, w)
	b.screen.Show()
}

func (b *Browser) drawTree(x0, y0, w, h int) {
	t := b.s.Tree()
	if t == nil || w <= 0 {
		return
	}
	if b.cursor < b.top {
		b.top = b.cursor
	}
	if b.cursor >= b.top+h {
		b.top = b.cursor - h + 1
	}
	q := strings.ToLower(b.s.Query())
	for i := 0; i < h && b.top+i < len(b.rows); i++ {
		n := b.rows[b.top+i]
		style := b.pal.base()
		if b.top+i == b.cursor {
			style = b.pal.selected(b.focus == treePane)
		}
		marker := "  "
		if len(n.Children) > 0 {
			marker = "+ "
			if b.expanded[n.ID] || q != "" {
				marker = "- "
			}
		}
		prefix := strings.Repeat("  ", depth(t, n)) + marker
		x := drawText(b.screen, x0, y0+i, w, prefix, style)
		label := n.Label()
		match := -1
		if q != "" && n.Kind != index.KindPackage {
			match = strings.Index(strings.ToLower(label), q)
		}
		for bi, r := range label {
			st := style
			if match >= 0 && bi >= match && bi < match+len(q) {
				st = st.Foreground(b.pal.Match).Bold(true)
			}
			x = drawRune(b.screen, x, y0+i, x0+w, r, st)
		}
		for ; x < x0+w; x++ {
			b.screen.SetContent(x, y0+i, ' ', nil, style)
		}
	}
}

func (b *Browser) drawCode(x0, y0, w, h int) {
	page, ok := b.s.Page()
	if !ok || w <= 0 {
		return
	}
	styles := highlight.Styles(len(page.Text), page.Spans)
	lines := strings.SplitAfter(page.Text, "\n")
	b.codeTop = min(b.codeTop, max(len(lines)-1, 0))

	off := 0
	for i := 0; i < b.codeTop; i++ {
		off += len(lines[i])
	}
	base := b.pal.base()
	for row := 0; row < h && b.codeTop+row < len(lines); row++ {
		line := lines[b.codeTop+row]
		x := x0
		for bi, r := range line {
			st := base
			if c := styles[off+bi]; c != tcell.ColorDefault {
				st = st.Foreground(c)
			}
			switch r {
			case '\n':
			case '\t':
				for n := tabWidth - (x-x0)%tabWidth; n > 0; n-- {
					x = drawRune(b.screen, x, y0+row, x0+w, ' ', st)
				}
			default:
				x = drawRune(b.screen, x, y0+row, x0+w, r, st)
			}
		}
		off += len(line)
	}
}

func (b *Browser) drawStatus(y, w int) {
	st := b.pal.status()
	var text string
	if b.searching {
		text = "/" + string(b.input)
	} else {
		vis := b.s.Visibility()
		text = fmt.Sprintf(" %s | %s", b.s.WriterName(), visibleSummary(b.s.Tree(), vis))
		if len(b.rows) > 0 {
			text += " | " + b.s.Tree().Path(b.rows[b.cursor].ID)
		}
		if b.status != "" {
			text += " | " + b.status
		}
	}
	x := drawText(b.screen, 0, y, w, text, st)
	for ; x < w; x++ {
		b.screen.SetContent(x, y, ' ', nil, st)
	}
	if b.searching {
		b.screen.ShowCursor(min(runewidth.StringWidth(text), w-1), y)
	} else {
		b.screen.HideCursor()
	}
}

func visibleSummary(t *index.Tree, v filter.Visibility) string {
	if t == nil {
		return "no file"
	}
	if v.Query() == "" {
		return fmt.Sprintf("%d nodes", t.Len())
	}
	return fmt.Sprintf("%d/%d match %q", v.Count(), t.Len(), v.Query())
}

// drawText draws s from x clipped to w cells and returns the next column.
func drawText(s tcell.Screen, x, y, w int, text string, style tcell.Style) int {
	limit := x + w
	for _, r := range text {
		x = drawRune(s, x, y, limit, r, style)
	}
	return x
}

// drawRune draws r at x if it fits before limit, accounting for wide runes.
func drawRune(s tcell.Screen, x, y, limit int, r rune, style tcell.Style) int {
	rw := runewidth.RuneWidth(r)
	if rw == 0 {
		return x
	}
	if x+rw > limit {
		return x
	}
	s.SetContent(x, y, r, nil, style)
	return x + rw
}
