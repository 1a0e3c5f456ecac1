package tui

import (
	"dexview/internal/config"
	"dexview/internal/highlight"

	"github.com/gdamore/tcell/v2"
)

// Palette holds the browser colours. ColorDefault keeps the terminal's.
type Palette struct {
	Text       tcell.Color
	Background tcell.Color
	Selection  tcell.Color
	Status     tcell.Color
	Match      tcell.Color
}

// PaletteFrom parses a configured theme. Invalid or empty entries fall back
// to the terminal default.
func PaletteFrom(t config.Theme) Palette {
	parse := func(s string) tcell.Color {
		if s == "" {
			return tcell.ColorDefault
		}
		c, err := highlight.ParseColor(s)
		if err != nil {
			return tcell.ColorDefault
		}
		return c
	}
	return Palette{
		Text:       parse(t.Text),
		Background: parse(t.Background),
		Selection:  parse(t.Selection),
		Status:     parse(t.Status),
		Match:      parse(t.Match),
	}
}

func (p Palette) base() tcell.Style {
	return tcell.StyleDefault.Foreground(p.Text).Background(p.Background)
}

func (p Palette) selected(focused bool) tcell.Style {
	if p.Selection == tcell.ColorDefault || !focused {
		return p.base().Reverse(true)
	}
	return p.base().Background(p.Selection).Foreground(tcell.ColorWhite)
}

func (p Palette) status() tcell.Style {
	if p.Status == tcell.ColorDefault {
		return p.base().Reverse(true)
	}
	return p.base().Background(p.Status).Foreground(tcell.ColorWhite)
}
