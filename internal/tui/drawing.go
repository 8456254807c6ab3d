// internal/tui/drawing.go
package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/bethropolis/spanedit/internal/render"
	"github.com/bethropolis/spanedit/internal/theme"
)

// UndoMarker is drawn after the header of messages that can be undone.
const UndoMarker = "↶"

// View is the chat state DrawChat paints.
type View struct {
	Messages []Message
	Lines    []Line
	Top      int
	Cursor   Position
	// SelStart and SelEnd bound the selection when HasSelection is set.
	SelStart     Position
	SelEnd       Position
	HasSelection bool
	Undoable     map[string]bool
}

func (v View) selected(p Position) bool {
	if !v.HasSelection {
		return false
	}
	return !p.Less(v.SelStart) && p.Less(v.SelEnd)
}

// ScrollTop returns the first visible row keeping row within height rows.
func ScrollTop(top, row, height int) int {
	if height <= 0 || row < 0 {
		return top
	}
	if row < top {
		return row
	}
	if row >= top+height {
		return row - height + 1
	}
	return top
}

// textStyle maps render styles onto theme styles.
func textStyle(th *theme.Theme, s render.Style) tcell.Style {
	var style tcell.Style
	switch {
	case s&render.Code != 0:
		style = th.GetStyle(theme.StyleCode)
	case s&render.Link != 0:
		style = th.GetStyle(theme.StyleLink)
	case s&render.Bold != 0:
		style = th.GetStyle(theme.StyleBold)
	case s&render.Italic != 0:
		style = th.GetStyle(theme.StyleItalic)
	default:
		return th.GetStyle(theme.StyleDefault)
	}
	if s&render.Bold != 0 {
		style = style.Bold(true)
	}
	if s&render.Italic != 0 {
		style = style.Italic(true)
	}
	return style
}

// DrawText draws s at (x, y) clipped to width and returns the next column.
func DrawText(t *TUI, x, y, width int, s string, style tcell.Style) int {
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		w := gr.Width()
		if x+w > width {
			break
		}
		runes := gr.Runes()
		t.screen.SetContent(x, y, runes[0], runes[1:], style)
		x += w
	}
	return x
}

// FillRow paints row y with style.
func FillRow(t *TUI, y, width int, style tcell.Style) {
	for x := 0; x < width; x++ {
		t.screen.SetContent(x, y, ' ', nil, style)
	}
}

// DrawChat draws the visible rows of v into the top height rows.
func DrawChat(t *TUI, v View, th *theme.Theme, height int) {
	if th == nil {
		th = &theme.DevComfortDark
	}
	width, _ := t.Size()
	defaultStyle := th.GetStyle(theme.StyleDefault)
	selectionStyle := th.GetStyle(theme.StyleSelection)

	for screenY := 0; screenY < height; screenY++ {
		FillRow(t, screenY, width, defaultStyle)
		row := v.Top + screenY
		if row < 0 || row >= len(v.Lines) {
			continue
		}
		l := v.Lines[row]

		if l.Header {
			m := v.Messages[l.Msg]
			style := th.GetStyle(theme.StyleHeader)
			if m.IsUser {
				style = th.GetStyle(theme.StyleHeaderUser)
			}
			x := DrawText(t, 0, screenY, width, m.Name+" #"+m.ID, style)
			if v.Undoable[m.ID] {
				DrawText(t, x+1, screenY, width, UndoMarker, th.GetStyle(theme.StyleUndoMarker))
			}
			continue
		}
		if l.Msg < 0 {
			continue
		}

		x := 0
		for _, c := range l.Cells {
			if x+c.Width > width {
				break
			}
			style := textStyle(th, c.Style)
			if v.selected(Position{Msg: l.Msg, Off: c.Off}) {
				style = selectionStyle
			}
			r := c.Runes[0]
			if r == '\t' {
				r = ' '
			}
			t.screen.SetContent(x, screenY, r, c.Runes[1:], style)
			for fill := 1; fill < c.Width; fill++ {
				t.screen.SetContent(x+fill, screenY, ' ', nil, style)
			}
			x += c.Width
		}
	}
}

// DrawCursor positions the terminal cursor, hiding it when off screen.
func DrawCursor(t *TUI, v View, height int) {
	row := LineOf(v.Lines, v.Cursor)
	width, _ := t.Size()
	y := row - v.Top
	if row < 0 || y < 0 || y >= height {
		t.screen.HideCursor()
		return
	}
	x := v.Lines[row].Column(v.Cursor.Off)
	if x >= width {
		x = width - 1
	}
	t.screen.ShowCursor(x, y)
}
