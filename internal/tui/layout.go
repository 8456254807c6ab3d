package tui

import (
	"github.com/rivo/uniseg"

	"github.com/bethropolis/spanedit/internal/render"
)

// Message is one chat message as shown in the view.
type Message struct {
	ID     string
	Name   string
	IsUser bool
	Doc    render.Document
}

// Position is a cursor location: a message index and a rune offset into
// that message's formatted text.
type Position struct {
	Msg int
	Off int
}

// Less orders positions by message, then offset.
func (p Position) Less(o Position) bool {
	if p.Msg != o.Msg {
		return p.Msg < o.Msg
	}
	return p.Off < o.Off
}

// Cell is one grapheme cluster on screen.
type Cell struct {
	Runes []rune
	Width int
	Style render.Style
	Off   int // rune offset of the cluster in the formatted text
}

// Line is one screen row. Header rows carry the author line; body rows
// cover the formatted runes [Start, End).
type Line struct {
	Msg    int
	Header bool
	Start  int
	End    int
	Cells  []Cell
	// Break is set when the row ends at a newline rather than a wrap.
	Break bool
}

// Layout wraps messages to width: a header row, the body rows and a blank
// separator per message.
func Layout(msgs []Message, width int) []Line {
	if width < 1 {
		width = 1
	}
	var lines []Line
	for i, m := range msgs {
		lines = append(lines, Line{Msg: i, Header: true, Start: -1, End: -1})
		lines = append(lines, wrap(i, m.Doc, width)...)
		lines = append(lines, Line{Msg: -1, Start: -1, End: -1})
	}
	return lines
}

func wrap(msg int, doc render.Document, width int) []Line {
	var lines []Line
	cur := Line{Msg: msg}
	used := 0
	off := 0

	for _, n := range doc.Nodes {
		g := uniseg.NewGraphemes(n.Text)
		for g.Next() {
			runes := g.Runes()
			if runes[0] == '\n' {
				cur.End = off
				cur.Break = true
				lines = append(lines, cur)
				off += len(runes)
				cur = Line{Msg: msg, Start: off}
				used = 0
				continue
			}
			w := g.Width()
			if used+w > width && len(cur.Cells) > 0 {
				cur.End = off
				lines = append(lines, cur)
				cur = Line{Msg: msg, Start: off}
				used = 0
			}
			cur.Cells = append(cur.Cells, Cell{Runes: runes, Width: w, Style: n.Style, Off: off})
			used += w
			off += len(runes)
		}
	}
	cur.End = off
	cur.Break = true
	return append(lines, cur)
}

// LineOf returns the index of the body row holding p, or -1.
func LineOf(lines []Line, p Position) int {
	for i, l := range lines {
		if l.Header || l.Msg != p.Msg {
			continue
		}
		if p.Off < l.End || (p.Off == l.End && l.Break) {
			return i
		}
	}
	return -1
}

// Column returns the screen column of offset off within l.
func (l Line) Column(off int) int {
	x := 0
	for _, c := range l.Cells {
		if c.Off >= off {
			break
		}
		x += c.Width
	}
	return x
}

// OffsetAt returns the offset of the cluster under column x, or the row
// end when x lies past the last cluster.
func (l Line) OffsetAt(x int) int {
	used := 0
	for _, c := range l.Cells {
		if x < used+c.Width {
			return c.Off
		}
		used += c.Width
	}
	return l.End
}

// Vertical moves p by delta body rows, keeping the screen column.
func Vertical(lines []Line, p Position, delta int) Position {
	i := LineOf(lines, p)
	if i < 0 {
		return p
	}
	x := lines[i].Column(p.Off)
	step := 1
	if delta < 0 {
		step, delta = -1, -delta
	}
	for delta > 0 {
		j := i + step
		for j >= 0 && j < len(lines) && (lines[j].Header || lines[j].Msg < 0) {
			j += step
		}
		if j < 0 || j >= len(lines) {
			break
		}
		i = j
		delta--
	}
	return Position{Msg: lines[i].Msg, Off: lines[i].OffsetAt(x)}
}
