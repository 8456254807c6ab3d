// Package render turns raw message text into the formatted text a reader
// sees: inline markdown markers are stripped, macros are substituted and
// runs of spaces collapse.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bethropolis/spanedit/internal/core/resolve"
)

// ErrUnknownEngine is returned by New for an unrecognised engine name.
var ErrUnknownEngine = errors.New("unknown render engine")

// Engine names accepted by New.
const (
	EngineTreeSitter = "treesitter"
	EnginePlain      = "plain"
)

// Style is a bit set of inline text styles.
type Style uint8

const (
	Italic Style = 1 << iota
	Bold
	Code
	Link
)

// Node is a run of formatted text with one style.
type Node struct {
	Text  string
	Style Style
}

// Document is the formatted form of a message.
type Document struct {
	Nodes []Node
}

// Text returns the concatenated formatted text.
func (d Document) Text() string {
	var b strings.Builder
	for _, n := range d.Nodes {
		b.WriteString(n.Text)
	}
	return b.String()
}

// Container exposes the document's nodes as a selectable message container.
func (d Document) Container(messageID string) *resolve.Container {
	nodes := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		nodes[i] = n.Text
	}
	return resolve.NewContainer(messageID, nodes...)
}

// Context carries per-message render settings.
type Context struct {
	MessageID string
	// Macros maps placeholders such as "{{user}}" to their replacement.
	Macros map[string]string
}

// MacroContext builds a context substituting {{user}} and {{char}}.
func MacroContext(messageID, user, char string) Context {
	return Context{
		MessageID: messageID,
		Macros:    map[string]string{"{{user}}": user, "{{char}}": char},
	}
}

func (rc Context) expand(raw string) string {
	if len(rc.Macros) == 0 || !strings.Contains(raw, "{{") {
		return raw
	}
	pairs := make([]string, 0, 2*len(rc.Macros))
	for k, v := range rc.Macros {
		pairs = append(pairs, k, v)
	}
	return strings.NewReplacer(pairs...).Replace(raw)
}

// Renderer produces formatted documents from raw text.
type Renderer interface {
	Render(ctx context.Context, raw string, rc Context) (Document, error)
}

// New returns the renderer for engine.
func New(engine string) (Renderer, error) {
	switch strings.ToLower(engine) {
	case EngineTreeSitter, "":
		return NewTreeSitter(), nil
	case EnginePlain:
		return Plain{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
}

// builder assembles nodes, collapsing runs of spaces and tabs outside code
// into one space and dropping spaces at line starts, line ends and around
// the document.
type builder struct {
	nodes        []Node
	cur          strings.Builder
	style        Style
	pending      bool  // a collapsed space waits to be written
	pendingStyle Style // style of the first space of the run
	lineStart    bool
	started      bool
}

func (b *builder) flush() {
	if b.cur.Len() > 0 {
		b.nodes = append(b.nodes, Node{Text: b.cur.String(), Style: b.style})
		b.cur.Reset()
	}
}

func (b *builder) setStyle(s Style) {
	if s != b.style {
		b.flush()
		b.style = s
	}
}

func (b *builder) writeRune(r rune, s Style) {
	if s&Code == 0 && (r == ' ' || r == '\t') {
		if b.started && !b.lineStart && !b.pending {
			b.pending = true
			b.pendingStyle = s
		}
		return
	}
	if r == '\n' {
		if !b.started {
			return
		}
		b.pending = false
	}
	if b.pending {
		b.setStyle(b.pendingStyle)
		b.cur.WriteByte(' ')
		b.pending = false
	}
	b.setStyle(s)
	b.cur.WriteRune(r)
	b.started = true
	b.lineStart = r == '\n'
}

func (b *builder) writeString(s string, style Style) {
	for _, r := range s {
		b.writeRune(r, style)
	}
}

func (b *builder) document() Document {
	b.flush()
	for len(b.nodes) > 0 {
		last := &b.nodes[len(b.nodes)-1]
		last.Text = strings.TrimRight(last.Text, "\n")
		if last.Text != "" {
			break
		}
		b.nodes = b.nodes[:len(b.nodes)-1]
	}
	return Document{Nodes: b.nodes}
}

// Len returns the rune length of the document text.
func (d Document) Len() int {
	n := 0
	for _, node := range d.Nodes {
		n += utf8.RuneCountInString(node.Text)
	}
	return n
}
