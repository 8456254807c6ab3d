package render

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	mdinline "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown-inline"

	"github.com/bethropolis/spanedit/internal/logger"
)

// TreeSitter renders with the tree-sitter markdown inline grammar.
type TreeSitter struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   *sitter.Language
}

// NewTreeSitter creates a tree-sitter renderer.
func NewTreeSitter() *TreeSitter {
	lang := mdinline.GetLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &TreeSitter{parser: parser, lang: lang}
}

// byteMarks records, per source byte, whether it is dropped and its style.
type byteMarks struct {
	drop  []bool
	style []Style
}

func (m *byteMarks) setDrop(start, end uint32, v bool) {
	for i := start; i < end && int(i) < len(m.drop); i++ {
		m.drop[i] = v
	}
}

func (m *byteMarks) addStyle(start, end uint32, s Style) {
	for i := start; i < end && int(i) < len(m.style); i++ {
		m.style[i] |= s
	}
}

// Render implements Renderer.
func (r *TreeSitter) Render(ctx context.Context, raw string, rc Context) (Document, error) {
	src := []byte(rc.expand(raw))

	r.mu.Lock()
	tree, err := r.parser.ParseCtx(ctx, nil, src)
	r.mu.Unlock()
	if err != nil {
		logger.Errorf("Tree-sitter parsing error: %v", err)
		return Document{}, fmt.Errorf("parsing failed: %w", err)
	}
	defer tree.Close()

	marks := &byteMarks{drop: make([]bool, len(src)), style: make([]Style, len(src))}
	mark(tree.RootNode(), marks)

	var b builder
	for i := 0; i < len(src); {
		rn, size := utf8.DecodeRune(src[i:])
		if !marks.drop[i] {
			b.writeRune(rn, marks.style[i])
		}
		i += size
	}
	doc := b.document()
	logger.DebugTagf("render", "Message %s: %d raw bytes -> %d node(s)", rc.MessageID, len(src), len(doc.Nodes))
	return doc, nil
}

func mark(n *sitter.Node, m *byteMarks) {
	if n == nil {
		return
	}
	start, end := n.StartByte(), n.EndByte()

	switch n.Type() {
	case "emphasis_delimiter", "code_span_delimiter":
		m.setDrop(start, end, true)
		return
	case "backslash_escape":
		m.setDrop(start, start+1, true)
		return
	case "emphasis":
		m.addStyle(start, end, Italic)
	case "strong_emphasis":
		m.addStyle(start, end, Bold)
	case "code_span":
		m.addStyle(start, end, Code)
	case "inline_link":
		// Only the label survives.
		m.setDrop(start, end, true)
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil && c.Type() == "link_text" {
				m.setDrop(c.StartByte(), c.EndByte(), false)
				m.addStyle(c.StartByte(), c.EndByte(), Link)
				for j := 0; j < int(c.ChildCount()); j++ {
					mark(c.Child(j), m)
				}
			}
		}
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		mark(n.Child(i), m)
	}
}
