package resolve

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptySelection is returned when a range selects only whitespace.
	ErrEmptySelection = errors.New("selection is empty")
	// ErrCrossContainer is returned when a range starts and ends in different messages.
	ErrCrossContainer = errors.New("selection spans more than one message")
	// ErrBadBoundary is returned when a boundary does not address a node of its container.
	ErrBadBoundary = errors.New("selection boundary outside its container")
)

// Container is the rendered text of one message, split into text nodes the
// way the renderer emitted them.
type Container struct {
	MessageID string
	Nodes     []string
}

// NewContainer builds a container for a message from rendered text nodes.
func NewContainer(messageID string, nodes ...string) *Container {
	return &Container{MessageID: messageID, Nodes: nodes}
}

// Text returns the concatenated text content of all nodes.
func (c *Container) Text() string {
	return strings.Join(c.Nodes, "")
}

// Len returns the rune length of the container's text.
func (c *Container) Len() int {
	n := 0
	for _, node := range c.Nodes {
		n += utf8.RuneCountInString(node)
	}
	return n
}

// Offset counts the characters of all text nodes preceding the boundary's
// node and adds the in-node offset.
func (c *Container) Offset(b Boundary) (int, error) {
	if b.Node < 0 || b.Node >= len(c.Nodes) {
		return 0, ErrBadBoundary
	}
	nodeLen := utf8.RuneCountInString(c.Nodes[b.Node])
	if b.Offset < 0 || b.Offset > nodeLen {
		return 0, ErrBadBoundary
	}
	offset := 0
	for _, node := range c.Nodes[:b.Node] {
		offset += utf8.RuneCountInString(node)
	}
	return offset + b.Offset, nil
}

// BoundaryAt converts a character offset in the container's text back into
// a node boundary. Offsets at a node edge resolve to the end of the earlier
// node.
func (c *Container) BoundaryAt(offset int) Boundary {
	if len(c.Nodes) == 0 || offset <= 0 {
		return Boundary{Container: c}
	}
	for i, node := range c.Nodes {
		n := utf8.RuneCountInString(node)
		if offset <= n {
			return Boundary{Container: c, Node: i, Offset: offset}
		}
		offset -= n
	}
	last := len(c.Nodes) - 1
	return Boundary{Container: c, Node: last, Offset: utf8.RuneCountInString(c.Nodes[last])}
}

// Boundary addresses a position inside a text node of a container.
type Boundary struct {
	Container *Container
	Node      int
	Offset    int // rune offset inside the node
}

// Range is a live selection between two boundaries, possibly in different
// containers.
type Range struct {
	Start Boundary
	End   Boundary
}

// RangeIn builds a range over container c from formatted offsets.
func RangeIn(c *Container, start, end int) Range {
	return Range{Start: c.BoundaryAt(start), End: c.BoundaryAt(end)}
}

// SameContainer reports whether both ends of the range are inside one message.
func (r Range) SameContainer() bool {
	return r.Start.Container != nil && r.Start.Container == r.End.Container
}

// Text returns the characters between the boundaries.
func (r Range) Text() string {
	if !r.SameContainer() {
		return ""
	}
	c := r.Start.Container
	start, err := c.Offset(r.Start)
	if err != nil {
		return ""
	}
	end, err := c.Offset(r.End)
	if err != nil || end <= start {
		return ""
	}
	return string([]rune(c.Text())[start:end])
}
