package render

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engines() map[string]Renderer {
	return map[string]Renderer{
		EngineTreeSitter: NewTreeSitter(),
		EnginePlain:      Plain{},
	}
}

func TestRenderText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		rc   Context
		want string
	}{
		{name: "italic", raw: "a *b* c", want: "a b c"},
		{name: "bold", raw: "x **bold** y", want: "x bold y"},
		{name: "underscore italic", raw: "an _aside_ here", want: "an aside here"},
		{name: "collapses spaces", raw: "Hello   world\t!", want: "Hello world !"},
		{name: "trims document", raw: "  lead and trail  \n\n", want: "lead and trail"},
		{name: "trailing spaces before newline", raw: "line one  \nline two", want: "line one\nline two"},
		{name: "code keeps spaces", raw: "use `a  b` here", want: "use a  b here"},
		{name: "escaped markers", raw: `\*not italic\*`, want: "*not italic*"},
		{name: "link label", raw: "see [docs](http://x.y) now", want: "see docs now"},
		{name: "unicode", raw: "*naïve* café", want: "naïve café"},
		{
			name: "macros",
			raw:  "Hi {{user}}, I am {{char}}",
			rc:   MacroContext("1", "Alice", "Bot"),
			want: "Hi Alice, I am Bot",
		},
	}

	for engine, r := range engines() {
		for _, tt := range tests {
			t.Run(engine+"/"+tt.name, func(t *testing.T) {
				doc, err := r.Render(context.Background(), tt.raw, tt.rc)
				require.NoError(t, err)
				assert.Equal(t, tt.want, doc.Text())
			})
		}
	}
}

func TestRenderNodes(t *testing.T) {
	tests := []struct {
		raw  string
		want []Node
	}{
		{
			raw:  "a *b* c",
			want: []Node{{Text: "a "}, {Text: "b", Style: Italic}, {Text: " c"}},
		},
		{
			raw:  "x **bold** y",
			want: []Node{{Text: "x "}, {Text: "bold", Style: Bold}, {Text: " y"}},
		},
	}

	for engine, r := range engines() {
		for _, tt := range tests {
			doc, err := r.Render(context.Background(), tt.raw, Context{})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, doc.Nodes); diff != "" {
				t.Errorf("%s: Render(%q) nodes mismatch (-want +got):\n%s", engine, tt.raw, diff)
			}
		}
	}
}

func TestPlainIntrawordUnderscore(t *testing.T) {
	doc, err := Plain{}.Render(context.Background(), "call snake_case_name now", Context{})
	require.NoError(t, err)
	assert.Equal(t, "call snake_case_name now", doc.Text())
}

func TestPlainBoldItalic(t *testing.T) {
	doc, err := Plain{}.Render(context.Background(), "***both*** and * star", Context{})
	require.NoError(t, err)
	assert.Equal(t, "both and * star", doc.Text())
	require.NotEmpty(t, doc.Nodes)
	assert.Equal(t, Bold|Italic, doc.Nodes[0].Style)
}

func TestDocumentContainer(t *testing.T) {
	doc := Document{Nodes: []Node{{Text: "a "}, {Text: "bé", Style: Bold}, {Text: " c"}}}
	c := doc.Container("4")
	assert.Equal(t, "4", c.MessageID)
	assert.Equal(t, []string{"a ", "bé", " c"}, c.Nodes)
	assert.Equal(t, doc.Text(), c.Text())
	assert.Equal(t, 6, doc.Len())
}

func TestNew(t *testing.T) {
	r, err := New("plain")
	require.NoError(t, err)
	assert.IsType(t, Plain{}, r)

	r, err = New("")
	require.NoError(t, err)
	assert.IsType(t, &TreeSitter{}, r)

	_, err = New("html")
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestPlainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Plain{}.Render(ctx, "text", Context{})
	assert.ErrorIs(t, err, context.Canceled)
}
