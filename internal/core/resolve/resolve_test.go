package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/bethropolis/spanedit/internal/core/loose"
)

func selectText(t *testing.T, c *Container, start, end int) Selection {
	t.Helper()
	sel, err := Capture(RangeIn(c, start, end), nil)
	require.NoError(t, err)
	return sel
}

func TestContainerOffset(t *testing.T) {
	c := NewContainer("3", "a ", "bold", " b")
	off, err := c.Offset(Boundary{Container: c, Node: 1, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, off)

	_, err = c.Offset(Boundary{Container: c, Node: 3})
	assert.ErrorIs(t, err, ErrBadBoundary)
	_, err = c.Offset(Boundary{Container: c, Node: 0, Offset: 5})
	assert.ErrorIs(t, err, ErrBadBoundary)

	assert.Equal(t, "a bold b", c.Text())
	assert.Equal(t, 8, c.Len())
}

func TestCaptureSnapshot(t *testing.T) {
	c := NewContainer("7", "héllo ", "wörld")
	swipe := 2
	sel, err := Capture(Range{
		Start: Boundary{Container: c, Node: 0, Offset: 1},
		End:   Boundary{Container: c, Node: 1, Offset: 3},
	}, &swipe)
	require.NoError(t, err)

	assert.Equal(t, "7", sel.MessageID)
	assert.Equal(t, 1, sel.Start)
	assert.Equal(t, 9, sel.End)
	assert.Equal(t, "éllo wör", sel.Text)
	require.NotNil(t, sel.SwipeID)
	assert.Equal(t, 2, *sel.SwipeID)

	// Later changes to the container or swipe do not reach the snapshot.
	swipe = 5
	c.Nodes[0] = "changed"
	assert.Equal(t, 2, *sel.SwipeID)
	assert.Equal(t, "éllo wör", sel.Text)
}

func TestCaptureRejects(t *testing.T) {
	a := NewContainer("1", "first message")
	b := NewContainer("2", "second message")

	_, err := Capture(Range{Start: a.BoundaryAt(0), End: b.BoundaryAt(3)}, nil)
	assert.ErrorIs(t, err, ErrCrossContainer)

	_, err = Capture(RangeIn(NewContainer("1", "a   b"), 1, 4), nil)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = Capture(RangeIn(a, 3, 3), nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestCaptureBackwardsRange(t *testing.T) {
	c := NewContainer("1", "pick me")
	sel, err := Capture(Range{Start: c.BoundaryAt(7), End: c.BoundaryAt(5)}, nil)
	require.NoError(t, err)
	assert.Equal(t, "me", sel.Text)
	assert.Equal(t, 5, sel.Start)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		nodes     []string
		start     int
		end       int
		want      string
		expanded  int
		wantStage loose.Stage
	}{
		{
			name:     "italic markers included",
			raw:      "a *bold-ish* b",
			nodes:    []string{"a ", "bold-ish", " b"},
			start:    2,
			end:      10,
			want:     "*bold-ish*",
			expanded: 1,
		},
		{
			name:     "bold markers included",
			raw:      "x **bold** y",
			nodes:    []string{"x ", "bold", " y"},
			start:    2,
			end:      6,
			want:     "**bold**",
			expanded: 2,
		},
		{
			name:  "triple asterisks left alone",
			raw:   "x ***bi*** y",
			nodes: []string{"x ", "bi", " y"},
			start: 2,
			end:   4,
			want:  "bi",
		},
		{
			name:  "partial italic not expanded",
			raw:   "a *bold-ish* b",
			nodes: []string{"a ", "bold-ish", " b"},
			start: 2,
			end:   6,
			want:  "bold",
		},
		{
			name:  "plain text",
			raw:   "The quick brown fox",
			nodes: []string{"The quick brown fox"},
			start: 4,
			end:   9,
			want:  "quick",
		},
		{
			name:  "whole message covers raw",
			raw:   "*Hello* there",
			nodes: []string{"Hello", " there"},
			start: 0,
			end:   11,
			want:  "*Hello* there",
		},
		{
			name:      "unaligned render falls back to loose match",
			raw:       "Hello there",
			nodes:     []string{"Greetings. ", "Hello there"},
			start:     11,
			end:       16,
			want:      "Hello",
			wantStage: loose.StageLoose,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewContainer("1", tt.nodes...)
			sel := selectText(t, c, tt.start, tt.end)

			res, err := Resolver{}.Resolve(tt.raw, c.Text(), sel)
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.SelectedRaw)
			assert.Equal(t, tt.expanded, res.Expanded)
			assert.Equal(t, tt.wantStage, res.Stage)
			assert.True(t, res.Span.Valid(len([]rune(tt.raw))))
			assert.Equal(t, tt.raw, res.Raw)
		})
	}
}

func TestResolveWholeMessageSpan(t *testing.T) {
	raw := "**Hi** _there_\n\n> quote"
	c := NewContainer("1", "Hi", " ", "there", "\n", "quote")
	sel := selectText(t, c, 0, c.Len())

	res, err := Resolver{}.Resolve(raw, c.Text(), sel)
	require.NoError(t, err)
	assert.Equal(t, align.Span{Start: 0, End: len([]rune(raw))}, res.Span)
}

func TestResolveUnmappable(t *testing.T) {
	c := NewContainer("1", "Greetings. ", "nothing here")
	sel := selectText(t, c, 11, 18)

	_, err := Resolver{}.Resolve("Hello there", c.Text(), sel)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolveFuzzyFallback(t *testing.T) {
	c := NewContainer("1", "Note: ", "the quick brwn fox")
	sel := selectText(t, c, 6, c.Len())

	raw := "the quick brown fox"
	_, err := Resolver{}.Resolve(raw, c.Text(), sel)
	require.ErrorIs(t, err, ErrResolution)

	rv := Resolver{Matcher: loose.Matcher{Fuzzy: true, Threshold: loose.DefaultFuzzyThreshold}}
	res, err := rv.Resolve(raw, c.Text(), sel)
	require.NoError(t, err)
	assert.Equal(t, loose.StageFuzzy, res.Stage)
	assert.Equal(t, raw, res.SelectedRaw)
}

func TestExpandMarkersBounds(t *testing.T) {
	r := []rune("*a*")
	got, n := expandMarkers(r, align.Span{Start: 1, End: 2})
	assert.Equal(t, align.Span{Start: 0, End: 3}, got)
	assert.Equal(t, 1, n)

	got, n = expandMarkers(r, align.Span{Start: 3, End: 1})
	assert.Equal(t, align.Span{Start: 3, End: 1}, got)
	assert.Zero(t, n)
}
