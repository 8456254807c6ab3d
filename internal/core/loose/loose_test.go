package loose

import (
	"testing"

	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanText(raw string, s align.Span) string {
	return string([]rune(raw)[s.Start:s.End])
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "", Pattern("   \n\t"))
	assert.Equal(t, `(?m)a\.b[\s\x{00A0}]+\(c\)`, Pattern("  a.b   (c) "))
}

func TestFindToleratesReflowedWhitespace(t *testing.T) {
	raw := "She said:\n  hello\tthere,   friend.\nThen left."

	span, ok := Find(raw, "hello there, friend.")
	require.True(t, ok)
	assert.Equal(t, "hello\tthere,   friend.", spanText(raw, span))
}

func TestFindQuotesMetacharacters(t *testing.T) {
	raw := "cost is $5 (approx.) [maybe] *really*"

	span, ok := Find(raw, "$5 (approx.)")
	require.True(t, ok)
	assert.Equal(t, "$5 (approx.)", spanText(raw, span))

	span, ok = Find(raw, "*really*")
	require.True(t, ok)
	assert.Equal(t, "*really*", spanText(raw, span))
}

func TestFindReturnsRuneOffsets(t *testing.T) {
	raw := "über größe café"

	span, ok := Find(raw, "café")
	require.True(t, ok)
	assert.Equal(t, align.Span{Start: 11, End: 15}, span)
}

func TestFindNoMatch(t *testing.T) {
	_, ok := Find("alpha beta", "gamma")
	assert.False(t, ok)

	_, ok = Find("alpha beta", "   ")
	assert.False(t, ok, "blank fragments never match")
}

func TestFindIsIdempotent(t *testing.T) {
	raw := "one two one two"
	a, okA := Find(raw, "one  two")
	b, okB := Find(raw, "one  two")

	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a, b)
	assert.Equal(t, align.Span{Start: 0, End: 7}, a, "first match wins")
}

func TestFindFuzzy(t *testing.T) {
	raw := "The quick brown fox jumps over the lazy dog."

	span, sim, ok := FindFuzzy(raw, "quick brwn fox", 0.8)
	require.True(t, ok)
	assert.GreaterOrEqual(t, sim, 0.8)
	assert.Contains(t, spanText(raw, span), "quick")

	_, _, ok = FindFuzzy(raw, "completely unrelated words", 0.8)
	assert.False(t, ok)
}

func TestMatcherStages(t *testing.T) {
	raw := "The quick brown fox jumps over the lazy dog."

	_, stage, ok := Matcher{}.Find(raw, "quick brown")
	require.True(t, ok)
	assert.Equal(t, StageLoose, stage)

	_, _, ok = Matcher{}.Find(raw, "quick brwn fox")
	assert.False(t, ok, "fuzzy stage is off by default")

	_, stage, ok = Matcher{Fuzzy: true, Threshold: 0.8}.Find(raw, "quick brwn fox")
	require.True(t, ok)
	assert.Equal(t, StageFuzzy, stage)
	assert.Equal(t, "fuzzy", stage.String())
	assert.Equal(t, "loose+fuzzy(0.80)", Matcher{Fuzzy: true, Threshold: 0.8}.String())
}
