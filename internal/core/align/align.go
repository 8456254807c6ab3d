// Package align builds a character-level correspondence between raw message
// text and the formatted text a renderer produced from it.
package align

import (
	"sort"

	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/utils"
)

// Pair records that Raw (a rune offset into the raw text) corresponds to
// Formatted (a rune offset into the formatted text).
type Pair struct {
	Raw       int
	Formatted int
}

// Span is a half-open rune range [Start, End) into a specific text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Valid reports whether the span is non-empty and lies within a text of n runes.
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.End <= n && s.Start < s.End
}

// Mapping is the ordered pair sequence produced by Align. Both coordinates
// are non-decreasing. It is read-only once built.
type Mapping struct {
	pairs  []Pair
	rawLen int
}

// IsWhitespace reports whether r belongs to the whitespace class the
// aligner treats as interchangeable.
func IsWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\u00a0':
		return true
	}
	return false
}

// Align walks raw and formatted with two cursors and records a pair for
// every position where the texts agree, or where whitespace on one side
// has no counterpart on the other. Raw characters with no formatted
// counterpart (stripped markdown syntax) are skipped without a pair.
func Align(raw, formatted string) *Mapping {
	r := []rune(raw)
	f := []rune(formatted)

	m := &Mapping{
		pairs:  make([]Pair, 0, len(f)),
		rawLen: len(r),
	}

	ri, fi := 0, 0
	skipped := 0
	for ri < len(r) && fi < len(f) {
		rc, fc := r[ri], f[fi]
		rws, fws := IsWhitespace(rc), IsWhitespace(fc)

		switch {
		case rc == fc, rws && fws:
			m.pairs = append(m.pairs, Pair{Raw: ri, Formatted: fi})
			ri++
			fi++
		case rws:
			m.pairs = append(m.pairs, Pair{Raw: ri, Formatted: fi})
			ri++
		case fws:
			m.pairs = append(m.pairs, Pair{Raw: ri, Formatted: fi})
			fi++
		default:
			ri++
			skipped++
		}
	}

	logger.DebugTagf("align", "Aligned %d raw / %d formatted runes: %d pairs, %d raw runes skipped",
		len(r), len(f), len(m.pairs), skipped)
	return m
}

// Pairs returns a copy of the recorded correspondence pairs.
func (m *Mapping) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// RawLen returns the rune length of the raw text the mapping was built from.
func (m *Mapping) RawLen() int { return m.rawLen }

// ToRaw maps a formatted offset to a raw offset.
//
// When pairs share the queried formatted coordinate the last one wins: it
// is the pair that reached the character itself rather than whitespace or
// syntax in front of it. Offsets that fall between recorded pairs are
// extrapolated linearly from the nearest preceding pair (the first pair
// when the query precedes all of them) and clamped to the raw text.
func (m *Mapping) ToRaw(formattedOffset int) int {
	n := len(m.pairs)
	if n == 0 {
		return utils.Clamp(formattedOffset, 0, m.rawLen)
	}

	// First pair with a formatted coordinate strictly greater than the query.
	idx := sort.Search(n, func(i int) bool {
		return m.pairs[i].Formatted > formattedOffset
	})
	if idx > 0 && m.pairs[idx-1].Formatted == formattedOffset {
		return m.pairs[idx-1].Raw
	}

	anchor := m.pairs[0]
	if idx > 0 {
		anchor = m.pairs[idx-1]
	}
	return utils.Clamp(anchor.Raw+(formattedOffset-anchor.Formatted), 0, m.rawLen)
}

// SpanToRaw maps a formatted span through ToRaw at both ends.
func (m *Mapping) SpanToRaw(s Span) Span {
	return Span{Start: m.ToRaw(s.Start), End: m.ToRaw(s.End)}
}
