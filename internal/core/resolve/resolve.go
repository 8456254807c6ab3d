// Package resolve turns a selection made in formatted message text into a
// span of the raw message text.
package resolve

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/bethropolis/spanedit/internal/core/loose"
	"github.com/bethropolis/spanedit/internal/logger"
)

// ErrResolution is returned when a selection cannot be mapped to a raw span,
// even through the loose matcher.
var ErrResolution = errors.New("selection could not be mapped to the raw message")

// Result is a resolved raw span plus the text needed by the edit stage.
type Result struct {
	Span          align.Span
	Raw           string      // full raw message text at resolution time
	SelectedRaw   string      // raw text covered by Span
	SelectionText string      // rendered selection text
	Expanded      int         // markdown markers added on each side (0, 1 or 2)
	Stage         loose.Stage // fallback stage used, StageNone for direct mapping
}

// Resolver maps selections onto raw text.
type Resolver struct {
	Matcher loose.Matcher
}

// Resolve maps sel, taken over formatted, onto raw.
func (rv Resolver) Resolve(raw, formatted string, sel Selection) (Result, error) {
	rawRunes := []rune(raw)
	res := Result{Raw: raw, SelectionText: sel.Text}

	if sel.Start <= 0 && sel.End >= utf8.RuneCountInString(formatted) && sel.End > sel.Start {
		res.Span = align.Span{Start: 0, End: len(rawRunes)}
	} else {
		m := align.Align(raw, formatted)
		res.Span = m.SpanToRaw(align.Span{Start: sel.Start, End: sel.End})
		res.Span, res.Expanded = expandMarkers(rawRunes, res.Span)
	}

	if !res.Span.Valid(len(rawRunes)) {
		fragment := strings.TrimSpace(slice(rawRunes, res.Span))
		if fragment == "" {
			fragment = strings.TrimSpace(sel.Text)
		}
		span, stage, ok := rv.Matcher.Find(raw, fragment)
		if !ok {
			logger.DebugTagf("resolve", "Message %s: selection %d-%d unresolved", sel.MessageID, sel.Start, sel.End)
			return Result{}, ErrResolution
		}
		res.Span = span
		res.Expanded = 0
		res.Stage = stage
	}

	res.SelectedRaw = slice(rawRunes, res.Span)
	logger.DebugTagf("resolve", "Message %s: formatted %d-%d -> raw %d-%d (expanded %d, stage %s)",
		sel.MessageID, sel.Start, sel.End, res.Span.Start, res.Span.End, res.Expanded, res.Stage)
	return res, nil
}

// expandMarkers widens a span that sits exactly inside an italic (*x*) or
// bold (**x**) marker pair so the markers are edited with the text. Runs of
// three or more asterisks are left alone.
func expandMarkers(r []rune, s align.Span) (align.Span, int) {
	n := len(r)
	start, end := s.Start, s.End
	if start < 0 || end > n || start > end {
		return s, 0
	}

	at := func(i int) rune {
		if i < 0 || i >= n {
			return 0
		}
		return r[i]
	}

	if at(start-1) == '*' && at(end) == '*' && at(start-2) != '*' && at(end+1) != '*' {
		return align.Span{Start: start - 1, End: end + 1}, 1
	}
	if at(start-1) == '*' && at(start-2) == '*' && at(end) == '*' && at(end+1) == '*' &&
		at(start-3) != '*' && at(end+2) != '*' {
		return align.Span{Start: start - 2, End: end + 2}, 2
	}
	return s, 0
}

func slice(r []rune, s align.Span) string {
	if s.Start < 0 || s.End > len(r) || s.Start >= s.End {
		return ""
	}
	return string(r[s.Start:s.End])
}
