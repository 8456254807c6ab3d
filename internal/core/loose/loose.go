// Package loose locates a text fragment directly inside raw message text
// when offset mapping cannot be trusted.
package loose

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/bethropolis/spanedit/internal/logger"
	"github.com/bethropolis/spanedit/internal/utils"
)

// Stage identifies which matching stage produced a span.
type Stage int

const (
	StageNone Stage = iota
	StageLoose
	StageFuzzy
)

func (s Stage) String() string {
	switch s {
	case StageLoose:
		return "loose"
	case StageFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// whitespaceRun matches one or more characters of the aligner's whitespace class.
const whitespaceRun = `[\s\x{00A0}]+`

// Pattern builds the regular expression used to find fragment: metacharacters
// are quoted and every whitespace run becomes a one-or-more whitespace class.
// It returns "" when the fragment is blank.
func Pattern(fragment string) string {
	words := strings.FieldsFunc(strings.TrimSpace(fragment), align.IsWhitespace)
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return "(?m)" + strings.Join(words, whitespaceRun)
}

// Find returns the rune span of the first loose match of fragment in raw.
func Find(raw, fragment string) (align.Span, bool) {
	pattern := Pattern(fragment)
	if pattern == "" {
		return align.Span{}, false
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		// Quoted input always compiles; treat anything else as no match.
		logger.Warnf("loose: invalid pattern %q: %v", pattern, err)
		return align.Span{}, false
	}

	loc := re.FindStringIndex(raw)
	if loc == nil {
		logger.DebugTagf("loose", "No loose match for %q", fragment)
		return align.Span{}, false
	}

	span := align.Span{
		Start: utils.ByteOffsetToRuneIndex(raw, loc[0]),
		End:   utils.ByteOffsetToRuneIndex(raw, loc[1]),
	}
	logger.DebugTagf("loose", "Loose match for %q at %d-%d", fragment, span.Start, span.End)
	return span, true
}

// Matcher runs the loose stage and, when enabled, a fuzzy stage after it.
type Matcher struct {
	Fuzzy     bool
	Threshold float64
}

// Find locates fragment in raw, reporting which stage matched.
func (m Matcher) Find(raw, fragment string) (align.Span, Stage, bool) {
	if span, ok := Find(raw, fragment); ok {
		return span, StageLoose, true
	}
	if !m.Fuzzy {
		return align.Span{}, StageNone, false
	}
	span, sim, ok := FindFuzzy(raw, fragment, m.Threshold)
	if !ok {
		return align.Span{}, StageNone, false
	}
	logger.DebugTagf("loose", "Fuzzy match for %q at %d-%d (similarity %.2f)", fragment, span.Start, span.End, sim)
	return span, StageFuzzy, true
}

// String describes the matcher configuration for log lines.
func (m Matcher) String() string {
	if !m.Fuzzy {
		return "loose"
	}
	return fmt.Sprintf("loose+fuzzy(%.2f)", m.Threshold)
}
