package loose

import (
	"strings"

	"github.com/bethropolis/spanedit/internal/core/align"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultFuzzyThreshold is the minimum similarity accepted by FindFuzzy.
const DefaultFuzzyThreshold = 0.8

// FindFuzzy scans raw for the window most similar to fragment. Windows start
// at word boundaries and have the fragment's rune length, give or take a
// few runes. The best window at or above threshold wins.
func FindFuzzy(raw, fragment string, threshold float64) (align.Span, float64, bool) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || raw == "" {
		return align.Span{}, 0, false
	}
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}

	r := []rune(raw)
	want := len([]rune(fragment))
	slack := want / 10
	if slack < 1 {
		slack = 1
	}

	dmp := diffmatchpatch.New()
	var best align.Span
	bestSim := 0.0

	for start := 0; start < len(r); start++ {
		if align.IsWhitespace(r[start]) || (start > 0 && !align.IsWhitespace(r[start-1])) {
			continue
		}
		for length := want - slack; length <= want+slack; length++ {
			end := start + length
			if length <= 0 || end > len(r) {
				continue
			}
			sim := similarity(dmp, string(r[start:end]), fragment)
			if sim > bestSim {
				bestSim = sim
				best = align.Span{Start: start, End: end}
			}
		}
	}

	if bestSim < threshold {
		return align.Span{}, bestSim, false
	}
	return best, bestSim, true
}

// similarity computes a Levenshtein-based ratio between a and b in [0, 1].
func similarity(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	return 1.0 - float64(distance)/float64(maxLen)
}
