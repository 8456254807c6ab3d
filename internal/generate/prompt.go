package generate

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// DefaultTemplate is the prompt used when none is configured.
const DefaultTemplate = `Rewrite the passage below. Keep the meaning, tone and formatting, and aim for about {{words}} words.

Passage:
{{selection}}

The passage comes from this message:
{{message}}

Reply with only the rewritten passage.`

// WordCount counts the words of s using Unicode word boundaries. Segments
// made only of spaces or punctuation are not words.
func WordCount(s string) int {
	n := 0
	state := -1
	var word string
	for len(s) > 0 {
		word, s, state = uniseg.FirstWordInString(s, state)
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				n++
				break
			}
		}
	}
	return n
}

// BuildPrompt fills a template's {{selection}}, {{message}} and {{words}}
// placeholders. An empty template uses DefaultTemplate.
func BuildPrompt(template, selection, message string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return strings.NewReplacer(
		"{{selection}}", selection,
		"{{message}}", message,
		"{{words}}", strconv.Itoa(WordCount(selection)),
	).Replace(template)
}
