package render

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Plain is a dependency-free inline scanner. It recognises ***, **, *, _,
// backtick code spans, backslash escapes and [text](url) links.
type Plain struct{}

// Render implements Renderer.
func (Plain) Render(ctx context.Context, raw string, rc Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	var b builder
	scanInline(&b, rc.expand(raw), 0)
	return b.document(), nil
}

func scanInline(b *builder, text string, base Style) {
	i := 0
	for i < len(text) {
		c := text[i]

		// Backslash escape of a punctuation character
		if c == '\\' && i+1 < len(text) && strings.IndexByte("\\`*_[]()#+-.!{}", text[i+1]) >= 0 {
			b.writeString(text[i+1:i+2], base)
			i += 2
			continue
		}

		// Code span
		if c == '`' {
			if end := strings.IndexByte(text[i+1:], '`'); end != -1 {
				b.writeString(text[i+1:i+1+end], base|Code)
				i += end + 2
				continue
			}
		}

		// Link: keep the label
		if c == '[' {
			if closeBracket := strings.IndexByte(text[i+1:], ']'); closeBracket != -1 {
				cb := i + 1 + closeBracket
				if cb+1 < len(text) && text[cb+1] == '(' {
					if urlEnd := strings.IndexByte(text[cb+2:], ')'); urlEnd != -1 {
						scanInline(b, text[i+1:cb], base|Link)
						i = cb + 2 + urlEnd + 1
						continue
					}
				}
			}
		}

		if c == '*' || (c == '_' && !wordBefore(text, i)) {
			if n, inner, style, ok := emphasisAt(text[i:], c); ok {
				scanInline(b, inner, base|style)
				i += n
				continue
			}
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		b.writeRune(r, base)
		i += size
	}
}

// emphasisAt matches a delimiter run of marker at the start of text and its
// closing run, returning the consumed length, inner text and style.
func emphasisAt(text string, marker byte) (int, string, Style, bool) {
	for _, d := range []struct {
		width int
		style Style
	}{{3, Bold | Italic}, {2, Bold}, {1, Italic}} {
		delim := strings.Repeat(string(marker), d.width)
		if !strings.HasPrefix(text, delim) || len(text) <= d.width {
			continue
		}
		rest := text[d.width:]
		if rest[0] == ' ' || rest[0] == marker {
			continue
		}
		end := strings.Index(rest, delim)
		if end <= 0 || rest[end-1] == ' ' {
			continue
		}
		return d.width + end + d.width, rest[:end], d.style, true
	}
	return 0, "", 0, false
}

// wordBefore reports whether the rune before byte offset i is a letter or
// digit. Underscores inside words are not emphasis.
func wordBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
