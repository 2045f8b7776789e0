package duplicates

import (
	"strings"
	"unicode"
)

// Normalize trims a raw line and collapses each internal whitespace run to
// one space. isComment is decided on the trimmed line before collapsing, so
// multi-character prefixes like "//" match as written. An empty prefix
// disables comment detection.
func Normalize(raw, commentPrefix string) (text string, isComment, isBlank bool) {
	trimmed := strings.TrimSpace(raw)
	if commentPrefix != "" && strings.HasPrefix(trimmed, commentPrefix) {
		isComment = true
	}
	text = collapseSpace(trimmed)
	return text, isComment, text == ""
}

func collapseSpace(s string) string {
	// Fast path: most lines have no tabs or double spaces.
	clean := true
	prev := false
	for _, r := range s {
		space := unicode.IsSpace(r)
		if space && (prev || r != ' ') {
			clean = false
			break
		}
		prev = space
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prev = false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prev {
				b.WriteByte(' ')
			}
			prev = true
			continue
		}
		b.WriteRune(r)
		prev = false
	}
	return b.String()
}
