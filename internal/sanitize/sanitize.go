// Package sanitize maps video titles to filesystem-safe path segments.
//
// Reserved characters are swapped for visually similar full-width
// equivalents instead of being stripped, so titles stay readable across
// platforms.
package sanitize

import "strings"

const (
	// MaxTitleLen caps a main title segment.
	MaxTitleLen = 255
	// MaxPartLen caps a per-part segment inside a multi-page filename.
	MaxPartLen = 50
	// FolderTitleLen caps a folder title, leaving room for the appended
	// video identifier.
	FolderTitleLen = 240

	placeholder = "untitled"
)

var replacements = map[rune]rune{
	'/':  '／',
	'?':  '？',
	':':  '：',
	'<':  '〈',
	'>':  '〉',
	'|':  '｜',
	'"':  '”',
	'*':  '＊',
	'\\': '＼',
}

// Name returns title with reserved characters substituted and the result
// truncated to maxLen code points. It never fails: an empty or
// all-whitespace result becomes a fixed placeholder.
func Name(title string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if sub, ok := replacements[r]; ok {
			b.WriteRune(sub)
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(out)
		if len(runes) > maxLen {
			out = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	if out == "" {
		return placeholder
	}
	return out
}
