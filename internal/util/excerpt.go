package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultExcerptLimit = 480
	ellipsis            = "…"
)

// ClipExcerpt returns text unchanged when it fits in limit runes, otherwise the
// first limit runes with trailing whitespace removed and an ellipsis appended.
func ClipExcerpt(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultExcerptLimit
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + ellipsis
}

// RuneLen is the length of s in characters, the unit used for spans.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
