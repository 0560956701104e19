package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const softHyphen = "\u00ad"

// NormalizeText drops soft hyphens, applies NFKC and collapses every whitespace
// run (newlines included) to a single space.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, softHyphen, "")
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeParagraphs normalizes each blank-line separated paragraph on its own
// and joins the non-empty results with a single blank line, so paragraph
// boundaries survive for the segmenter.
func NormalizeParagraphs(s string) string {
	s = strings.ReplaceAll(s, softHyphen, "")
	s = norm.NFKC.String(s)
	runes := []rune(s)
	parts := make([]string, 0, 8)
	for _, p := range paragraphSpans(runes) {
		if text := NormalizeText(string(runes[p[0]:p[1]])); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// paragraphSpans returns [start, end) rune ranges separated by blank lines.
// A blank line is a newline followed by optional horizontal whitespace and
// another newline. Spans are not trimmed.
func paragraphSpans(r []rune) [][2]int {
	out := make([][2]int, 0, 8)
	start := 0
	i := 0
	for i < len(r) {
		if r[i] != '\n' {
			i++
			continue
		}
		j := i + 1
		for j < len(r) && r[j] != '\n' && isHorizontalSpace(r[j]) {
			j++
		}
		if j >= len(r) || r[j] != '\n' {
			i++
			continue
		}
		out = append(out, [2]int{start, i})
		for j < len(r) && unicode.IsSpace(r[j]) {
			j++
		}
		start = j
		i = j
	}
	if start < len(r) {
		out = append(out, [2]int{start, len(r)})
	}
	return out
}

func isHorizontalSpace(r rune) bool {
	return r != '\n' && unicode.IsSpace(r)
}
