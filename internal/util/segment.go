package util

import (
	"iter"
	"slices"
	"unicode"

	"echograph/internal/models"
)

const DefaultMaxSegmentLength = 800

// minSplitRatio bounds how far back a word-boundary split may move the chunk end.
const minSplitRatio = 0.4

// Segments lazily splits text into trimmed, offset-tracked segments. Paragraphs
// are separated by blank lines; paragraphs longer than maxLength runes are
// sliced at the closest preceding whitespace. Offsets are rune offsets into text.
func Segments(text string, maxLength int) iter.Seq[models.Segment] {
	if maxLength <= 0 {
		maxLength = DefaultMaxSegmentLength
	}
	return func(yield func(models.Segment) bool) {
		runes := []rune(text)
		for _, p := range paragraphSpans(runes) {
			start, end := trimSpan(runes, p[0], p[1])
			if start >= end {
				continue
			}
			if !sliceParagraph(runes, start, end, maxLength, yield) {
				return
			}
		}
	}
}

// SegmentText collects Segments into a slice.
func SegmentText(text string, maxLength int) []models.Segment {
	return slices.Collect(Segments(text, maxLength))
}

func sliceParagraph(runes []rune, base, limit, maxLength int, yield func(models.Segment) bool) bool {
	para := runes[base:limit]
	length := len(para)
	cursor := 0
	for cursor < length {
		end := min(length, cursor+maxLength)
		if end < length && midWord(para, end) {
			if split := lastSpace(para, cursor+int(float64(maxLength)*minSplitRatio), end); split > cursor {
				end = split
			}
		}
		s, e := trimSpan(para, cursor, end)
		if s < e {
			seg := models.Segment{Text: string(para[s:e]), Start: base + s, End: base + e}
			if !yield(seg) {
				return false
			}
		}
		if end > cursor {
			cursor = end
		} else {
			cursor += maxLength
		}
	}
	return true
}

func midWord(r []rune, i int) bool {
	return i > 0 && i < len(r) && !unicode.IsSpace(r[i-1]) && !unicode.IsSpace(r[i])
}

// lastSpace returns the index of the last whitespace rune in r[lo:hi], or -1.
func lastSpace(r []rune, lo, hi int) int {
	if lo < 0 {
		lo = 0
	}
	for i := hi - 1; i >= lo; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

func trimSpan(r []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(r[start]) {
		start++
	}
	for end > start && unicode.IsSpace(r[end-1]) {
		end--
	}
	return start, end
}
