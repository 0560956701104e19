package util

import "strings"

const byteOrderMark = '\uFEFF'

// SanitizeText strips characters that Postgres text columns reject or that
// extractors leave behind: NUL, C0/C1 controls, DEL and byte order marks.
// Form feeds (PDF page breaks) become paragraph breaks; CRLF becomes LF.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\t':
			b.WriteRune(ch)
		case ch == '\r':
			b.WriteByte('\n')
		case ch == '\f':
			b.WriteString("\n\n")
		case ch < 0x20, ch == 0x7f, ch >= 0x80 && ch <= 0x9f, ch == byteOrderMark, ch == '\uFFFD':
			// dropped
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
