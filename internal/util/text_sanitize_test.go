package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"nul and controls":    {"ab\x00cd\x01\x02\n\txy", "abcd\n\txy"},
		"form feed":           {"page one\fpage two", "page one\n\npage two"},
		"line endings":        {"a\r\nb\rc", "a\nb\nc"},
		"bom and c1":          {"\uFEFFEncrypt\u0085 data\u007f", "Encrypt data"},
		"replacement char":    {"caf\uFFFDe", "cafe"},
		"outer whitespace":    {"  \n text \t ", "text"},
		"unicode kept intact": {"Datenschutz-Grundverordnung § 32", "Datenschutz-Grundverordnung § 32"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, SanitizeText(c.in))
		})
	}
	assert.Equal(t, "", SanitizeText(""))
}

func TestSanitizedFormFeedSurvivesParagraphs(t *testing.T) {
	got := NormalizeParagraphs(SanitizeText("first page\fsecond page"))
	assert.Equal(t, "first page\n\nsecond page", got)
}
