package ingestion

import (
	"strings"
	"unicode/utf8"
)

// TextExtractor handles plain text documents and doubles as the generic
// fallback for extension-less files that look like text.
type TextExtractor struct{}

func (TextExtractor) Extract(content []byte) (string, map[string]string, error) {
	return normalizePlainText(decodeText(content)), map[string]string{}, nil
}

// decodeText interprets content as UTF-8, replacing invalid sequences
// instead of failing; uploads with stray encoding damage still index.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	var sb strings.Builder
	sb.Grow(len(content))
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune('�')
		} else {
			sb.WriteRune(r)
		}
		content = content[size:]
	}
	return sb.String()
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

var _ Extractor = TextExtractor{}
