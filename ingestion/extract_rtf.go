package ingestion

import (
	"bytes"
	"strconv"
	"strings"
)

// RTFExtractor converts Rich Text Format payloads to plain text by walking
// the control-word stream directly. Non-text destination groups (font and
// color tables, embedded pictures, metadata) are dropped.
type RTFExtractor struct{}

// rtfSkipGroups are destination groups whose content is never document text.
var rtfSkipGroups = map[string]struct{}{
	"fonttbl":    {},
	"colortbl":   {},
	"stylesheet": {},
	"info":       {},
	"pict":       {},
	"object":     {},
	"themedata":  {},
	"generator":  {},
}

func (RTFExtractor) Extract(content []byte) (string, map[string]string, error) {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte(`{\rtf`)) {
		return "", nil, extractionError(FormatRTF, `missing {\rtf header; file is not rich text or is corrupted`)
	}
	return normalizePlainText(rtfToText(trimmed)), map[string]string{}, nil
}

func rtfToText(src []byte) string {
	var sb strings.Builder
	depth := 0
	skipDepth := 0 // brace depth where a skipped group started; 0 means not skipping
	i := 0

	for i < len(src) {
		switch c := src[i]; c {
		case '{':
			depth++
			i++
			if skipDepth != 0 || i >= len(src) || src[i] != '\\' {
				continue
			}
			if i+1 < len(src) && src[i+1] == '*' {
				skipDepth = depth
				continue
			}
			word, _, _ := rtfControlWord(src, i+1)
			if _, skip := rtfSkipGroups[word]; skip {
				skipDepth = depth
			}
		case '}':
			if skipDepth != 0 && depth == skipDepth {
				skipDepth = 0
			}
			depth--
			i++
		case '\\':
			i++
			if i >= len(src) {
				break
			}
			switch next := src[i]; {
			case next == '\\' || next == '{' || next == '}':
				if skipDepth == 0 {
					sb.WriteByte(next)
				}
				i++
			case next == '\'':
				if i+2 < len(src) {
					if b, err := strconv.ParseUint(string(src[i+1:i+3]), 16, 8); err == nil && skipDepth == 0 {
						sb.WriteRune(rune(b))
					}
					i += 3
				} else {
					i = len(src)
				}
			case next == '~':
				if skipDepth == 0 {
					sb.WriteByte(' ')
				}
				i++
			case next == '-' || next == '_' || next == '*':
				i++
			default:
				word, param, after := rtfControlWord(src, i)
				i = after
				if skipDepth != 0 {
					continue
				}
				switch word {
				case "par", "line", "row", "sect", "page":
					sb.WriteByte('\n')
				case "tab", "cell":
					sb.WriteByte('\t')
				case "u":
					r := rune(param)
					if r < 0 {
						r += 65536
					}
					sb.WriteRune(r)
					// The character after \uN is the ANSI fallback; drop it.
					if i < len(src) && src[i] == '?' {
						i++
					}
				}
			}
		case '\r', '\n':
			i++
		default:
			if skipDepth == 0 {
				sb.WriteByte(c)
			}
			i++
		}
	}

	return sb.String()
}

// rtfControlWord reads a control word starting at i (just past the
// backslash): its letters, an optional signed numeric parameter, and the
// single optional space that terminates it.
func rtfControlWord(src []byte, i int) (word string, param int, after int) {
	start := i
	for i < len(src) && isASCIILetter(src[i]) {
		i++
	}
	word = string(src[start:i])

	numStart := i
	if i < len(src) && src[i] == '-' {
		i++
	}
	for i < len(src) && src[i] >= '0' && src[i] <= '9' {
		i++
	}
	if i > numStart {
		param, _ = strconv.Atoi(string(src[numStart:i]))
	}

	if i < len(src) && src[i] == ' ' {
		i++
	}
	return word, param, i
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

var _ Extractor = RTFExtractor{}
