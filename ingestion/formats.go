// Package ingestion turns uploaded document bytes into indexable text
// chunks: format detection, per-format extraction, and chunking.
package ingestion

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DocumentFormat enumerates supported document payload formats.
type DocumentFormat string

const (
	// FormatUnknown represents an unsupported or undetected format.
	FormatUnknown DocumentFormat = "unknown"
	// FormatPDF represents PDF documents.
	FormatPDF DocumentFormat = "pdf"
	// FormatWord represents Word documents (.doc, .docx).
	FormatWord DocumentFormat = "word"
	// FormatText represents plain text documents.
	FormatText DocumentFormat = "text"
	// FormatRTF represents Rich Text Format documents.
	FormatRTF DocumentFormat = "rtf"
	// FormatTabular represents tabular data (CSV, Excel, JSON records).
	FormatTabular DocumentFormat = "tabular"
	// FormatCode represents source code and config files.
	FormatCode DocumentFormat = "code"
)

// codeLanguages maps code file extensions to a language tag carried in the
// extracted metadata.
var codeLanguages = map[string]string{
	".py":     "python",
	".js":     "javascript",
	".ts":     "typescript",
	".jsx":    "javascript-react",
	".tsx":    "typescript-react",
	".java":   "java",
	".c":      "c",
	".h":      "c-header",
	".cpp":    "cpp",
	".hpp":    "cpp-header",
	".cs":     "csharp",
	".php":    "php",
	".go":     "go",
	".rb":     "ruby",
	".rs":     "rust",
	".swift":  "swift",
	".kt":     "kotlin",
	".sh":     "bash",
	".bash":   "bash",
	".ps1":    "powershell",
	".sql":    "sql",
	".r":      "r",
	".scala":  "scala",
	".dart":   "dart",
	".html":   "html",
	".css":    "css",
	".scss":   "scss",
	".less":   "less",
	".xml":    "xml",
	".yaml":   "yaml",
	".yml":    "yaml",
	".toml":   "toml",
	".lua":    "lua",
	".pl":     "perl",
	".pm":     "perl-module",
	".groovy": "groovy",
	".vb":     "visual-basic",
	".f90":    "fortran",
	".clj":    "clojure",
	".ex":     "elixir",
	".exs":    "elixir-script",
}

// dockerfileInstructions are the format-defining keywords used by the
// content heuristic for extension-less files.
var dockerfileInstructions = []string{
	"FROM", "RUN", "COPY", "ADD", "WORKDIR", "ENTRYPOINT",
	"CMD", "EXPOSE", "ENV", "ARG", "LABEL", "VOLUME", "USER",
}

// DetectFormat infers a document format from the filename extension. Files
// without a matching extension are classified by content: Dockerfiles via
// the instruction heuristic, printable text via the generic fallback.
func DetectFormat(filename string, content []byte) DocumentFormat {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FormatPDF
	case ".doc", ".docx":
		return FormatWord
	case ".txt", ".text", ".md", ".markdown", ".log":
		return FormatText
	case ".rtf":
		return FormatRTF
	case ".xlsx", ".xls", ".ods", ".csv", ".tsv", ".json":
		return FormatTabular
	}
	if _, ok := codeLanguages[ext]; ok {
		return FormatCode
	}
	if IsDockerfile(filename, content) {
		return FormatCode
	}
	if looksLikeText(content) {
		return FormatText
	}
	return FormatUnknown
}

// IsDockerfile reports whether the file is a Dockerfile, either by name or
// because its content starts at least two distinct Dockerfile instructions.
// The threshold keeps prose that merely mentions FROM from matching.
func IsDockerfile(filename string, content []byte) bool {
	base := strings.ToLower(filepath.Base(filename))
	if base == "dockerfile" || strings.HasPrefix(base, "dockerfile.") {
		return true
	}
	return countDockerfileInstructions(content) >= 2
}

func countDockerfileInstructions(content []byte) int {
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, instruction := range dockerfileInstructions {
			if strings.HasPrefix(line, instruction+" ") {
				seen[instruction] = struct{}{}
				break
			}
		}
	}
	return len(seen)
}

// looksLikeText reports whether content is plausibly human-readable text:
// valid-enough UTF-8 with no NUL bytes in the leading window.
func looksLikeText(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	window := content
	if len(window) > 8192 {
		window = window[:8192]
	}
	if bytes.IndexByte(window, 0) >= 0 {
		return false
	}
	invalid := 0
	for len(window) > 0 {
		r, size := utf8.DecodeRune(window)
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		window = window[size:]
	}
	return invalid*100 < len(content)
}
